package deletion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is what the deletion steps need from the scenario state.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	POSTAdmin(path string) error
	StatusCode() int
	Body() []byte
	ResponseField(path string) (any, error)
	Save(name, value string)
	Saved(name string) (string, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &deletionSteps{tc: tc}

	ctx.Step(`^a "([^"]*)" record "([^"]*)" exists$`, steps.recordExists)
	ctx.Step(`^I request deletion of "([^"]*)" record "([^"]*)" because "([^"]*)"$`, steps.requestDeletion)
	ctx.Step(`^I approve the deletion request for "([^"]*)" with notes "([^"]*)"$`, steps.approve)
	ctx.Step(`^I reject the deletion request for "([^"]*)" with notes "([^"]*)"$`, steps.reject)
	ctx.Step(`^I examine the deletion request for "([^"]*)"$`, steps.examine)
	ctx.Step(`^I run reconciliation as an operator$`, steps.reconcile)

	ctx.Step(`^the "([^"]*)" record "([^"]*)" should still exist$`, steps.recordShouldExist)
	ctx.Step(`^the "([^"]*)" record "([^"]*)" should be gone$`, steps.recordShouldBeGone)
	ctx.Step(`^the deletion request list should offer "([^"]*)" for "([^"]*)"$`, steps.listShouldOffer)
	ctx.Step(`^the deletion request list should not offer "([^"]*)" for "([^"]*)"$`, steps.listShouldNotOffer)
}

type deletionSteps struct {
	tc TestContext
}

// recordID scopes an alias from the feature file to this scenario so runs
// against a long-lived server do not collide.
func (s *deletionSteps) recordID(alias string) string {
	key := "record:" + alias
	if v, err := s.tc.Saved(key); err == nil {
		return v
	}
	v := alias + "-" + uuid.NewString()[:8]
	s.tc.Save(key, v)
	return v
}

func (s *deletionSteps) requestID(alias string) (string, error) {
	return s.tc.Saved("request:" + alias)
}

func (s *deletionSteps) recordExists(_ context.Context, table, alias string) error {
	if err := s.tc.POST("/records/"+table, map[string]any{
		"id":   s.recordID(alias),
		"data": map[string]any{"name": alias},
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		return fmt.Errorf("create %s/%s: status %d: %s", table, alias, s.tc.StatusCode(), s.tc.Body())
	}
	return nil
}

func (s *deletionSteps) requestDeletion(_ context.Context, table, alias, reason string) error {
	if err := s.tc.POST("/deletion-requests", map[string]any{
		"table_name": table,
		"record_id":  s.recordID(alias),
		"reason":     reason,
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		return nil
	}
	reqID, err := s.tc.ResponseField("request.id")
	if err != nil {
		return err
	}
	s.tc.Save("request:"+alias, fmt.Sprint(reqID))
	return nil
}

func (s *deletionSteps) approve(_ context.Context, alias, notes string) error {
	return s.review(alias, "approve", notes)
}

func (s *deletionSteps) reject(_ context.Context, alias, notes string) error {
	return s.review(alias, "reject", notes)
}

func (s *deletionSteps) review(alias, action, notes string) error {
	reqID, err := s.requestID(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/deletion-requests/"+reqID+"/"+action, map[string]any{"review_notes": notes})
}

func (s *deletionSteps) examine(_ context.Context, alias string) error {
	reqID, err := s.requestID(alias)
	if err != nil {
		return err
	}
	return s.tc.GET("/deletion-requests/" + reqID)
}

func (s *deletionSteps) reconcile(context.Context) error {
	return s.tc.POSTAdmin("/admin/deletion-requests/reconcile")
}

func (s *deletionSteps) recordShouldExist(_ context.Context, table, alias string) error {
	return s.expectRecordStatus(table, alias, http.StatusOK)
}

func (s *deletionSteps) recordShouldBeGone(_ context.Context, table, alias string) error {
	return s.expectRecordStatus(table, alias, http.StatusNotFound)
}

func (s *deletionSteps) expectRecordStatus(table, alias string, want int) error {
	if err := s.tc.GET("/records/" + table + "/" + s.recordID(alias)); err != nil {
		return err
	}
	if got := s.tc.StatusCode(); got != want {
		return fmt.Errorf("GET %s/%s: expected %d, got %d", table, alias, want, got)
	}
	return nil
}

func (s *deletionSteps) listShouldOffer(_ context.Context, action, alias string) error {
	actions, err := s.actionsFor(alias)
	if err != nil {
		return err
	}
	if !slices.Contains(actions, action) {
		return fmt.Errorf("expected %q among actions %v", action, actions)
	}
	return nil
}

func (s *deletionSteps) listShouldNotOffer(_ context.Context, action, alias string) error {
	actions, err := s.actionsFor(alias)
	if err != nil {
		return err
	}
	if slices.Contains(actions, action) {
		return fmt.Errorf("did not expect %q among actions %v", action, actions)
	}
	return nil
}

func (s *deletionSteps) actionsFor(alias string) ([]string, error) {
	reqID, err := s.requestID(alias)
	if err != nil {
		return nil, err
	}
	if err := s.tc.GET("/deletion-requests"); err != nil {
		return nil, err
	}
	var list struct {
		Requests []struct {
			ID      string   `json:"id"`
			Actions []string `json:"actions"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(s.tc.Body(), &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	for _, row := range list.Requests {
		if row.ID == reqID {
			return row.Actions, nil
		}
	}
	return nil, fmt.Errorf("request %s not listed", reqID)
}
