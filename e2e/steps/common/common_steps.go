package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is what the common steps need from the scenario state.
type TestContext interface {
	AuthenticateAs(role string) error
	ClearAuthentication()
	StatusCode() int
	Body() []byte
	ResponseField(path string) (any, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am authenticated as a (member|reviewer)$`, steps.authenticateAs)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) authenticateAs(_ context.Context, role string) error {
	return s.tc.AuthenticateAs(role)
}

func (s *commonSteps) notAuthenticated(context.Context) error {
	s.tc.ClearAuthentication()
	return nil
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.StatusCode(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(_ context.Context, path, want string) error {
	got, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("expected %s to equal %q, got %v", path, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(_ context.Context, path, want string) error {
	got, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	b, ok := got.(bool)
	if !ok {
		return fmt.Errorf("%s is not a boolean: %v", path, got)
	}
	if fmt.Sprint(b) != want {
		return fmt.Errorf("expected %s to be %s", path, want)
	}
	return nil
}
