// Package e2e drives a running mastercom server through Gherkin scenarios.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mastercom/e2e/steps/common"
	"mastercom/e2e/steps/deletion"
)

// Settings point the suite at a server and its token parameters.
type Settings struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string
	AdminToken string
}

// TestContext holds the state of one scenario.
type TestContext struct {
	settings Settings
	client   *http.Client

	token      string
	lastStatus int
	lastBody   []byte
	saved      map[string]string
}

func NewTestContext(settings Settings) *TestContext {
	return &TestContext{
		settings: settings,
		client:   &http.Client{Timeout: 10 * time.Second},
		saved:    make(map[string]string),
	}
}

// RegisterSteps resets the context before each scenario and registers every
// step package.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	common.RegisterSteps(ctx, tc)
	deletion.RegisterSteps(ctx, tc)
}

func (tc *TestContext) reset() {
	tc.token = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.saved = make(map[string]string)
}

// AuthenticateAs mints a bearer token for a fresh user with role.
func (tc *TestContext) AuthenticateAs(role string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    role,
		"iss":     tc.settings.Issuer,
		"aud":     []string{tc.settings.Audience},
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     uuid.NewString(),
	})
	signed, err := token.SignedString([]byte(tc.settings.SigningKey))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.token = signed
	return nil
}

func (tc *TestContext) ClearAuthentication() {
	tc.token = ""
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, nil)
}

// POSTAdmin calls an operator route with the admin token instead of a bearer.
func (tc *TestContext) POSTAdmin(path string) error {
	return tc.do(http.MethodPost, path, nil, map[string]string{"X-Admin-Token": tc.settings.AdminToken})
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, strings.TrimRight(tc.settings.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) Body() []byte {
	return tc.lastBody
}

// ResponseField resolves a dotted path ("request.status") in the last JSON body.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found", path)
		}
	}
	return cur, nil
}

func (tc *TestContext) Save(name, value string) {
	tc.saved[name] = value
}

func (tc *TestContext) Saved(name string) (string, error) {
	v, ok := tc.saved[name]
	if !ok {
		return "", fmt.Errorf("nothing saved as %q", name)
	}
	return v, nil
}
