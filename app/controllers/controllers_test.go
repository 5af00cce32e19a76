package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/assistant"
	"github.com/assistdesk/assistdesk/internal/pkg/auditarchive"
	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
	"github.com/assistdesk/assistdesk/internal/pkg/ledger"
	"github.com/assistdesk/assistdesk/internal/pkg/session"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

var testAdmin = usercontext.UserContext{UserID: 1, Username: "Ada", IsLoggedIn: true, IsAdmin: true, AuthMethod: usercontext.AuthSession}

type stubCredits struct {
	CreditService
	deductErr error
	added     []int64
}

func (s *stubCredits) AddCredits(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string) (*ledger.Result, error) {
	s.added = append(s.added, amount)
	return &ledger.Result{UserID: userID, Balance: 100 + amount, Warning: &apperr.AuditWarning{Err: errors.New("db down")}}, nil
}

func (s *stubCredits) DeductCredits(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string) (*ledger.Result, error) {
	return nil, s.deductErr
}

type stubAssistants struct {
	AssistantService
	createErr error
	created   []assistant.Input
}

func (s *stubAssistants) Create(ctx context.Context, caller usercontext.UserContext, in assistant.Input) (*assistant.Result, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, in)
	return &assistant.Result{Assistant: &models.Assistant{ID: 7, Name: in.Name}}, nil
}

type stubAccounts struct {
	AccountService
	user *models.User
}

func (s *stubAccounts) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if s.user == nil || password != "secret-pass" {
		return nil, apperr.ErrNotAuthenticated
	}
	return s.user, nil
}

type stubArchive struct {
	exports int
}

func (s *stubArchive) Enabled() bool { return true }

func (s *stubArchive) Export(ctx context.Context, from, to time.Time) (*auditarchive.Result, error) {
	s.exports++
	return &auditarchive.Result{Bucket: "b", ObjectKey: auditarchive.ObjectKey(from, to), Entries: 3}, nil
}

type stubJobs struct {
	archived []uint
}

func (s *stubJobs) EnqueueReconcile(ctx context.Context, adminID uint) (*jobqueue.Job, error) {
	return &jobqueue.Job{ID: "reconcile-1", Status: jobqueue.JobStatusPending}, nil
}

func (s *stubJobs) EnqueueArchive(ctx context.Context, from, to time.Time, adminID uint) (*jobqueue.Job, error) {
	s.archived = append(s.archived, adminID)
	return &jobqueue.Job{ID: "archive-1", Status: jobqueue.JobStatusPending}, nil
}

func newTestApp(t *testing.T, s *Services, caller *usercontext.UserContext) *fiber.App {
	t.Helper()
	saved := GetServices()
	InitServices(s)
	t.Cleanup(func() { InitServices(saved) })

	app := fiber.New()
	if caller != nil {
		app.Use(func(c *fiber.Ctx) error {
			usercontext.Set(c, *caller)
			return c.Next()
		})
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("amount", "must be positive"), 400, "validation_failed"},
		{"not authenticated", apperr.ErrNotAuthenticated, 401, "unauthorized"},
		{"not found", apperr.NotFound("user"), 404, "not_found"},
		{"insufficient balance", apperr.ErrInsufficientBalance, 409, "insufficient_balance"},
		{"archive disabled", auditarchive.ErrDisabled, 503, "unavailable"},
		{"unique", &apperr.RemoteError{Constraint: apperr.ConstraintUnique, Err: errors.New("dup")}, 409, "conflict"},
		{"check", &apperr.RemoteError{Constraint: apperr.ConstraintCheck, Message: "Credits per message must be between 1 and 1000", Err: errors.New("chk")}, 422, "constraint_violation"},
		{"unknown", errors.New("boom"), 500, "internal_server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return writeError(c, tt.err) })
			resp, body := doJSON(t, app, "GET", "/", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestWriteErrorValidationFields(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return writeError(c, &apperr.ValidationError{Message: "invalid assistant", Fields: map[string]string{"name": "Name is required"}})
	})
	resp, body := doJSON(t, app, "GET", "/", nil)
	assert.Equal(t, 400, resp.StatusCode)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Name is required", fields["name"])
}

func TestUnconfiguredServiceAnswers503(t *testing.T) {
	app := newTestApp(t, &Services{}, &testAdmin)
	app.Get("/credits/:id", HandleAdminCreditBalance)
	resp, _ := doJSON(t, app, "GET", "/credits/1", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestCreditAddReportsAuditWarning(t *testing.T) {
	credits := &stubCredits{}
	app := newTestApp(t, &Services{Credits: credits}, &testAdmin)
	app.Post("/users/:id/credits/add", HandleAdminCreditAdd)

	resp, body := doJSON(t, app, "POST", "/users/4/credits/add", map[string]any{"amount": 25, "description": "bonus"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(125), body["balance"])
	assert.Contains(t, body["warning"], "db down")
	assert.Equal(t, []int64{25}, credits.added)
}

func TestCreditDeductInsufficientBalance(t *testing.T) {
	app := newTestApp(t, &Services{Credits: &stubCredits{deductErr: apperr.ErrInsufficientBalance}}, &testAdmin)
	app.Post("/users/:id/credits/deduct", HandleAdminCreditDeduct)

	resp, body := doJSON(t, app, "POST", "/users/4/credits/deduct", map[string]any{"amount": 500})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Insufficient credit balance", body["message"])
}

func TestInvalidPathID(t *testing.T) {
	app := newTestApp(t, &Services{Credits: &stubCredits{}}, &testAdmin)
	app.Post("/users/:id/credits/add", HandleAdminCreditAdd)

	resp, body := doJSON(t, app, "POST", "/users/abc/credits/add", map[string]any{"amount": 1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "id", body["field"])
}

func TestAssistantCreate(t *testing.T) {
	assistants := &stubAssistants{}
	app := newTestApp(t, &Services{Assistants: assistants}, &testAdmin)
	app.Post("/assistants", HandleAdminAssistantCreate)

	resp, body := doJSON(t, app, "POST", "/assistants", map[string]any{
		"name": "Service Desk", "domain_code": "usm1xx", "credits_per_message": 2,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, assistants.created, 1)
	assert.Equal(t, "usm1xx", assistants.created[0].DomainCode)
	a := body["assistant"].(map[string]any)
	assert.Equal(t, float64(7), a["id"])
}

func TestAssistantCreateValidationError(t *testing.T) {
	ve := &apperr.ValidationError{Message: "invalid assistant", Fields: map[string]string{"domain_code": "Invalid USM code format"}}
	app := newTestApp(t, &Services{Assistants: &stubAssistants{createErr: ve}}, &testAdmin)
	app.Post("/assistants", HandleAdminAssistantCreate)

	resp, body := doJSON(t, app, "POST", "/assistants", map[string]any{"name": "x"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "fields")
}

func TestAssistantCreateMalformedBody(t *testing.T) {
	app := newTestApp(t, &Services{Assistants: &stubAssistants{}}, &testAdmin)
	app.Post("/assistants", HandleAdminAssistantCreate)

	req := httptest.NewRequest("POST", "/assistants", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestActivityExport(t *testing.T) {
	archive := &stubArchive{}
	jobs := &stubJobs{}
	app := newTestApp(t, &Services{Archive: archive, Jobs: jobs}, &testAdmin)
	app.Post("/activity/export", HandleAdminActivityExport)

	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	resp, body := doJSON(t, app, "POST", "/activity/export", map[string]any{"from": from, "to": to})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, archive.exports)
	assert.Contains(t, body, "archive")

	resp, body = doJSON(t, app, "POST", "/activity/export", map[string]any{"from": from, "to": to, "async": true})
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "archive-1", body["job_id"])
	assert.Equal(t, []uint{1}, jobs.archived)

	resp, _ = doJSON(t, app, "POST", "/activity/export", map[string]any{"from": to, "to": from})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestActivityListUnconfigured(t *testing.T) {
	app := newTestApp(t, &Services{Activity: nil}, &testAdmin)
	app.Get("/activity", HandleAdminActivity)
	resp, _ := doJSON(t, app, "GET", "/activity", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestReconcileQueuesJob(t *testing.T) {
	app := newTestApp(t, &Services{Jobs: &stubJobs{}}, &testAdmin)
	app.Post("/simulations/reconcile", HandleAdminSimulationsReconcile)

	resp, body := doJSON(t, app, "POST", "/simulations/reconcile", nil)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "reconcile-1", body["job_id"])
}

func TestAuthMeRequiresLogin(t *testing.T) {
	app := newTestApp(t, &Services{}, nil)
	app.Get("/me", HandleAuthMe)
	resp, _ := doJSON(t, app, "GET", "/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthLogin(t *testing.T) {
	saved := session.GetSessionStore()
	session.SetSessionStore(fsession.New())
	t.Cleanup(func() { session.SetSessionStore(saved) })

	accounts := &stubAccounts{user: &models.User{ID: 3, FullName: "Ada", Email: "ada@example.com", Role: models.ROLE_ADMIN, IsActive: true}}
	app := newTestApp(t, &Services{Accounts: accounts}, nil)
	app.Post("/login", HandleAuthLogin)

	resp, _ := doJSON(t, app, "POST", "/login", map[string]any{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/login", map[string]any{"email": "ada@example.com", "password": "secret-pass"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "user")
	assert.NotEmpty(t, resp.Cookies())

	resp, _ = doJSON(t, app, "POST", "/login", map[string]any{"email": "not-an-email", "password": "x"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
