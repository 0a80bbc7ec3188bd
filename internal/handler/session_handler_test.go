package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/assess-api/internal/dto"
	"github.com/hireloop/assess-api/internal/handler"
	"github.com/hireloop/assess-api/internal/service"
)

type mockSessionService struct {
	created    dto.SessionResponse
	started    dto.StartSessionResponse
	event      dto.SessionResponse
	ended      dto.EndSessionResponse
	evaluation dto.SessionEvaluationResponse
	err        error

	lastCreate dto.CreateSessionRequest
	lastEvent  string
	lastID     uint
}

func (m *mockSessionService) Create(_ context.Context, req dto.CreateSessionRequest) (dto.SessionResponse, error) {
	m.lastCreate = req
	return m.created, m.err
}

func (m *mockSessionService) Start(_ context.Context, id uint) (dto.StartSessionResponse, error) {
	m.lastID = id
	return m.started, m.err
}

func (m *mockSessionService) RecordEvent(_ context.Context, id uint, eventType string) (dto.SessionResponse, error) {
	m.lastID = id
	m.lastEvent = eventType
	return m.event, m.err
}

func (m *mockSessionService) End(_ context.Context, id uint) (dto.EndSessionResponse, error) {
	m.lastID = id
	return m.ended, m.err
}

func (m *mockSessionService) GetEvaluation(_ context.Context, id uint) (dto.SessionEvaluationResponse, error) {
	m.lastID = id
	return m.evaluation, m.err
}

type mockSubmissionService struct {
	response dto.SubmitResponse
	err      error
	last     dto.SubmitRequest
	lastID   uint
}

func (m *mockSubmissionService) Submit(_ context.Context, sessionID uint, req dto.SubmitRequest) (dto.SubmitResponse, error) {
	m.lastID = sessionID
	m.last = req
	return m.response, m.err
}

func newSessionTestApp(sessions *mockSessionService, submissions *mockSubmissionService) *fiber.App {
	app := fiber.New()
	h := handler.NewSessionHandler(sessions, submissions, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	h.Register(app.Group("/api/v1/sessions"))
	return app
}

func performJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSessionHandler_CreateSuccess(t *testing.T) {
	sessions := &mockSessionService{created: dto.SessionResponse{ID: 7, Kind: "coding_test", Status: "scheduled"}}
	app := newSessionTestApp(sessions, &mockSubmissionService{})

	resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions", dto.CreateSessionRequest{
		Kind: "coding_test", CandidateID: 1, PositionID: 2,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Success bool                `json:"success"`
		Data    dto.SessionResponse `json:"data"`
		Message string              `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, uint(7), body.Data.ID)
	require.Equal(t, uint(2), sessions.lastCreate.PositionID)
}

func TestSessionHandler_CreateValidatesPayload(t *testing.T) {
	sessions := &mockSessionService{}
	app := newSessionTestApp(sessions, &mockSubmissionService{})

	resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"kind": "quiz", "candidate_id": 1, "position_id": 2,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, sessions.lastCreate.Kind, "service must not be reached")
}

func TestSessionHandler_SubmitAccepted(t *testing.T) {
	submissions := &mockSubmissionService{response: dto.SubmitResponse{SubmissionID: 3}}
	app := newSessionTestApp(&mockSessionService{}, submissions)

	resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions/12/submissions", dto.SubmitRequest{
		ItemID: 5, Content: "print('hi')", Language: "python",
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Equal(t, uint(12), submissions.lastID)
	require.Equal(t, uint(5), submissions.last.ItemID)
}

func TestSessionHandler_InvalidIDParam(t *testing.T) {
	app := newSessionTestApp(&mockSessionService{}, &mockSubmissionService{})

	resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions/abc/start", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSessionHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "not found", err: service.ErrSessionNotFound, statusCode: fiber.StatusNotFound},
		{name: "expired", err: service.ErrSessionExpired, statusCode: fiber.StatusForbidden},
		{name: "invalid state", err: service.ErrInvalidSessionState, statusCode: fiber.StatusConflict},
		{name: "no items", err: service.ErrNoItemsAvailable, statusCode: fiber.StatusBadRequest},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &mockSessionService{err: tc.err}
			app := newSessionTestApp(sessions, &mockSubmissionService{})

			resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions/9/start", nil)
			require.Equal(t, tc.statusCode, resp.StatusCode)
			require.Equal(t, uint(9), sessions.lastID)
		})
	}
}

func TestSessionHandler_RecordEventPassesType(t *testing.T) {
	sessions := &mockSessionService{event: dto.SessionResponse{ID: 4, PasteCount: 1}}
	app := newSessionTestApp(sessions, &mockSubmissionService{})

	resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions/4/events", dto.AntiCheatEventRequest{EventType: "paste"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "paste", sessions.lastEvent)
}

func TestSessionHandler_UnknownEventTypeRejected(t *testing.T) {
	sessions := &mockSessionService{err: service.ErrInvalidEventType}
	app := newSessionTestApp(sessions, &mockSubmissionService{})

	resp := performJSON(t, app, http.MethodPost, "/api/v1/sessions/4/events", dto.AntiCheatEventRequest{EventType: "teleport"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSessionHandler_GetEvaluation(t *testing.T) {
	score := 84.0
	sessions := &mockSessionService{evaluation: dto.SessionEvaluationResponse{
		SessionID:     6,
		Status:        "completed",
		SummaryStatus: "completed",
		OverallScore:  &score,
		FinalSummary:  "Strong candidate.",
	}}
	app := newSessionTestApp(sessions, &mockSubmissionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/6/evaluation", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.SessionEvaluationResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "Strong candidate.", body.Data.FinalSummary)
	require.NotNil(t, body.Data.OverallScore)
}
