package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hireloop/assess-api/internal/dto"
	"github.com/hireloop/assess-api/internal/service"
	"github.com/hireloop/assess-api/internal/utils"
)

// SessionHandler exposes the assessment session endpoints.
type SessionHandler struct {
	sessions    service.SessionService
	submissions service.SubmissionService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions service.SessionService, submissions service.SubmissionService, validator *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		submissions: submissions,
		validator:   validator,
		logger:      logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/:id/start", h.start)
	router.Post("/:id/submissions", h.submit)
	router.Post("/:id/events", h.recordEvent)
	router.Post("/:id/end", h.end)
	router.Get("/:id/evaluation", h.getEvaluation)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateSessionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.sessions.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session scheduled", response)
}

func (h *SessionHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.sessions.Start(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session started", response)
}

func (h *SessionHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.submissions.Submit(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", response)
}

func (h *SessionHandler) recordEvent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AntiCheatEventRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.sessions.RecordEvent(c.Context(), id, payload.EventType)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "event recorded", response)
}

func (h *SessionHandler) end(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.sessions.End(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session ended", response)
}

func (h *SessionHandler) getEvaluation(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.sessions.GetEvaluation(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", response)
}

func (h *SessionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrCandidateNotFound),
		errors.Is(err, service.ErrPositionNotFound),
		errors.Is(err, service.ErrItemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionExpired):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidSessionState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidSessionKind),
		errors.Is(err, service.ErrInvalidEventType),
		errors.Is(err, service.ErrMissingLanguage),
		errors.Is(err, service.ErrNoItemsAvailable):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "language not supported")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("session operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
