package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hireloop/assess-api/internal/service"
	"github.com/hireloop/assess-api/internal/utils"
)

// SeedHandler exposes the development-only demo data endpoint.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("", h.seed)
}

func (h *SeedHandler) seed(c *fiber.Ctx) error {
	result, err := h.service.Seed(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "demo data seeded", result)
}
