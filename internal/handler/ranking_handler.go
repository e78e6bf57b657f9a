package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/internal/utils"
)

// RankingHandler serves the gamification leaderboard.
type RankingHandler struct {
	service service.RankingService
	logger  zerolog.Logger
}

// NewRankingHandler constructs the handler.
func NewRankingHandler(service service.RankingService, logger zerolog.Logger) *RankingHandler {
	return &RankingHandler{
		service: service,
		logger:  logger.With().Str("component", "ranking_handler").Logger(),
	}
}

// Register attaches the leaderboard route.
func (h *RankingHandler) Register(router fiber.Router) {
	router.Get("/ranking", h.top)
}

func (h *RankingHandler) top(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	ranking, err := h.service.Top(requestContext(c), limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load ranking")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load ranking")
	}

	return utils.SendSuccess(c, "ranking", ranking)
}
