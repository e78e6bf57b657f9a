package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/internal/utils"
)

// AdminChallengeHandler exposes challenge management for admins and teachers.
type AdminChallengeHandler struct {
	service service.ChallengeService
	logger  zerolog.Logger
}

// NewAdminChallengeHandler constructs the handler.
func NewAdminChallengeHandler(service service.ChallengeService, logger zerolog.Logger) *AdminChallengeHandler {
	return &AdminChallengeHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_challenge_handler").Logger(),
	}
}

// Register attaches challenge management routes to the router group.
func (h *AdminChallengeHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
}

func (h *AdminChallengeHandler) create(c *fiber.Ctx) error {
	var payload dto.ChallengeCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	challenge, err := h.service.Create(requestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		return h.fail(c, err, "failed to create challenge")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "challenge created", challenge)
}

func (h *AdminChallengeHandler) list(c *fiber.Ctx) error {
	challenges, err := h.service.AdminList(requestContext(c))
	if err != nil {
		return h.fail(c, err, "failed to list challenges")
	}

	return utils.SendSuccess(c, "challenges", challenges)
}

func (h *AdminChallengeHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	challenge, err := h.service.AdminGet(requestContext(c), id)
	if err != nil {
		return h.fail(c, err, "failed to load challenge")
	}

	return utils.SendSuccess(c, "challenge", challenge)
}

func (h *AdminChallengeHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ChallengeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	challenge, err := h.service.Update(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.fail(c, err, "failed to update challenge")
	}

	return utils.SendSuccess(c, "challenge updated", challenge)
}

func (h *AdminChallengeHandler) fail(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrChallengeNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
	case errors.Is(err, service.ErrInvalidChallenge), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
