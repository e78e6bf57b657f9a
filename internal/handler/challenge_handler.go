package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/internal/utils"
)

// ChallengeHandler serves challenge browsing and participation for signed-in users.
type ChallengeHandler struct {
	challenges    service.ChallengeService
	participation service.ParticipationService
	logger        zerolog.Logger
}

// NewChallengeHandler constructs the handler.
func NewChallengeHandler(challenges service.ChallengeService, participation service.ParticipationService, logger zerolog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challenges:    challenges,
		participation: participation,
		logger:        logger.With().Str("component", "challenge_handler").Logger(),
	}
}

// Register attaches participation routes. writeGuards run only in front of the
// submission and evidence upload routes.
func (h *ChallengeHandler) Register(router fiber.Router, writeGuards ...fiber.Handler) {
	router.Get("/challenges", h.list)
	router.Get("/challenges/:id", h.get)
	router.Get("/me/submissions", h.mySubmissions)

	router.Post("/challenges/:id/submissions", chain(writeGuards, h.submit)...)
	router.Post("/challenges/:id/evidence", chain(writeGuards, h.uploadEvidence)...)
}

func (h *ChallengeHandler) list(c *fiber.Ctx) error {
	challenges, err := h.challenges.ListActive(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list challenges")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list challenges")
	}

	return utils.SendSuccess(c, "challenges", challenges)
}

func (h *ChallengeHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	challenge, err := h.challenges.Get(requestContext(c), id)
	if err != nil {
		if errors.Is(err, service.ErrChallengeNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("challenge_id", id).Msg("failed to load challenge")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load challenge")
	}

	return utils.SendSuccess(c, "challenge", challenge)
}

func (h *ChallengeHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	userID := userIDFromContext(c)
	submission, err := h.participation.Submit(requestContext(c), id, userID, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
		case errors.Is(err, service.ErrChallengeInactive):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrAlreadySubmitted):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrQRCodeMismatch),
			errors.Is(err, service.ErrSubmissionIncomplete),
			errors.Is(err, service.ErrUnknownRequirement),
			isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("challenge_id", id).Uint("user_id", userID).Msg("failed to submit challenge")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit challenge")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

func (h *ChallengeHandler) uploadEvidence(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	requirementID := strings.TrimSpace(c.FormValue("requirementId"))
	if requirementID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "requirementId is required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	evidence, err := h.participation.UploadEvidence(requestContext(c), id, userIDFromContext(c), requirementID, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
		case errors.Is(err, service.ErrChallengeInactive):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrEvidenceTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrEvidenceTypeNotAllowed):
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, service.ErrUnknownRequirement), errors.Is(err, service.ErrEvidenceNotFile):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("challenge_id", id).Str("requirement_id", requirementID).Msg("failed to upload evidence")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to upload evidence")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evidence uploaded", evidence)
}

func (h *ChallengeHandler) mySubmissions(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	submissions, err := h.participation.MySubmissions(requestContext(c), userIDFromContext(c), page, pageSize)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions", submissions)
}
