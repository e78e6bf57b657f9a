package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/observability"
	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/internal/utils"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// submissionStreamMessage is one frame of the admin submission stream.
type submissionStreamMessage struct {
	Type  string                    `json:"type"`
	Event scoring.SubmissionUpdated `json:"event"`
}

// AdminSubmissionReviewHandler exposes submission review endpoints for admins and teachers.
type AdminSubmissionReviewHandler struct {
	reviews   service.SubmissionReviewService
	assistant service.FeedbackAssistantService
	events    service.SubmissionEventBus
	logger    zerolog.Logger
}

// NewAdminSubmissionReviewHandler constructs the handler. assistant and events may be nil.
func NewAdminSubmissionReviewHandler(reviews service.SubmissionReviewService, assistant service.FeedbackAssistantService, events service.SubmissionEventBus, logger zerolog.Logger) *AdminSubmissionReviewHandler {
	return &AdminSubmissionReviewHandler{
		reviews:   reviews,
		assistant: assistant,
		events:    events,
		logger:    logger.With().Str("component", "admin_submission_review_handler").Logger(),
	}
}

// Register attaches review routes to the router group.
func (h *AdminSubmissionReviewHandler) Register(router fiber.Router) {
	router.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/stream", websocket.New(h.stream))

	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id/review", h.review)
	router.Put("/:id/decision", h.decide)
	router.Post("/:id/feedback-suggestion", h.suggest)
}

func (h *AdminSubmissionReviewHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	challengeID, err := parseQueryUint(c, "challenge_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.SubmissionListRequest{
		Page:        page,
		PageSize:    pageSize,
		ChallengeID: challengeID,
		Status:      strings.TrimSpace(c.Query("status")),
	}

	submissions, err := h.reviews.List(requestContext(c), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions", submissions)
}

func (h *AdminSubmissionReviewHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.reviews.Get(requestContext(c), id)
	if err != nil {
		return h.fail(c, err, id, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission", detail)
}

func (h *AdminSubmissionReviewHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GranularReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.reviews.ReviewGranular(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.fail(c, err, id, "failed to save review")
	}

	return utils.SendSuccess(c, "review saved", result)
}

func (h *AdminSubmissionReviewHandler) decide(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.reviews.ReviewDecision(requestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.fail(c, err, id, "failed to save decision")
	}

	return utils.SendSuccess(c, "decision saved", result)
}

type feedbackSuggestionRequest struct {
	Draft string `json:"draft"`
}

func (h *AdminSubmissionReviewHandler) suggest(c *fiber.Ctx) error {
	if h.assistant == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, service.ErrAssistantUnavailable.Error())
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload feedbackSuggestionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	suggestion, err := h.assistant.Suggest(requestContext(c), id, payload.Draft)
	if err != nil {
		if errors.Is(err, service.ErrAssistantUnavailable) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		}
		return h.fail(c, err, id, "failed to draft feedback")
	}

	return utils.SendSuccess(c, "feedback suggestion", suggestion)
}

func (h *AdminSubmissionReviewHandler) fail(c *fiber.Ctx, err error, id uint, message string) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, scoring.ErrVersionConflict):
		return utils.SendError(c, fiber.StatusConflict, "submission was changed by another reviewer; reload and try again")
	case errors.Is(err, service.ErrPointsExceedMax), errors.Is(err, service.ErrReviewNotStorable):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrGranularReviewRequired), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}

// stream pushes submission.updated events until the client disconnects.
// An optional challenge_id query parameter narrows the stream.
func (h *AdminSubmissionReviewHandler) stream(conn *websocket.Conn) {
	if h.events == nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "event stream unavailable"))
		_ = conn.Close()
		return
	}

	var challengeID uint
	if raw := strings.TrimSpace(conn.Query("challenge_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid challenge_id"))
			_ = conn.Close()
			return
		}
		challengeID = uint(parsed)
	}

	events, cancel := h.events.Subscribe()
	defer cancel()

	gauge := observability.StreamClientsActive()
	gauge.Inc()
	defer gauge.Dec()

	logger := h.logger.With().Interface("user_id", conn.Locals("user_id")).Logger()
	logger.Info().Msg("submission stream connected")
	defer logger.Info().Msg("submission stream disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if challengeID != 0 && event.ChallengeID != challengeID {
				continue
			}
			if err := conn.WriteJSON(submissionStreamMessage{Type: "submission.updated", Event: event}); err != nil {
				logger.Debug().Err(err).Msg("submission stream write failed")
				return
			}
		}
	}
}
