// Package portalclient talks to the engagement portal's admin review API and
// implements scoring.Persister over HTTP.
package portalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// ErrNotFound is returned when the portal does not know the submission.
var ErrNotFound = errors.New("submission not found")

// StatusError is a non-success response from the portal.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal responded %d: %s", e.StatusCode, e.Message)
}

// Config configures the client.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client reads submissions and stores reviews through the portal API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// New constructs a client. BaseURL is the portal origin, e.g. https://portal.example.edu.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("portal base url must be provided")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    httpClient,
		logger:  cfg.Logger.With().Str("component", "portal_client").Logger(),
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submissionWire struct {
	ID             uint            `json:"id"`
	ChallengeID    uint            `json:"challengeId"`
	UserID         uint            `json:"userId"`
	SubmissionData json.RawMessage `json:"submissionData"`
	Status         string          `json:"status"`
	Points         int             `json:"points"`
	AdminFeedback  string          `json:"adminFeedback"`
	Version        int             `json:"version"`
	Challenge      *struct {
		ID             uint   `json:"id"`
		Title          string `json:"title"`
		EvaluationType string `json:"evaluationType"`
	} `json:"challenge"`
}

type detailWire struct {
	Submission   submissionWire        `json:"submission"`
	Requirements []scoring.Requirement `json:"requirements"`
}

type resultWire struct {
	Submission submissionWire `json:"submission"`
}

// Open loads a submission and its challenge requirements for a review session.
func (c *Client) Open(ctx context.Context, submissionID uint) (scoring.Challenge, scoring.Submission, error) {
	var detail detailWire
	if err := c.do(ctx, http.MethodGet, c.submissionPath(submissionID), nil, &detail); err != nil {
		return scoring.Challenge{}, scoring.Submission{}, err
	}

	payload, err := scoring.DecodePayload(detail.Submission.SubmissionData)
	if err != nil {
		return scoring.Challenge{}, scoring.Submission{}, err
	}

	challenge := scoring.Challenge{
		ID:           detail.Submission.ChallengeID,
		Requirements: detail.Requirements,
	}
	if lite := detail.Submission.Challenge; lite != nil {
		challenge.Title = lite.Title
		challenge.EvaluationType = scoring.EvaluationType(lite.EvaluationType)
	}
	for _, requirement := range detail.Requirements {
		challenge.Points += requirement.Points
	}

	return challenge, scoring.Submission{
		ID:            detail.Submission.ID,
		ChallengeID:   detail.Submission.ChallengeID,
		UserID:        detail.Submission.UserID,
		Data:          payload,
		Status:        scoring.SubmissionStatus(detail.Submission.Status),
		Points:        detail.Submission.Points,
		AdminFeedback: detail.Submission.AdminFeedback,
		Version:       detail.Submission.Version,
	}, nil
}

// SaveReview implements scoring.Persister.
func (c *Client) SaveReview(ctx context.Context, submissionID uint, request scoring.ReviewRequest) (scoring.PersistResult, error) {
	if request.RequirementReviews == nil {
		request.RequirementReviews = []scoring.RequirementReview{}
	}

	var result resultWire
	if err := c.do(ctx, http.MethodPut, c.submissionPath(submissionID)+"/review", request, &result); err != nil {
		return scoring.PersistResult{}, err
	}

	persisted := scoring.PersistResult{
		SubmissionID:  result.Submission.ID,
		Status:        scoring.SubmissionStatus(result.Submission.Status),
		Points:        result.Submission.Points,
		AdminFeedback: result.Submission.AdminFeedback,
		Version:       result.Submission.Version,
	}
	if payload, err := scoring.DecodePayload(result.Submission.SubmissionData); err == nil {
		persisted.RequirementReviews = scoring.PriorReviews(payload)
	}
	return persisted, nil
}

func (c *Client) submissionPath(id uint) string {
	return fmt.Sprintf("%s/api/admin/gamification/submissions/%d", c.baseURL, id)
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read portal response: %w", err)
	}
	c.logger.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("portal request")

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		message := strings.TrimSpace(env.Message)
		if decodeErr != nil || message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: message}
		switch resp.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("%w: %w", scoring.ErrVersionConflict, statusErr)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, statusErr)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %w", scoring.ErrInvalidReview, statusErr)
		default:
			return statusErr
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode portal response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode portal data: %w", err)
	}
	return nil
}
