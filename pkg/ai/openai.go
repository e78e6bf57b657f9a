package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "engage",
		Subsystem: "ai",
		Name:      "feedback_duration_seconds",
		Help:      "Duration of AI feedback suggestion requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engage",
		Subsystem: "ai",
		Name:      "feedback_failures_total",
		Help:      "Number of failed AI feedback suggestions",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI assistant.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAssistant implements FeedbackAssistant against the chat completion API.
type OpenAIAssistant struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAssistant builds an assistant using the provided configuration.
func NewOpenAIAssistant(cfg OpenAIConfig) (*OpenAIAssistant, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIAssistant{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/campus-engage-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_assistant").Logger(),
	}, nil
}

// SuggestFeedback asks the model for an overall feedback draft.
func (a *OpenAIAssistant) SuggestFeedback(parent context.Context, input FeedbackInput) (FeedbackSuggestion, error) {
	ctx, span := a.tracer.Start(parent, "openai.suggest_feedback", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.String("challenge.evaluation_type", input.EvaluationType),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistantSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildFeedbackPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return FeedbackSuggestion{}, a.fail(span, fmt.Errorf("openai suggest feedback: %w", err))
	}
	if len(resp.Choices) == 0 {
		return FeedbackSuggestion{}, a.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	feedback, err := parseFeedbackResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return FeedbackSuggestion{}, a.fail(span, err)
	}

	a.logger.Debug().Int("total_tokens", resp.Usage.TotalTokens).Msg("feedback suggestion generated")

	return FeedbackSuggestion{Feedback: feedback, Model: a.cfg.Model}, nil
}

func (a *OpenAIAssistant) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(a.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func assistantSystemPrompt() string {
	return "You help university staff review student challenge submissions. Respond with a JSON object " +
		"with a single field feedback: two to four encouraging sentences addressed to the student " +
		"that summarise what was approved and what must be fixed. Never mention points you were not given."
}

func buildFeedbackPrompt(input FeedbackInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Challenge\n")
	builder.WriteString(input.ChallengeTitle)
	if input.Description != "" {
		builder.WriteString("\n\n## Description\n")
		builder.WriteString(input.Description)
	}
	builder.WriteString("\n\n## Evaluation type\n")
	builder.WriteString(input.EvaluationType)
	if input.Submission != "" {
		builder.WriteString("\n\n## Submission\n")
		builder.WriteString(input.Submission)
	}
	if len(input.Requirements) > 0 {
		builder.WriteString("\n\n## Requirements\n")
		for _, requirement := range input.Requirements {
			fmt.Fprintf(&builder, "- %s (%d pts): %s", requirement.Name, requirement.Points, requirement.Status)
			if requirement.Feedback != "" {
				fmt.Fprintf(&builder, " (reviewer note: %s)", requirement.Feedback)
			}
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "\nScore so far: %d of %d\n", input.EarnedPoints, input.PossiblePoints)
	}
	if input.DraftFeedback != "" {
		builder.WriteString("\n## Reviewer draft\n")
		builder.WriteString(input.DraftFeedback)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseFeedbackResponse(content string) (string, error) {
	var data struct {
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &data); err != nil {
		return "", fmt.Errorf("parse feedback json: %w", err)
	}
	feedback := strings.TrimSpace(data.Feedback)
	if feedback == "" {
		return "", fmt.Errorf("empty feedback returned from openai")
	}
	return feedback, nil
}
