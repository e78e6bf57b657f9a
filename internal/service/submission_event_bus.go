package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/internal/observability"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

const (
	submissionEventBufferSize = 32
	remoteEventDedupWindow    = time.Minute
)

// SubmissionEventBus fans submission updates out to local subscribers and to
// other API nodes through Redis and NATS.
type SubmissionEventBus interface {
	scoring.EventSink
	Subscribe() (<-chan scoring.SubmissionUpdated, func())
	Start(ctx context.Context)
}

type submissionEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu          sync.RWMutex
	subscribers map[chan scoring.SubmissionUpdated]struct{}

	seenMu sync.Mutex
	seen   map[string]time.Time
}

type submissionEnvelope struct {
	Source string                    `json:"source"`
	Type   string                    `json:"type"`
	Event  scoring.SubmissionUpdated `json:"event"`
	SentAt time.Time                 `json:"sent_at"`
}

// NewSubmissionEventBus constructs the event bus. Redis and NATS are optional.
func NewSubmissionEventBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) SubmissionEventBus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":submissions"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".submissions"
	}

	return &submissionEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "submission_event_bus").Logger(),
		nodeID:       uuid.NewString(),
		subscribers:  make(map[chan scoring.SubmissionUpdated]struct{}),
		seen:         make(map[string]time.Time),
	}
}

func (b *submissionEventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		b.consumeNATS(ctx)
	}
}

func (b *submissionEventBus) PublishSubmissionUpdated(ctx context.Context, event scoring.SubmissionUpdated) error {
	observability.SubmissionEvents().WithLabelValues("local").Inc()
	b.broadcast(event)

	payload, err := json.Marshal(submissionEnvelope{
		Source: b.nodeID,
		Type:   "submission.updated",
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *submissionEventBus) Subscribe() (<-chan scoring.SubmissionUpdated, func()) {
	ch := make(chan scoring.SubmissionUpdated, submissionEventBufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *submissionEventBus) broadcast(event scoring.SubmissionUpdated) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn().Uint("submission_id", event.SubmissionID).Msg("dropping submission event for slow subscriber")
		}
	}
}

func (b *submissionEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("submission redis subscription closed")
			return
		}
		b.handleRemote([]byte(msg.Payload))
	}
}

func (b *submissionEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleRemote(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats submissions subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain submission nats subscription")
		}
	}()
}

// handleRemote delivers an event published by another node. The same event can
// arrive over both Redis and NATS, so a node only relays it once per version.
func (b *submissionEventBus) handleRemote(payload []byte) {
	var envelope submissionEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid submission event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	if b.alreadySeen(envelope) {
		return
	}

	observability.SubmissionEvents().WithLabelValues("remote").Inc()
	b.broadcast(envelope.Event)
}

func (b *submissionEventBus) alreadySeen(envelope submissionEnvelope) bool {
	key := fmt.Sprintf("%s:%d:%d", envelope.Source, envelope.Event.SubmissionID, envelope.Event.Version)
	now := time.Now()

	b.seenMu.Lock()
	defer b.seenMu.Unlock()

	for k, at := range b.seen {
		if now.Sub(at) > remoteEventDedupWindow {
			delete(b.seen, k)
		}
	}
	if _, ok := b.seen[key]; ok {
		return true
	}
	b.seen[key] = now
	return false
}
