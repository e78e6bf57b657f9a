package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSaveTimeout bounds a single Save call when no timeout is configured.
const DefaultSaveTimeout = 15 * time.Second

var (
	// ErrSessionClosed is returned when a saved or cancelled session is used again.
	ErrSessionClosed = errors.New("review session closed")
	// ErrSaveInProgress is returned when the session is edited or saved while a save is in flight.
	ErrSaveInProgress = errors.New("review save already in progress")
	// ErrSaveFailed marks every error returned by Session.Save.
	ErrSaveFailed = errors.New("review save failed")
	// ErrVersionConflict is reported by persisters when the submission changed since the session opened.
	ErrVersionConflict = errors.New("submission was modified by another reviewer")
	// ErrInvalidReview is reported by persisters when the review itself was refused; resending it cannot succeed.
	ErrInvalidReview = errors.New("review rejected as invalid")
	// ErrInvalidStatus is returned when a requirement is set to an unknown status.
	ErrInvalidStatus = errors.New("invalid review status")
)

// ReviewRequest is the body sent to the system of record on save.
type ReviewRequest struct {
	RequirementReviews []RequirementReview `json:"requirementReviews"`
	AdminFeedback      string              `json:"adminFeedback"`
	Version            int                 `json:"version,omitempty"`
}

// PersistResult is the submission state returned by the system of record.
type PersistResult struct {
	SubmissionID       uint                `json:"submissionId"`
	Status             SubmissionStatus    `json:"status"`
	Points             int                 `json:"points"`
	AdminFeedback      string              `json:"adminFeedback"`
	RequirementReviews []RequirementReview `json:"requirementReviews"`
	Version            int                 `json:"version"`
}

// Persister stores a review. Implementations are the only place where final
// points and status are decided.
type Persister interface {
	SaveReview(ctx context.Context, submissionID uint, request ReviewRequest) (PersistResult, error)
}

// SubmissionUpdated is emitted after a review has been persisted.
type SubmissionUpdated struct {
	SubmissionID uint             `json:"submissionId"`
	ChallengeID  uint             `json:"challengeId"`
	UserID       uint             `json:"userId"`
	Status       SubmissionStatus `json:"status"`
	Points       int              `json:"points"`
	Version      int              `json:"version"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// EventSink receives submission update events.
type EventSink interface {
	PublishSubmissionUpdated(ctx context.Context, event SubmissionUpdated) error
}

// SaveError wraps a failed save. The session keeps its state so the caller can
// retry when Retryable is true.
type SaveError struct {
	SubmissionID uint
	Retryable    bool
	Err          error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save review for submission %d: %v", e.SubmissionID, e.Err)
}

func (e *SaveError) Unwrap() []error {
	return []error{ErrSaveFailed, e.Err}
}

// Option customises a Reviewer.
type Option func(*Reviewer)

// WithEventSink sets the sink notified after successful saves.
func WithEventSink(sink EventSink) Option {
	return func(r *Reviewer) { r.events = sink }
}

// WithSaveTimeout bounds each persister call.
func WithSaveTimeout(timeout time.Duration) Option {
	return func(r *Reviewer) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for non-fatal event delivery failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reviewer) {
		r.logger = logger.With().Str("component", "review_session").Logger()
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reviewer) {
		if now != nil {
			r.now = now
		}
	}
}

// Reviewer opens review sessions backed by a persister.
type Reviewer struct {
	persister Persister
	events    EventSink
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReviewer constructs a Reviewer.
func NewReviewer(persister Persister, opts ...Option) *Reviewer {
	r := &Reviewer{
		persister: persister,
		timeout:   DefaultSaveTimeout,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open starts a review of submission against the challenge's requirements.
func (r *Reviewer) Open(challenge Challenge, submission Submission) *Session {
	requirements := make([]Requirement, len(challenge.Requirements))
	copy(requirements, challenge.Requirements)

	return &Session{
		reviewer:     r,
		challengeID:  challenge.ID,
		submissionID: submission.ID,
		userID:       submission.UserID,
		version:      submission.Version,
		requirements: requirements,
		reviews:      InitializeSession(requirements, PriorReviews(submission.Data)),
		feedback:     submission.AdminFeedback,
	}
}

// Session is one administrator's in-progress review of one submission.
type Session struct {
	reviewer *Reviewer

	challengeID  uint
	submissionID uint
	userID       uint
	version      int
	requirements []Requirement

	mu       sync.Mutex
	reviews  ReviewList
	feedback string
	saving   bool
	closed   bool
}

// SubmissionID returns the submission under review.
func (s *Session) SubmissionID() uint {
	return s.submissionID
}

// Requirements returns the requirement list the session was opened with.
func (s *Session) Requirements() []Requirement {
	out := make([]Requirement, len(s.requirements))
	copy(out, s.requirements)
	return out
}

// Reviews returns the current snapshot of requirement reviews.
func (s *Session) Reviews() ReviewList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviews
}

// OverallFeedback returns the submission-level feedback being edited.
func (s *Session) OverallFeedback() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}

// Totals computes the candidate score for the current snapshot.
func (s *Session) Totals() Totals {
	return ComputeTotals(s.requirements, s.Reviews())
}

// Closed reports whether the session was saved or cancelled.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetStatus records a decision for one requirement. Unknown requirement ids
// are ignored.
func (s *Session) SetStatus(requirementID string, status ReviewStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.edit(func() {
		s.reviews = SetRequirementStatus(s.reviews, requirementID, status)
	})
}

// SetFeedback records feedback for one requirement. Unknown requirement ids
// are ignored.
func (s *Session) SetFeedback(requirementID, feedback string) error {
	return s.edit(func() {
		s.reviews = SetRequirementFeedback(s.reviews, requirementID, feedback)
	})
}

// SetOverallFeedback replaces the submission-level feedback.
func (s *Session) SetOverallFeedback(feedback string) error {
	return s.edit(func() {
		s.feedback = feedback
	})
}

func (s *Session) edit(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.saving {
		return ErrSaveInProgress
	}
	fn()
	return nil
}

// Cancel discards the session without persisting anything.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return ErrSaveInProgress
	}
	s.discard()
	return nil
}

// Save sends the reviews and overall feedback to the persister. On failure the
// session is left open with its state intact.
func (s *Session) Save(ctx context.Context) (PersistResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return PersistResult{}, ErrSessionClosed
	}
	if s.saving {
		s.mu.Unlock()
		return PersistResult{}, ErrSaveInProgress
	}
	s.saving = true
	request := ReviewRequest{
		RequirementReviews: s.reviews.Items(),
		AdminFeedback:      s.feedback,
		Version:            s.version,
	}
	s.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(ctx, s.reviewer.timeout)
	defer cancel()

	result, err := s.reviewer.persister.SaveReview(saveCtx, s.submissionID, request)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		s.mu.Unlock()
		return PersistResult{}, &SaveError{
			SubmissionID: s.submissionID,
			Retryable:    retryable(err),
			Err:          err,
		}
	}
	s.discard()
	s.mu.Unlock()

	s.emit(ctx, result)
	return result, nil
}

func (s *Session) discard() {
	s.closed = true
	s.reviews = ReviewList{}
	s.feedback = ""
}

func (s *Session) emit(ctx context.Context, result PersistResult) {
	if s.reviewer.events == nil {
		return
	}

	event := SubmissionUpdated{
		SubmissionID: s.submissionID,
		ChallengeID:  s.challengeID,
		UserID:       s.userID,
		Status:       result.Status,
		Points:       result.Points,
		Version:      result.Version,
		OccurredAt:   s.reviewer.now().UTC(),
	}
	if err := s.reviewer.events.PublishSubmissionUpdated(ctx, event); err != nil {
		s.reviewer.logger.Warn().Err(err).Uint("submission_id", s.submissionID).Msg("failed to publish submission update")
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrVersionConflict) && !errors.Is(err, ErrInvalidReview)
}
