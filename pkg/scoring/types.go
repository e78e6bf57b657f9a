// Package scoring implements the granular submission review used by the
// gamification area: per-requirement decisions, point aggregation and the
// review session that hands the decisions to the system of record.
package scoring

// ReviewStatus is the decision recorded for a single requirement.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Valid reports whether the status is one of the known review states.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	default:
		return false
	}
}

// SubmissionStatus is the submission-level state stored by the system of record.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
	SubmissionCompleted SubmissionStatus = "completed"
)

// Valid reports whether the status is one of the known submission states.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected, SubmissionCompleted:
		return true
	default:
		return false
	}
}

// EvaluationType selects how a challenge response is evaluated.
type EvaluationType string

const (
	EvaluationQuiz   EvaluationType = "quiz"
	EvaluationText   EvaluationType = "text"
	EvaluationFile   EvaluationType = "file"
	EvaluationQRCode EvaluationType = "qrcode"
	EvaluationNone   EvaluationType = "none"
)

// Valid reports whether the evaluation type is supported.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationQuiz, EvaluationText, EvaluationFile, EvaluationQRCode, EvaluationNone:
		return true
	default:
		return false
	}
}

// SubmissionKind is the evidence a requirement expects.
type SubmissionKind string

const (
	KindFile SubmissionKind = "file"
	KindLink SubmissionKind = "link"
)

// Requirement is a named, point-valued criterion of a file-evaluation challenge.
type Requirement struct {
	ID                 string         `json:"id" yaml:"id"`
	Name               string         `json:"name" yaml:"name"`
	Description        string         `json:"description" yaml:"description"`
	Points             int            `json:"points" yaml:"points"`
	SubmissionKind     SubmissionKind `json:"submissionKind" yaml:"submissionKind"`
	AcceptedCategories []string       `json:"acceptedCategories,omitempty" yaml:"acceptedCategories"`
	MaxSizeBytes       int64          `json:"maxSize,omitempty" yaml:"maxSize"`
}

// RequirementReview is the reviewer's decision for one requirement.
type RequirementReview struct {
	RequirementID string       `json:"requirementId"`
	Status        ReviewStatus `json:"status"`
	Feedback      string       `json:"feedback"`
}

// Totals is the candidate score derived from a review list.
type Totals struct {
	EarnedPoints   int `json:"earnedPoints"`
	PossiblePoints int `json:"possiblePoints"`
	ApprovedCount  int `json:"approvedCount"`
	RejectedCount  int `json:"rejectedCount"`
	PendingCount   int `json:"pendingCount"`
}

// Challenge is the read-only view of a challenge needed during review.
type Challenge struct {
	ID             uint
	Title          string
	EvaluationType EvaluationType
	Points         int
	Requirements   []Requirement
}

// Submission is the persisted state a review session is opened against.
type Submission struct {
	ID            uint
	ChallengeID   uint
	UserID        uint
	Data          Payload
	Status        SubmissionStatus
	Points        int
	AdminFeedback string
	Version       int
}
