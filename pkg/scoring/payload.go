package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownSubmissionType is returned when a payload tag is not recognised.
	ErrUnknownSubmissionType = errors.New("unknown submission type")
	// ErrReviewsNotSupported is returned when requirement reviews are attached to
	// a payload that cannot store them.
	ErrReviewsNotSupported = errors.New("payload cannot carry requirement reviews")
)

// Payload is the evaluation-specific body of a submission. The set of
// implementations is closed; switch on the concrete type.
type Payload interface {
	Kind() EvaluationType
	payload()
}

// QuizAnswer is the option a user picked for one quiz question.
type QuizAnswer struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

// QuizPayload holds quiz answers.
type QuizPayload struct {
	Answers []QuizAnswer `json:"answers"`
}

// TextPayload holds a free-text response.
type TextPayload struct {
	Text string `json:"text"`
}

// Evidence is one uploaded file or link answering a requirement.
type Evidence struct {
	RequirementID string `json:"requirementId"`
	URL           string `json:"url"`
	FileName      string `json:"fileName,omitempty"`
	MimeType      string `json:"mimeType,omitempty"`
	SizeBytes     int64  `json:"sizeBytes,omitempty"`
}

// FilePayload holds the evidence list and any persisted requirement reviews.
type FilePayload struct {
	Files              []Evidence          `json:"files"`
	RequirementReviews []RequirementReview `json:"requirementReviews,omitempty"`
}

// QRCodePayload holds the scanned code.
type QRCodePayload struct {
	Code string `json:"code"`
}

// EmptyPayload is used by challenges without evaluation.
type EmptyPayload struct{}

func (QuizPayload) Kind() EvaluationType   { return EvaluationQuiz }
func (TextPayload) Kind() EvaluationType   { return EvaluationText }
func (FilePayload) Kind() EvaluationType   { return EvaluationFile }
func (QRCodePayload) Kind() EvaluationType { return EvaluationQRCode }
func (EmptyPayload) Kind() EvaluationType  { return EvaluationNone }

func (QuizPayload) payload()   {}
func (TextPayload) payload()   {}
func (FilePayload) payload()   {}
func (QRCodePayload) payload() {}
func (EmptyPayload) payload()  {}

type payloadTag struct {
	SubmissionType EvaluationType `json:"submissionType"`
}

// EncodePayload serializes p as a JSON object tagged with submissionType.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = EmptyPayload{}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	tag, err := json.Marshal(p.Kind())
	if err != nil {
		return nil, err
	}
	fields["submissionType"] = tag

	return json.Marshal(fields)
}

// DecodePayload parses a tagged payload produced by EncodePayload.
func DecodePayload(data []byte) (Payload, error) {
	if len(data) == 0 || string(data) == "null" {
		return EmptyPayload{}, nil
	}

	var tag payloadTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode payload tag: %w", err)
	}

	switch tag.SubmissionType {
	case EvaluationQuiz:
		var p QuizPayload
		return decodeInto(data, &p)
	case EvaluationText:
		var p TextPayload
		return decodeInto(data, &p)
	case EvaluationFile:
		var p FilePayload
		return decodeInto(data, &p)
	case EvaluationQRCode:
		var p QRCodePayload
		return decodeInto(data, &p)
	case EvaluationNone, "":
		return EmptyPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubmissionType, tag.SubmissionType)
	}
}

func decodeInto[T Payload](data []byte, target *T) (Payload, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", (*target).Kind(), err)
	}
	return *target, nil
}

// PriorReviews returns the requirement reviews persisted inside a payload.
func PriorReviews(p Payload) []RequirementReview {
	switch v := p.(type) {
	case FilePayload:
		return v.RequirementReviews
	case *FilePayload:
		if v == nil {
			return nil
		}
		return v.RequirementReviews
	default:
		return nil
	}
}

// WithReviews returns a copy of p carrying reviews. Only file payloads hold
// requirement reviews; any other variant fails with ErrReviewsNotSupported.
func WithReviews(p Payload, reviews []RequirementReview) (Payload, error) {
	switch v := p.(type) {
	case FilePayload:
		v.RequirementReviews = reviews
		return v, nil
	case *FilePayload:
		if v == nil {
			return FilePayload{RequirementReviews: reviews}, nil
		}
		clone := *v
		clone.RequirementReviews = reviews
		return clone, nil
	default:
		kind := EvaluationType("unknown")
		if p != nil {
			kind = p.Kind()
		}
		return p, fmt.Errorf("%w: %s", ErrReviewsNotSupported, kind)
	}
}
