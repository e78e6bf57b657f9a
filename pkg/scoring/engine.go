package scoring

// ReviewList is an immutable ordered set of requirement reviews keyed by
// requirement id. Iteration order is insertion order.
type ReviewList struct {
	items []RequirementReview
	index map[string]int
}

// NewReviewList builds a list from reviews. When an id repeats, the first
// occurrence is kept.
func NewReviewList(reviews []RequirementReview) ReviewList {
	items := make([]RequirementReview, 0, len(reviews))
	index := make(map[string]int, len(reviews))
	for _, review := range reviews {
		if _, exists := index[review.RequirementID]; exists {
			continue
		}
		index[review.RequirementID] = len(items)
		items = append(items, review)
	}

	return ReviewList{items: items, index: index}
}

// Len returns the number of reviews.
func (l ReviewList) Len() int {
	return len(l.items)
}

// Items returns a copy of the reviews in order.
func (l ReviewList) Items() []RequirementReview {
	out := make([]RequirementReview, len(l.items))
	copy(out, l.items)
	return out
}

// Lookup returns the review for requirementID.
func (l ReviewList) Lookup(requirementID string) (RequirementReview, bool) {
	pos, ok := l.index[requirementID]
	if !ok {
		return RequirementReview{}, false
	}
	return l.items[pos], true
}

// update applies fn to a copy of the matching entry. The index map is shared
// between versions because positions never change after construction.
func (l ReviewList) update(requirementID string, fn func(*RequirementReview)) ReviewList {
	pos, ok := l.index[requirementID]
	if !ok {
		return l
	}

	items := make([]RequirementReview, len(l.items))
	copy(items, l.items)
	fn(&items[pos])

	return ReviewList{items: items, index: l.index}
}

// InitializeSession produces one review per requirement in requirement order,
// seeded from prior reviews when one matches, otherwise pending.
func InitializeSession(requirements []Requirement, prior []RequirementReview) ReviewList {
	persisted := NewReviewList(prior)

	reviews := make([]RequirementReview, 0, len(requirements))
	for _, requirement := range requirements {
		review := RequirementReview{
			RequirementID: requirement.ID,
			Status:        ReviewPending,
		}
		if previous, ok := persisted.Lookup(requirement.ID); ok {
			if previous.Status.Valid() {
				review.Status = previous.Status
			}
			review.Feedback = previous.Feedback
		}
		reviews = append(reviews, review)
	}

	return NewReviewList(reviews)
}

// SetRequirementStatus returns a list where the matching review carries status.
// Unknown ids and invalid statuses leave the list unchanged.
func SetRequirementStatus(list ReviewList, requirementID string, status ReviewStatus) ReviewList {
	if !status.Valid() {
		return list
	}
	return list.update(requirementID, func(review *RequirementReview) {
		review.Status = status
	})
}

// SetRequirementFeedback returns a list where the matching review carries feedback.
func SetRequirementFeedback(list ReviewList, requirementID string, feedback string) ReviewList {
	return list.update(requirementID, func(review *RequirementReview) {
		review.Feedback = feedback
	})
}

// ComputeTotals aggregates points over requirements and counts reviews by status.
// Possible points ignore review state; earned points only include requirements
// whose review is approved.
func ComputeTotals(requirements []Requirement, list ReviewList) Totals {
	var totals Totals

	for _, requirement := range requirements {
		totals.PossiblePoints += requirement.Points
		if review, ok := list.Lookup(requirement.ID); ok && review.Status == ReviewApproved {
			totals.EarnedPoints += requirement.Points
		}
	}

	for _, review := range list.items {
		switch review.Status {
		case ReviewApproved:
			totals.ApprovedCount++
		case ReviewRejected:
			totals.RejectedCount++
		default:
			totals.PendingCount++
		}
	}

	return totals
}

// DeriveOutcome computes the submission status and awarded points for a
// granular review. A requirement-less challenge reports ok=false so callers
// keep the stored status and points.
func DeriveOutcome(requirements []Requirement, list ReviewList) (status SubmissionStatus, points int, ok bool) {
	if len(requirements) == 0 {
		return "", 0, false
	}

	matched := InitializeSession(requirements, list.items)
	totals := ComputeTotals(requirements, matched)

	switch {
	case totals.PendingCount > 0:
		return SubmissionPending, 0, true
	case totals.ApprovedCount == 0:
		return SubmissionRejected, 0, true
	default:
		return SubmissionApproved, totals.EarnedPoints, true
	}
}
