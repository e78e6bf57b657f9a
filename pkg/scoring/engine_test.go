package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRequirements() []Requirement {
	return []Requirement{
		{ID: "r1", Name: "Poster", Points: 10, SubmissionKind: KindFile},
		{ID: "r2", Name: "Report", Points: 20, SubmissionKind: KindFile},
		{ID: "r3", Name: "Link", Points: 5, SubmissionKind: KindLink},
	}
}

func TestComputeTotalsFullyApprovedEarnsEverything(t *testing.T) {
	requirements := sampleRequirements()
	list := InitializeSession(requirements, nil)
	for _, requirement := range requirements {
		list = SetRequirementStatus(list, requirement.ID, ReviewApproved)
	}

	totals := ComputeTotals(requirements, list)
	require.Equal(t, totals.PossiblePoints, totals.EarnedPoints)
	require.Equal(t, 35, totals.EarnedPoints)
	require.Equal(t, 3, totals.ApprovedCount)
}

func TestComputeTotalsEmpty(t *testing.T) {
	require.Equal(t, Totals{}, ComputeTotals(nil, NewReviewList(nil)))
	require.Zero(t, InitializeSession(nil, nil).Len())
}

func TestComputeTotalsPartitionsReviews(t *testing.T) {
	list := NewReviewList([]RequirementReview{
		{RequirementID: "a", Status: ReviewApproved},
		{RequirementID: "b", Status: ReviewRejected},
		{RequirementID: "c", Status: ReviewPending},
		{RequirementID: "d", Status: ReviewApproved},
		{RequirementID: "orphan", Status: ReviewRejected},
	})

	totals := ComputeTotals(nil, list)
	require.Equal(t, list.Len(), totals.ApprovedCount+totals.RejectedCount+totals.PendingCount)
	require.Equal(t, 2, totals.ApprovedCount)
	require.Equal(t, 2, totals.RejectedCount)
	require.Equal(t, 1, totals.PendingCount)
	require.Zero(t, totals.EarnedPoints)
}

func TestComputeTotalsIgnoresUnmatchedReviews(t *testing.T) {
	requirements := []Requirement{{ID: "r1", Points: 10}, {ID: "r2", Points: 4}}
	list := NewReviewList([]RequirementReview{
		{RequirementID: "r1", Status: ReviewApproved},
		{RequirementID: "stale", Status: ReviewApproved},
	})

	totals := ComputeTotals(requirements, list)
	require.Equal(t, 10, totals.EarnedPoints)
	require.Equal(t, 14, totals.PossiblePoints)
}

func TestInitializeSessionSeedsFromPriorReviews(t *testing.T) {
	prior := []RequirementReview{
		{RequirementID: "r2", Status: ReviewRejected, Feedback: "blurry scan"},
		{RequirementID: "gone", Status: ReviewApproved},
	}

	list := InitializeSession(sampleRequirements(), prior)
	require.Equal(t, []RequirementReview{
		{RequirementID: "r1", Status: ReviewPending},
		{RequirementID: "r2", Status: ReviewRejected, Feedback: "blurry scan"},
		{RequirementID: "r3", Status: ReviewPending},
	}, list.Items())
}

func TestInitializeSessionIsIdempotent(t *testing.T) {
	prior := []RequirementReview{{RequirementID: "r1", Status: ReviewApproved, Feedback: "ok"}}

	first := InitializeSession(sampleRequirements(), prior)
	second := InitializeSession(sampleRequirements(), prior)
	require.Equal(t, first.Items(), second.Items())
}

func TestInitializeSessionDefaultsUnknownPriorStatus(t *testing.T) {
	prior := []RequirementReview{{RequirementID: "r1", Status: "maybe", Feedback: "kept"}}

	review, ok := InitializeSession(sampleRequirements(), prior).Lookup("r1")
	require.True(t, ok)
	require.Equal(t, ReviewPending, review.Status)
	require.Equal(t, "kept", review.Feedback)
}

func TestSetRequirementStatusTouchesOnlyTheMatchingEntry(t *testing.T) {
	original := InitializeSession(sampleRequirements(), nil)
	before := original.Items()

	updated := SetRequirementStatus(original, "r2", ReviewApproved)

	require.Equal(t, before, original.Items(), "input list must not change")
	after := updated.Items()
	require.Equal(t, before[0], after[0])
	require.Equal(t, ReviewApproved, after[1].Status)
	require.Equal(t, before[2], after[2])
}

func TestSetRequirementStatusUnknownIDIsNoop(t *testing.T) {
	list := InitializeSession(sampleRequirements(), nil)

	updated := SetRequirementStatus(list, "nonexistent", ReviewApproved)
	require.Equal(t, list.Items(), updated.Items())

	updated = SetRequirementStatus(list, "r1", ReviewStatus("bogus"))
	require.Equal(t, list.Items(), updated.Items())
}

func TestSetRequirementStatusIsReversible(t *testing.T) {
	list := InitializeSession(sampleRequirements(), nil)
	list = SetRequirementStatus(list, "r1", ReviewApproved)
	list = SetRequirementStatus(list, "r1", ReviewRejected)
	list = SetRequirementStatus(list, "r1", ReviewApproved)

	review, _ := list.Lookup("r1")
	require.Equal(t, ReviewApproved, review.Status)
}

func TestSetRequirementFeedbackIndependentOfStatus(t *testing.T) {
	list := InitializeSession(sampleRequirements(), nil)
	list = SetRequirementStatus(list, "r3", ReviewRejected)
	list = SetRequirementFeedback(list, "r3", "link is private")

	review, ok := list.Lookup("r3")
	require.True(t, ok)
	require.Equal(t, ReviewRejected, review.Status)
	require.Equal(t, "link is private", review.Feedback)

	unchanged := SetRequirementFeedback(list, "missing", "x")
	require.Equal(t, list.Items(), unchanged.Items())
}

func TestSingleRequirementApproved(t *testing.T) {
	requirements := []Requirement{{ID: "r1", Points: 10}}
	list := NewReviewList([]RequirementReview{{RequirementID: "r1", Status: ReviewPending}})

	list = SetRequirementStatus(list, "r1", ReviewApproved)

	require.Equal(t, Totals{
		EarnedPoints:   10,
		PossiblePoints: 10,
		ApprovedCount:  1,
	}, ComputeTotals(requirements, list))
}

func TestMixedOutcomes(t *testing.T) {
	requirements := sampleRequirements()
	list := InitializeSession(requirements, nil)
	list = SetRequirementStatus(list, "r1", ReviewApproved)
	list = SetRequirementStatus(list, "r2", ReviewRejected)
	list = SetRequirementStatus(list, "r3", ReviewPending)

	require.Equal(t, Totals{
		EarnedPoints:   10,
		PossiblePoints: 35,
		ApprovedCount:  1,
		RejectedCount:  1,
		PendingCount:   1,
	}, ComputeTotals(requirements, list))
}

func TestNewReviewListKeepsFirstDuplicate(t *testing.T) {
	list := NewReviewList([]RequirementReview{
		{RequirementID: "r1", Status: ReviewApproved},
		{RequirementID: "r1", Status: ReviewRejected},
	})

	require.Equal(t, 1, list.Len())
	review, _ := list.Lookup("r1")
	require.Equal(t, ReviewApproved, review.Status)
}

func TestDeriveOutcome(t *testing.T) {
	requirements := sampleRequirements()

	cases := []struct {
		name     string
		statuses []ReviewStatus
		status   SubmissionStatus
		points   int
	}{
		{name: "pending wins", statuses: []ReviewStatus{ReviewApproved, ReviewPending, ReviewApproved}, status: SubmissionPending, points: 0},
		{name: "all rejected", statuses: []ReviewStatus{ReviewRejected, ReviewRejected, ReviewRejected}, status: SubmissionRejected, points: 0},
		{name: "partial credit", statuses: []ReviewStatus{ReviewApproved, ReviewRejected, ReviewApproved}, status: SubmissionApproved, points: 15},
		{name: "all approved", statuses: []ReviewStatus{ReviewApproved, ReviewApproved, ReviewApproved}, status: SubmissionApproved, points: 35},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list := InitializeSession(requirements, nil)
			for i, status := range tc.statuses {
				list = SetRequirementStatus(list, requirements[i].ID, status)
			}

			status, points, ok := DeriveOutcome(requirements, list)
			require.True(t, ok)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.points, points)
		})
	}
}

func TestDeriveOutcomeMissingReviewCountsAsPending(t *testing.T) {
	list := NewReviewList([]RequirementReview{{RequirementID: "r1", Status: ReviewApproved}})

	status, _, ok := DeriveOutcome(sampleRequirements(), list)
	require.True(t, ok)
	require.Equal(t, SubmissionPending, status)
}

func TestDeriveOutcomeWithoutRequirements(t *testing.T) {
	_, _, ok := DeriveOutcome(nil, NewReviewList(nil))
	require.False(t, ok)
}
