package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

func openSession(t *testing.T) *scoring.Session {
	t.Helper()

	reviewer := scoring.NewReviewer(nil)
	return reviewer.Open(scoring.Challenge{
		ID: 1,
		Requirements: []scoring.Requirement{
			{ID: "poster", Name: "Poster", Points: 10, SubmissionKind: scoring.KindFile},
			{ID: "report", Name: "Report", Points: 20, SubmissionKind: scoring.KindFile},
		},
	}, scoring.Submission{ID: 3, Version: 1, Data: scoring.FilePayload{}})
}

func TestApplyReviewFlags(t *testing.T) {
	session := openSession(t)

	err := applyReviewFlags(session, reviewFlags{
		approve:  []string{"poster"},
		reject:   []string{" report "},
		notes:    []string{"report=Missing = photos"},
		feedback: "Close",
	})
	require.NoError(t, err)

	reviews := session.Reviews()
	poster, _ := reviews.Lookup("poster")
	report, _ := reviews.Lookup("report")
	require.Equal(t, scoring.ReviewApproved, poster.Status)
	require.Equal(t, scoring.ReviewRejected, report.Status)
	require.Equal(t, "Missing = photos", report.Feedback)
	require.Equal(t, "Close", session.OverallFeedback())
	require.Equal(t, 10, session.Totals().EarnedPoints)
}

func TestApplyReviewFlagsRejectsUnknownRequirement(t *testing.T) {
	err := applyReviewFlags(openSession(t), reviewFlags{approve: []string{"video"}})
	require.ErrorIs(t, err, service.ErrUnknownRequirement)

	err = applyReviewFlags(openSession(t), reviewFlags{notes: []string{"poster"}})
	require.Error(t, err)
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())

	for _, name := range []string{"serve", "migrate", "seed", "review"} {
		require.Contains(t, out.String(), name)
	}
}
