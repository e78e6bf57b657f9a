package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-engage-api/internal/middleware"
	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// reviewFlags are the per-requirement edits applied to a review session.
type reviewFlags struct {
	approve  []string
	reject   []string
	reset    []string
	notes    []string
	feedback string
	actorID  uint
	dryRun   bool
}

func newReviewCmd(logger *zerolog.Logger) *cobra.Command {
	var flags reviewFlags

	cmd := &cobra.Command{
		Use:   "review SUBMISSION_ID",
		Short: "Review a file submission requirement by requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid submission id %q", args[0])
			}

			ctx := middleware.ContextWithCorrelation(cmd.Context(), "cli-review-"+uuid.NewString())
			b, err := connect(ctx, *logger, true)
			if err != nil {
				return err
			}
			defer b.close()

			svc, err := b.services()
			if err != nil {
				return err
			}

			challenge, submission, err := svc.reviews.Open(ctx, uint(id))
			if err != nil {
				return err
			}

			reviewer := scoring.NewReviewer(
				service.NewReviewPersister(svc.reviews, service.ActivityActor{ID: flags.actorID, Role: "admin"}),
				scoring.WithSaveTimeout(b.cfg.ReviewSaveTimeout),
				scoring.WithLogger(*logger),
			)
			session := reviewer.Open(challenge, submission)
			if err := applyReviewFlags(session, flags); err != nil {
				_ = session.Cancel()
				return err
			}

			if flags.dryRun {
				totals := session.Totals()
				_ = session.Cancel()
				return printJSON(cmd.OutOrStdout(), totals)
			}

			result, err := session.Save(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringArrayVar(&flags.approve, "approve", nil, "requirement id to approve (repeatable)")
	cmd.Flags().StringArrayVar(&flags.reject, "reject", nil, "requirement id to reject (repeatable)")
	cmd.Flags().StringArrayVar(&flags.reset, "pending", nil, "requirement id to reset to pending (repeatable)")
	cmd.Flags().StringArrayVar(&flags.notes, "note", nil, "requirement feedback as id=text (repeatable)")
	cmd.Flags().StringVar(&flags.feedback, "feedback", "", "overall feedback for the submission")
	cmd.Flags().UintVar(&flags.actorID, "actor", 0, "user id recorded as the reviewer")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the candidate totals without saving")
	return cmd
}

func applyReviewFlags(session *scoring.Session, flags reviewFlags) error {
	known := make(map[string]struct{})
	for _, requirement := range session.Requirements() {
		known[requirement.ID] = struct{}{}
	}
	check := func(id string) (string, error) {
		id = strings.TrimSpace(id)
		if _, ok := known[id]; !ok {
			return "", fmt.Errorf("%w: %s", service.ErrUnknownRequirement, id)
		}
		return id, nil
	}

	groups := []struct {
		ids    []string
		status scoring.ReviewStatus
	}{
		{flags.reset, scoring.ReviewPending},
		{flags.approve, scoring.ReviewApproved},
		{flags.reject, scoring.ReviewRejected},
	}
	for _, group := range groups {
		for _, raw := range group.ids {
			id, err := check(raw)
			if err != nil {
				return err
			}
			if err := session.SetStatus(id, group.status); err != nil {
				return err
			}
		}
	}

	for _, note := range flags.notes {
		raw, text, ok := strings.Cut(note, "=")
		if !ok {
			return fmt.Errorf("note %q must look like id=text", note)
		}
		id, err := check(raw)
		if err != nil {
			return err
		}
		if err := session.SetFeedback(id, strings.TrimSpace(text)); err != nil {
			return err
		}
	}

	if flags.feedback != "" {
		return session.SetOverallFeedback(flags.feedback)
	}
	return nil
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
