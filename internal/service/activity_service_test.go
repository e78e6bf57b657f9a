package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/middleware"
	"github.com/noah-isme/campus-engage-api/internal/repository"
)

func TestActivityServiceRecordMasksSecrets(t *testing.T) {
	db := setupGamificationDB(t, "activity")
	svc := NewActivityService(repository.NewActivityLogRepository(db), zerolog.Nop())

	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-1")
	entry, err := svc.Record(ctx, ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     "Submission.Reviewed",
		EntityType: "challenge_submission",
		EntityID:   uintPtr(5),
		Metadata: map[string]interface{}{
			"email":        "student@example.test",
			"access_token": "abc",
			"status":       "approved",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["access_token"])
	require.Equal(t, "approved", entry.Metadata["status"])
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "submission.reviewed", entry.Action)
	require.Equal(t, "corr-1", entry.CorrelationID)

	_, err = svc.Record(ctx, ActivityEntry{EntityType: "challenge"})
	require.Error(t, err)
}

func TestActivityServiceListFilters(t *testing.T) {
	db := setupGamificationDB(t, "activity_list")
	svc := NewActivityService(repository.NewActivityLogRepository(db), zerolog.Nop())

	for i, action := range []string{"challenge.created", "submission.reviewed", "submission.reviewed"} {
		_, err := svc.Record(context.Background(), ActivityEntry{
			ActorID:    uint(i + 1),
			Action:     action,
			EntityType: "challenge_submission",
			EntityID:   uintPtr(uint(10 + i)),
		})
		require.NoError(t, err)
	}

	list, err := svc.List(context.Background(), dto.AdminActivityListRequest{Action: "submission.reviewed", PageSize: 1, Page: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, int64(2), list.Pagination.TotalItems)
	require.Equal(t, 2, list.Pagination.TotalPages)
	require.Equal(t, "system", list.Items[0].ActorRole)

	byEntity, err := svc.List(context.Background(), dto.AdminActivityListRequest{EntityID: 10})
	require.NoError(t, err)
	require.Len(t, byEntity.Items, 1)
	require.Equal(t, "challenge.created", byEntity.Items[0].Action)
}

func TestActivityServiceListByCorrelationAndWindow(t *testing.T) {
	db := setupGamificationDB(t, "activity_trace")
	svc := NewActivityService(repository.NewActivityLogRepository(db), zerolog.Nop())

	review := middleware.ContextWithCorrelation(context.Background(), "cli-review-1")
	other := middleware.ContextWithCorrelation(context.Background(), "req-2")
	for _, ctx := range []context.Context{review, review, other} {
		_, err := svc.Record(ctx, ActivityEntry{ActorID: 1, Action: "submission.reviewed", EntityType: "challenge_submission"})
		require.NoError(t, err)
	}

	traced, err := svc.List(context.Background(), dto.AdminActivityListRequest{CorrelationID: " cli-review-1 "})
	require.NoError(t, err)
	require.Len(t, traced.Items, 2)

	future := time.Now().Add(time.Hour)
	none, err := svc.List(context.Background(), dto.AdminActivityListRequest{Since: &future})
	require.NoError(t, err)
	require.Empty(t, none.Items)

	all, err := svc.List(context.Background(), dto.AdminActivityListRequest{Until: &future})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
}
