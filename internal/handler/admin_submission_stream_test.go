package handler_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

func TestSubmissionStreamDeliversFilteredEvents(t *testing.T) {
	f := newGamificationFixture(t, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.app.Listener(listener) }()
	t.Cleanup(func() { _ = f.app.Shutdown() })

	url := "ws://" + listener.Addr().String() + "/api/admin/gamification/submissions/stream?challenge_id=5"
	header := http.Header{"X-Test-User": {"1"}, "X-Test-Role": {"admin"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription starts after the upgrade completes, so keep publishing
	// until the first frame arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		version := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				version++
				_ = f.bus.PublishSubmissionUpdated(context.Background(), scoring.SubmissionUpdated{SubmissionID: 1, ChallengeID: 2, Version: version})
				_ = f.bus.PublishSubmissionUpdated(context.Background(), scoring.SubmissionUpdated{SubmissionID: 9, ChallengeID: 5, Status: scoring.SubmissionApproved, Points: 30, Version: version})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var message struct {
		Type  string                    `json:"type"`
		Event scoring.SubmissionUpdated `json:"event"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	require.Equal(t, "submission.updated", message.Type)
	require.Equal(t, uint(5), message.Event.ChallengeID)
	require.Equal(t, uint(9), message.Event.SubmissionID)
	require.Equal(t, scoring.SubmissionApproved, message.Event.Status)
}

func TestSubmissionStreamRequiresUpgrade(t *testing.T) {
	f := newGamificationFixture(t, nil)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/gamification/submissions/stream", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
