package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/models"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

type stubActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return dto.AdminActivityResponse{Action: entry.Action, EntityType: entry.EntityType, EntityID: entry.EntityID}, nil
}

func (s *stubActivityRecorder) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.Action)
	}
	return out
}

type recordingEventSink struct {
	mu     sync.Mutex
	events []scoring.SubmissionUpdated
}

func (r *recordingEventSink) PublishSubmissionUpdated(_ context.Context, event scoring.SubmissionUpdated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEventSink) published() []scoring.SubmissionUpdated {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scoring.SubmissionUpdated(nil), r.events...)
}

type memoryEvidenceStorage struct {
	folder string
	name   string
	body   []byte
	err    error
}

func (m *memoryEvidenceStorage) Store(_ context.Context, folder, name string, body io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.folder, m.name, m.body = folder, name, data
	return "https://cdn.test/" + folder + "/" + name, nil
}

func setupGamificationDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Challenge{}, &models.ChallengeSubmission{}, &models.ActivityLog{}))
	return db
}

func seedFileChallenge(t *testing.T, db *gorm.DB) models.Challenge {
	t.Helper()

	challenge := models.Challenge{
		Title:          "Campus cleanup",
		EvaluationType: string(scoring.EvaluationFile),
		Active:         true,
	}
	challenge.SetRequirements([]scoring.Requirement{
		{ID: "poster", Name: "Poster", Points: 10, SubmissionKind: scoring.KindFile, AcceptedCategories: []string{"image"}, MaxSizeBytes: 1024},
		{ID: "report", Name: "Report", Points: 20, SubmissionKind: scoring.KindFile, AcceptedCategories: []string{"document"}},
		{ID: "video", Name: "Video link", Points: 5, SubmissionKind: scoring.KindLink},
	})
	require.NoError(t, db.Create(&challenge).Error)
	return challenge
}

func seedChallenge(t *testing.T, db *gorm.DB, evaluation scoring.EvaluationType, points int) models.Challenge {
	t.Helper()

	challenge := models.Challenge{
		Title:          fmt.Sprintf("%s challenge", evaluation),
		EvaluationType: string(evaluation),
		Points:         points,
		Active:         true,
	}
	switch evaluation {
	case scoring.EvaluationQRCode:
		challenge.QRCode = "LIB-2F"
	case scoring.EvaluationQuiz:
		challenge.SetQuiz([]models.QuizQuestion{
			{ID: "q1", Prompt: "Library floor?", Options: []models.QuizOption{{ID: "a", Text: "1"}, {ID: "b", Text: "2", Correct: true}}},
			{ID: "q2", Prompt: "Cafeteria open?", Options: []models.QuizOption{{ID: "a", Text: "yes", Correct: true}, {ID: "b", Text: "no"}}},
			{ID: "q3", Prompt: "Gym floor?", Options: []models.QuizOption{{ID: "a", Text: "0", Correct: true}, {ID: "b", Text: "3"}}},
			{ID: "q4", Prompt: "Dean?", Options: []models.QuizOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B", Correct: true}}},
		})
	}
	require.NoError(t, db.Create(&challenge).Error)
	return challenge
}

func seedSubmission(t *testing.T, db *gorm.DB, challenge models.Challenge, userID uint, payload scoring.Payload) models.ChallengeSubmission {
	t.Helper()

	submission := models.ChallengeSubmission{
		ChallengeID: challenge.ID,
		UserID:      userID,
		Status:      string(scoring.SubmissionPending),
		Version:     1,
	}
	require.NoError(t, submission.SetPayload(payload))
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")
)
