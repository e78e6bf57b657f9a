package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ErrMissingCredentials is returned by New when any credential is empty.
var ErrMissingCredentials = errors.New("cloudinary credentials must be provided")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores evidence files in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// Store uploads body under the configured folder joined with subfolder and
// returns the secure URL.
func (s *Service) Store(ctx context.Context, subfolder, name string, body io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       Folder(s.folder, subfolder),
		PublicID:     PublicID(name, s.now()),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, body, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload evidence: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("folder", params.Folder).Msg("evidence uploaded to cloudinary")

	return result.SecureURL, nil
}

// Folder joins the base folder and a subfolder without leading or trailing slashes.
func Folder(base, subfolder string) string {
	joined := path.Join(strings.Trim(base, "/"), strings.Trim(subfolder, "/"))
	if joined == "." {
		return ""
	}
	return strings.Trim(joined, "/")
}

// PublicID derives a URL-safe asset id from the original file name.
func PublicID(name string, at time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "evidence"
	}

	return fmt.Sprintf("%s-%d", base, at.Unix())
}
