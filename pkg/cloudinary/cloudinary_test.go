package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFolderJoinsSegments(t *testing.T) {
	require.Equal(t, "engage/evidence/challenge-4", Folder("/engage/evidence/", "challenge-4/"))
	require.Equal(t, "engage/evidence", Folder("engage/evidence", ""))
	require.Equal(t, "", Folder("", ""))
}

func TestPublicIDSanitizesName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	require.Equal(t, "my-poster--final-1700000000", PublicID("my poster (final.png", at))
	require.Equal(t, "evidence-1700000000", PublicID("???.pdf", at))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.ErrorIs(t, err, ErrMissingCredentials)
}
