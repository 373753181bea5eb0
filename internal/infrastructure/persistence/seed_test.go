package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/disposisi/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "actors": [
    {"id": "a0000000-0000-0000-0000-000000000001", "display_name": "Andi", "role": "kepala_dinas", "org_unit": "Pimpinan"},
    {"id": "a0000000-0000-0000-0000-000000000002", "display_name": "Budi", "role": "sekretaris_dinas", "org_unit": "Sekretariat"}
  ],
  "documents": [
    {"id": "d0000000-0000-0000-0000-000000000001", "subject": "Undangan rapat koordinasi", "sender": "Bappeda", "received_at": "2026-03-02T08:30:00Z"}
  ]
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	t.Run("parses actors and documents", func(t *testing.T) {
		seed, err := LoadSeed(writeSeed(t, seedJSON))
		require.NoError(t, err)

		actors := seed.RoutingActors()
		require.Len(t, actors, 2)
		assert.Equal(t, "Andi", actors[0].DisplayName)
		assert.Equal(t, "kepala_dinas", actors[0].Role)

		docs := seed.RoutingDocuments()
		require.Len(t, docs, 1)
		assert.Equal(t, "Bappeda", docs[0].Sender)
		assert.Equal(t, 2026, docs[0].ReceivedAt.Year())
	})

	t.Run("empty path", func(t *testing.T) {
		seed, err := LoadSeed("")
		require.NoError(t, err)
		assert.Empty(t, seed.RoutingActors())
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed json", content: `{"actors": [`},
		{name: "actor without id", content: `{"actors": [{"display_name": "Andi"}]}`},
		{name: "document without subject", content: `{"documents": [{"id": "d0000000-0000-0000-0000-000000000001"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestSeed_Apply(t *testing.T) {
	db := newSQLiteDatabase(t)
	seed, err := LoadSeed(writeSeed(t, seedJSON))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, seed.Apply(ctx, db.DB))
	require.NoError(t, seed.Apply(ctx, db.DB), "applying twice is a no-op")

	var actors int64
	require.NoError(t, db.DB.Model(&models.ActorModel{}).Count(&actors).Error)
	assert.Equal(t, int64(2), actors)

	var doc models.DocumentModel
	require.NoError(t, db.DB.First(&doc, "id = ?", seed.Documents[0].ID).Error)
	assert.Equal(t, "Undangan rapat koordinasi", doc.Subject)
}
