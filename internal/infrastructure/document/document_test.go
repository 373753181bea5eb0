package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/disposisi/backend/internal/infrastructure/persistence"
	"github.com/disposisi/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticStore(t *testing.T) {
	ctx := context.Background()
	doc := routing.Document{ID: uuid.New(), Subject: "Undangan Rapat Koordinasi", Sender: "Bappeda"}
	store := NewStaticStore(doc)

	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, *got)

	_, err = store.GetDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	later := routing.Document{ID: uuid.New(), Subject: "Laporan Triwulan"}
	store.Put(later)
	_, err = store.GetDocument(ctx, later.ID)
	assert.NoError(t, err)
}

func TestGormStore(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	row := &models.DocumentModel{
		BaseModel:  models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Subject:    "Permohonan Data",
		Sender:     "Dinas Kesehatan",
		ReceivedAt: now,
	}
	require.NoError(t, db.DB.Create(row).Error)

	store := NewGormStore(db.DB)
	doc, err := store.GetDocument(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "Permohonan Data", doc.Subject)
	assert.Equal(t, "Dinas Kesehatan", doc.Sender)

	_, err = store.GetDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

type MockObjectGetter struct {
	mock.Mock
}

func (m *MockObjectGetter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func objectBody(s string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
}

func keyIs(key string) any {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == "surat" && aws.ToString(in.Key) == key
	})
}

func TestS3Store_GetDocument(t *testing.T) {
	ctx := context.Background()
	id := uuid.MustParse("5f0c1d6e-3a7b-4c1e-9f2a-1b2c3d4e5f60")
	key := "metadata/5f0c1d6e-3a7b-4c1e-9f2a-1b2c3d4e5f60.json"

	t.Run("decodes metadata", func(t *testing.T) {
		client := new(MockObjectGetter)
		client.On("GetObject", ctx, keyIs(key)).Return(objectBody(`{
			"id": "5f0c1d6e-3a7b-4c1e-9f2a-1b2c3d4e5f60",
			"subject": "Undangan Rapat",
			"sender": "Sekretariat Daerah",
			"received_at": "2026-03-02T08:00:00Z",
			"attachment_ref": "scans/undangan.pdf"
		}`), nil).Once()

		store := NewS3StoreWithClient(client, "surat", "/metadata/", zap.NewNop())
		doc, err := store.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Undangan Rapat", doc.Subject)
		assert.Equal(t, "scans/undangan.pdf", doc.AttachmentRef)
		assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), doc.ReceivedAt.UTC())
		client.AssertExpectations(t)
	})

	t.Run("missing id is filled from the key", func(t *testing.T) {
		client := new(MockObjectGetter)
		client.On("GetObject", ctx, keyIs(id.String()+".json")).Return(objectBody(`{"subject":"Nota Dinas"}`), nil).Once()

		doc, err := NewS3StoreWithClient(client, "surat", "", nil).GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
	})

	t.Run("missing object is not found", func(t *testing.T) {
		client := new(MockObjectGetter)
		client.On("GetObject", ctx, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

		_, err := NewS3StoreWithClient(client, "surat", "metadata", nil).GetDocument(ctx, id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("mismatched id is rejected", func(t *testing.T) {
		client := new(MockObjectGetter)
		client.On("GetObject", ctx, mock.Anything).Return(objectBody(`{"id":"`+uuid.NewString()+`"}`), nil).Once()

		_, err := NewS3StoreWithClient(client, "surat", "metadata", nil).GetDocument(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		client := new(MockObjectGetter)
		client.On("GetObject", ctx, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		_, err := NewS3StoreWithClient(client, "surat", "metadata", nil).GetDocument(ctx, id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestNewS3Store(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.S3Config{}, nil)
	require.Error(t, err)

	store, err := NewS3Store(context.Background(), config.S3Config{
		Bucket:          "surat",
		Prefix:          "metadata",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		UsePathStyle:    true,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "metadata/"+uuid.Nil.String()+".json", store.Key(uuid.Nil))
}
