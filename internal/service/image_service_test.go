package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlobStore keeps uploads in memory and can be told to fail deletes.
type fakeBlobStore struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	failDeletes bool
	deletes     int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (s *fakeBlobStore) Upload(_ context.Context, data []byte, path string, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = data
	return "/uploads/" + path, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.failDeletes {
		return errors.New("blob store down")
	}
	delete(s.blobs, path)
	return nil
}

// tiny valid PNG header plus IHDR, enough for mime sniffing and decoding config.
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89,
}

func newImageFixture(t *testing.T) (*fixture, *fakeBlobStore, IImageService) {
	t.Helper()
	f := newFixture(t)
	blobs := newFakeBlobStore()
	svc := NewImageService(f.imageRepo, f.sessionRepo, f.cache, blobs, logger.Noop{})
	return f, blobs, svc
}

func TestImageService_UploadAndList(t *testing.T) {
	ctx := context.Background()
	f, blobs, svc := newImageFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	img, err := svc.Upload(ctx, userId, sessionId, "photo.png", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, entity.ImageTypeUploaded, img.Type)
	assert.Equal(t, "image/png", img.Mime)
	assert.Equal(t, 0, img.RefCount)
	assert.Len(t, blobs.blobs, 1)

	list, err := svc.ListBySession(ctx, userId, sessionId)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, img.Id, list[0].Id)

	byType, err := svc.ListByUser(ctx, userId, entity.ImageTypeUploaded)
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	generated, err := svc.ListByUser(ctx, userId, entity.ImageTypeGenerated)
	require.NoError(t, err)
	assert.Empty(t, generated)
}

func TestImageService_UploadRejectsNonImage(t *testing.T) {
	ctx := context.Background()
	f, _, svc := newImageFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	_, err := svc.Upload(ctx, userId, sessionId, "notes.txt", []byte("plain text, not pixels"))
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, kind)
}

func TestImageService_UploadBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f, _, svc := newImageFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	res := svc.UploadBatch(ctx, userId, sessionId, map[string][]byte{
		"good.png": pngBytes,
		"bad.txt":  []byte("not an image at all"),
	}, []string{"good.png", "bad.txt"})

	require.Len(t, res.Results, 2)
	assert.NotNil(t, res.Results[0].Image)
	assert.Empty(t, res.Results[0].Error)
	assert.Nil(t, res.Results[1].Image)
	assert.NotEmpty(t, res.Results[1].Error)
}

func TestImageService_SweepReclaimsZeroRefImages(t *testing.T) {
	ctx := context.Background()
	f, _, svc := newImageFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	// referenced: one live message reference, never swept.
	referenced := f.createImage(t, userId, sessionId)
	_, err := f.imageRepo.IncrementRef(ctx, referenced)
	require.NoError(t, err)

	// orphan: had a reference and lost it.
	orphan := f.createImage(t, userId, sessionId)
	_, err = f.imageRepo.IncrementRef(ctx, orphan)
	require.NoError(t, err)
	_, err = f.imageRepo.DecrementRef(ctx, orphan)
	require.NoError(t, err)

	// never claimed by any message; zero refs makes it sweepable too.
	unclaimed := f.createImage(t, userId, sessionId)

	result := svc.SweepUnreferenced(ctx, contract.ImageScope{})
	assert.Equal(t, 2, result.Deleted)
	assert.Zero(t, result.Failed)

	gone, err := f.imageRepo.FindById(ctx, orphan)
	require.NoError(t, err)
	assert.Nil(t, gone)

	gone, err = f.imageRepo.FindById(ctx, unclaimed)
	require.NoError(t, err)
	assert.Nil(t, gone)

	still, err := f.imageRepo.FindById(ctx, referenced)
	require.NoError(t, err)
	assert.NotNil(t, still)

	// Idempotent: a second sweep finds nothing.
	result = svc.SweepUnreferenced(ctx, contract.ImageScope{})
	assert.Zero(t, result.Deleted)
	assert.Zero(t, result.Failed)
}

func TestImageService_SweepHonorsScope(t *testing.T) {
	ctx := context.Background()
	f, _, svc := newImageFixture(t)

	alice := uuid.New()
	bob := uuid.New()
	aliceSession := f.createSession(t, alice)
	bobSession := f.createSession(t, bob)

	aliceOrphan := f.createImage(t, alice, aliceSession)
	bobOrphan := f.createImage(t, bob, bobSession)

	result := svc.SweepUnreferenced(ctx, contract.ImageScope{UserId: &alice})
	assert.Equal(t, 1, result.Deleted)

	gone, err := f.imageRepo.FindById(ctx, aliceOrphan)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := f.imageRepo.FindById(ctx, bobOrphan)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestImageService_SweepSwallowsBlobFailures(t *testing.T) {
	ctx := context.Background()
	f, blobs, svc := newImageFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	orphan := f.createImage(t, userId, sessionId)
	_, err := f.imageRepo.IncrementRef(ctx, orphan)
	require.NoError(t, err)
	_, err = f.imageRepo.DecrementRef(ctx, orphan)
	require.NoError(t, err)

	blobs.failDeletes = true
	result := svc.SweepUnreferenced(ctx, contract.ImageScope{})

	// Blob cleanup failure does not block record removal.
	assert.Equal(t, 1, result.Deleted)
	assert.Zero(t, result.Failed)

	gone, err := f.imageRepo.FindById(ctx, orphan)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestImageService_ReclaimSkipsReferenced(t *testing.T) {
	ctx := context.Background()
	f, _, svc := newImageFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	imageId := f.createImage(t, userId, sessionId)
	_, err := f.imageRepo.IncrementRef(ctx, imageId)
	require.NoError(t, err)

	require.NoError(t, svc.Reclaim(ctx, imageId))

	still, err := f.imageRepo.FindById(ctx, imageId)
	require.NoError(t, err)
	assert.NotNil(t, still)

	// Absent id is a no-op too.
	require.NoError(t, svc.Reclaim(ctx, uuid.New()))
}

func TestImageService_ShowForeignImageForbidden(t *testing.T) {
	ctx := context.Background()
	f, _, svc := newImageFixture(t)
	owner := uuid.New()
	sessionId := f.createSession(t, owner)
	imageId := f.createImage(t, owner, sessionId)

	_, err := svc.Show(ctx, uuid.New(), imageId)
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindForbidden, kind)

	res, err := svc.Show(ctx, owner, imageId)
	require.NoError(t, err)
	assert.Equal(t, imageId, res.Id)
}
