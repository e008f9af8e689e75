package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/implementation"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/pkg/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures events instead of pushing them onto a bus.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	userRepo    contract.UserRepository
	sessionRepo contract.SessionRepository
	messageRepo contract.MessageRepository
	imageRepo   contract.ImageRepository
	cache       *memory.SessionCache
	publisher   *recordingPublisher

	sessions ISessionService
	messages IMessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := &fixture{
		userRepo:    implementation.NewUserRepository(rdb),
		sessionRepo: implementation.NewSessionRepository(rdb),
		messageRepo: implementation.NewMessageRepository(rdb),
		imageRepo:   implementation.NewImageRepository(rdb),
		cache:       memory.NewSessionCache(),
		publisher:   &recordingPublisher{},
	}
	f.sessions = NewSessionService(f.sessionRepo, f.messageRepo, f.cache, f.publisher, logger.Noop{})
	f.messages = NewMessageService(f.messageRepo, f.sessionRepo, f.imageRepo, f.cache, f.publisher, logger.Noop{})
	return f
}

func (f *fixture) createSession(t *testing.T, userId uuid.UUID) uuid.UUID {
	t.Helper()
	res, err := f.sessions.Create(context.Background(), userId, &dto.CreateSessionRequest{Title: "chat"})
	require.NoError(t, err)
	return res.Id
}

func (f *fixture) createImage(t *testing.T, userId, sessionId uuid.UUID) uuid.UUID {
	t.Helper()
	img := &entity.Image{
		Id:        uuid.New(),
		SessionId: sessionId,
		UserId:    userId,
		Type:      entity.ImageTypeGenerated,
		Path:      "/uploads/img.png",
		Mime:      "image/png",
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.imageRepo.Create(context.Background(), img))
	return img.Id
}

func (f *fixture) refCount(t *testing.T, imageId uuid.UUID) int {
	t.Helper()
	img, err := f.imageRepo.FindById(context.Background(), imageId)
	require.NoError(t, err)
	require.NotNil(t, img)
	return img.RefCount
}

func TestMessageService_CreateWithImagesTakesReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)
	imageId := f.createImage(t, userId, sessionId)

	msg, err := f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleUser,
		Text:      "make it bluer",
		ImageIds:  []uuid.UUID{imageId},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.refCount(t, imageId))

	sess, err := f.sessions.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.MessageCount)

	created := f.publisher.ofType(events.TypeMessageCreated)
	require.Len(t, created, 1)
	assert.Equal(t, msg.Id.String(), created[0].Payload()["message_id"])
}

func TestMessageService_CreateRejectsUnknownImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)

	_, err := f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleUser,
		ImageIds:  []uuid.UUID{uuid.New()},
	})
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, kind)
}

func TestMessageService_CreateForeignSessionForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := uuid.New()
	sessionId := f.createSession(t, owner)

	_, err := f.messages.Create(ctx, uuid.New(), &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleUser,
		Text:      "hi",
	})
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindForbidden, kind)
}

func TestMessageService_DeleteReleasesReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)
	imageId := f.createImage(t, userId, sessionId)

	msg, err := f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleAssistant,
		ImageIds:  []uuid.UUID{imageId},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.refCount(t, imageId))

	require.NoError(t, f.messages.Delete(ctx, userId, msg.Id))

	assert.Equal(t, 0, f.refCount(t, imageId))
	img, err := f.imageRepo.FindById(ctx, imageId)
	require.NoError(t, err)
	assert.True(t, img.MarkedForDeletion())

	// The zero crossing raises exactly one unreferenced event.
	unref := f.publisher.ofType(events.TypeImageUnreferenced)
	require.Len(t, unref, 1)
	assert.Equal(t, imageId.String(), unref[0].Payload()["image_id"])

	sess, err := f.sessions.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.MessageCount)
}

func TestMessageService_SharedImageSurvivesOneDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)
	imageId := f.createImage(t, userId, sessionId)

	first, err := f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleAssistant,
		ImageIds:  []uuid.UUID{imageId},
	})
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleUser,
		ImageIds:  []uuid.UUID{imageId},
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.refCount(t, imageId))

	require.NoError(t, f.messages.Delete(ctx, userId, first.Id))

	assert.Equal(t, 1, f.refCount(t, imageId))
	img, err := f.imageRepo.FindById(ctx, imageId)
	require.NoError(t, err)
	assert.False(t, img.MarkedForDeletion())
	assert.Empty(t, f.publisher.ofType(events.TypeImageUnreferenced))
}

func TestMessageService_AddAndRemoveImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)
	imageId := f.createImage(t, userId, sessionId)

	msg, err := f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleUser,
		Text:      "plain",
	})
	require.NoError(t, err)

	updated, err := f.messages.AddImage(ctx, userId, msg.Id, imageId)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{imageId}, updated.ImageIds)
	assert.Equal(t, 1, f.refCount(t, imageId))

	// Attaching the same image twice is rejected before any refcount change.
	_, err = f.messages.AddImage(ctx, userId, msg.Id, imageId)
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, kind)
	assert.Equal(t, 1, f.refCount(t, imageId))

	updated, err = f.messages.RemoveImage(ctx, userId, msg.Id, imageId)
	require.NoError(t, err)
	assert.Empty(t, updated.ImageIds)
	assert.Equal(t, 0, f.refCount(t, imageId))
}

func TestSessionService_HardDeleteLeavesImageRefsUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	sessionId := f.createSession(t, userId)
	imageId := f.createImage(t, userId, sessionId)

	msg, err := f.messages.Create(ctx, userId, &dto.CreateMessageRequest{
		SessionId: sessionId,
		Role:      entity.RoleAssistant,
		ImageIds:  []uuid.UUID{imageId},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.refCount(t, imageId))

	// Hard delete removes message records wholesale without walking their
	// image lists; the orphaned reference stays until a sweep reconciles it.
	require.NoError(t, f.sessions.HardDelete(ctx, userId, sessionId))

	gone, err := f.messageRepo.FindById(ctx, msg.Id)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, 1, f.refCount(t, imageId))
}

func TestSessionService_SoftDeleteHiddenFromListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userId := uuid.New()
	keep := f.createSession(t, userId)
	drop := f.createSession(t, userId)

	require.NoError(t, f.sessions.SoftDelete(ctx, userId, drop))

	list, err := f.sessions.GetAll(ctx, userId, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep, list[0].Id)

	// Still retrievable directly.
	shown, err := f.sessions.Show(ctx, userId, drop)
	require.NoError(t, err)
	assert.NotNil(t, shown.DeletedAt)
}
