package implementation

import (
	"context"
	"testing"
	"time"

	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(email string) *entity.User {
	return &entity.User{
		Id:           uuid.New(),
		Email:        email,
		Username:     "tester",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Now(),
		IsActive:     true,
	}
}

func TestUserRepository_CreateEnforcesUniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestClient(t))

	first := testUser("a@example.com")
	require.NoError(t, repo.Create(ctx, first))

	dup := testUser("a@example.com")
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, contract.ErrEmailExists)

	got, err := repo.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.Id, got.Id)
}

func TestUserRepository_DeleteRemovesIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestClient(t))

	user := testUser("b@example.com")
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.AddSession(ctx, user.Id, uuid.New(), time.Now()))

	require.NoError(t, repo.Delete(ctx, user))

	got, err := repo.FindById(ctx, user.Id)
	require.NoError(t, err)
	assert.Nil(t, got)

	byEmail, err := repo.FindByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)

	count, err := repo.SessionCount(ctx, user.Id)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUserRepository_SessionRecencyIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestClient(t))

	user := testUser("c@example.com")
	require.NoError(t, repo.Create(ctx, user))

	older, newer := uuid.New(), uuid.New()
	require.NoError(t, repo.AddSession(ctx, user.Id, older, time.Now().Add(-time.Hour)))
	require.NoError(t, repo.AddSession(ctx, user.Id, newer, time.Now()))

	ids, err := repo.SessionIds(ctx, user.Id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newer, older}, ids)

	require.NoError(t, repo.RemoveSession(ctx, user.Id, newer))
	ids, err = repo.SessionIds(ctx, user.Id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{older}, ids)
}
