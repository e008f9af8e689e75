package implementation

import (
	"context"
	"strconv"
	"time"

	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type UserRepositoryImpl struct {
	rdb redis.Cmdable
}

func NewUserRepository(rdb redis.Cmdable) contract.UserRepository {
	return &UserRepositoryImpl{rdb: rdb}
}

func userToFields(u *entity.User) map[string]string {
	return map[string]string{
		"id":           u.Id.String(),
		"email":        u.Email,
		"username":     u.Username,
		"passwordHash": u.PasswordHash,
		"avatar":       u.Avatar,
		"createdAt":    encodeTime(u.CreatedAt),
		"updatedAt":    encodeTimePtr(u.UpdatedAt),
		"lastLoginAt":  encodeTimePtr(u.LastLoginAt),
		"isActive":     strconv.FormatBool(u.IsActive),
	}
}

func fieldsToUser(fields map[string]string) *entity.User {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil
	}
	return &entity.User{
		Id:           id,
		Email:        fields["email"],
		Username:     fields["username"],
		PasswordHash: fields["passwordHash"],
		Avatar:       fields["avatar"],
		CreatedAt:    parseTime(fields["createdAt"]),
		UpdatedAt:    parseTimePtr(fields["updatedAt"]),
		LastLoginAt:  parseTimePtr(fields["lastLoginAt"]),
		IsActive:     fields["isActive"] == "true",
	}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *entity.User) error {
	taken, err := r.rdb.Exists(ctx, emailKey(user.Email)).Result()
	if err != nil {
		return err
	}
	if taken > 0 {
		return contract.ErrEmailExists
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(user.Id), userToFields(user))
		pipe.Set(ctx, emailKey(user.Email), user.Id.String(), 0)
		pipe.SAdd(ctx, usersSetKey, user.Id.String())
		return nil
	})
	return err
}

func (r *UserRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	fields, err := r.rdb.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["id"] == "" {
		return nil, nil
	}
	return fieldsToUser(fields), nil
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	idStr, err := r.rdb.Get(ctx, emailKey(email)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, nil
	}
	return r.FindById(ctx, id)
}

func (r *UserRepositoryImpl) Update(ctx context.Context, id uuid.UUID, upd contract.UserUpdate) (*entity.User, error) {
	fields := map[string]string{
		"updatedAt": encodeTime(time.Now()),
	}
	if upd.Username != nil {
		fields["username"] = *upd.Username
	}
	if upd.Avatar != nil {
		fields["avatar"] = *upd.Avatar
	}
	if upd.PasswordHash != nil {
		fields["passwordHash"] = *upd.PasswordHash
	}
	if upd.IsActive != nil {
		fields["isActive"] = strconv.FormatBool(*upd.IsActive)
	}
	if err := r.rdb.HSet(ctx, userKey(id), fields).Err(); err != nil {
		return nil, err
	}
	return r.FindById(ctx, id)
}

func (r *UserRepositoryImpl) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	return r.rdb.HSet(ctx, userKey(id), "lastLoginAt", encodeTime(time.Now())).Err()
}

func (r *UserRepositoryImpl) Delete(ctx context.Context, user *entity.User) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, userKey(user.Id))
		pipe.Del(ctx, emailKey(user.Email))
		pipe.Del(ctx, userSessionsKey(user.Id))
		pipe.SRem(ctx, usersSetKey, user.Id.String())
		return nil
	})
	return err
}

func (r *UserRepositoryImpl) SessionIds(ctx context.Context, userId uuid.UUID, limit, offset int) ([]uuid.UUID, error) {
	// limit <= 0 reads to the end of the index.
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	members, err := r.rdb.ZRevRange(ctx, userSessionsKey(userId), int64(offset), stop).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if id, err := uuid.Parse(m); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *UserRepositoryImpl) AddSession(ctx context.Context, userId, sessionId uuid.UUID, at time.Time) error {
	return r.rdb.ZAdd(ctx, userSessionsKey(userId), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: sessionId.String(),
	}).Err()
}

func (r *UserRepositoryImpl) RemoveSession(ctx context.Context, userId, sessionId uuid.UUID) error {
	return r.rdb.ZRem(ctx, userSessionsKey(userId), sessionId.String()).Err()
}

func (r *UserRepositoryImpl) SessionCount(ctx context.Context, userId uuid.UUID) (int64, error) {
	return r.rdb.ZCard(ctx, userSessionsKey(userId)).Result()
}
