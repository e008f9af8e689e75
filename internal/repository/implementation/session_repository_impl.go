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

type SessionRepositoryImpl struct {
	rdb redis.Cmdable
}

func NewSessionRepository(rdb redis.Cmdable) contract.SessionRepository {
	return &SessionRepositoryImpl{rdb: rdb}
}

func sessionToFields(s *entity.Session) map[string]string {
	return map[string]string{
		"id":           s.Id.String(),
		"userId":       s.UserId.String(),
		"title":        s.Title,
		"messageCount": strconv.Itoa(s.MessageCount),
		"createdAt":    encodeTime(s.CreatedAt),
		"updatedAt":    encodeTimePtr(s.UpdatedAt),
		"deletedAt":    encodeTimePtr(s.DeletedAt),
	}
}

func fieldsToSession(fields map[string]string) *entity.Session {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil
	}
	userId, err := uuid.Parse(fields["userId"])
	if err != nil {
		return nil
	}
	return &entity.Session{
		Id:           id,
		UserId:       userId,
		Title:        fields["title"],
		MessageCount: parseInt(fields["messageCount"]),
		CreatedAt:    parseTime(fields["createdAt"]),
		UpdatedAt:    parseTimePtr(fields["updatedAt"]),
		DeletedAt:    parseTimePtr(fields["deletedAt"]),
	}
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *entity.Session) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(session.Id), sessionToFields(session))
		pipe.ZAdd(ctx, userSessionsKey(session.UserId), redis.Z{
			Score:  float64(session.CreatedAt.UnixMilli()),
			Member: session.Id.String(),
		})
		// The sentinel keeps the list key alive while the session is empty.
		pipe.LPush(ctx, sessionMessagesKey(session.Id), listSentinel)
		return nil
	})
	return err
}

func (r *SessionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["id"] == "" {
		return nil, nil
	}
	return fieldsToSession(fields), nil
}

func (r *SessionRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.Session, error) {
	// limit <= 0 reads to the end of the index.
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, userSessionsKey(userId), int64(offset), stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entity.Session{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			sid, parseErr := uuid.Parse(id)
			if parseErr != nil {
				continue
			}
			cmds[i] = pipe.HGetAll(ctx, sessionKey(sid))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.Session, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		fields, cmdErr := cmd.Result()
		if cmdErr != nil || len(fields) == 0 || fields["id"] == "" {
			continue
		}
		if s := fieldsToSession(fields); s != nil {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (r *SessionRepositoryImpl) Update(ctx context.Context, session *entity.Session, upd contract.SessionUpdate) (*entity.Session, error) {
	now := time.Now()
	fields := map[string]string{
		"updatedAt": encodeTime(now),
	}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.DeletedAt != nil {
		fields["deletedAt"] = encodeTime(*upd.DeletedAt)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(session.Id), fields)
		pipe.ZAdd(ctx, userSessionsKey(session.UserId), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: session.Id.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindById(ctx, session.Id)
}

func (r *SessionRepositoryImpl) HardDelete(ctx context.Context, session *entity.Session) error {
	messagesKey := sessionMessagesKey(session.Id)
	ids, err := r.rdb.LRange(ctx, messagesKey, 0, -1).Result()
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(session.Id))
		pipe.Del(ctx, messagesKey)
		pipe.ZRem(ctx, userSessionsKey(session.UserId), session.Id.String())
		for _, id := range ids {
			if id == listSentinel {
				continue
			}
			if mid, parseErr := uuid.Parse(id); parseErr == nil {
				pipe.Del(ctx, messageKey(mid))
			}
		}
		return nil
	})
	return err
}

func (r *SessionRepositoryImpl) AddMessage(ctx context.Context, session *entity.Session, messageId uuid.UUID) error {
	now := time.Now()
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, sessionMessagesKey(session.Id), messageId.String())
		pipe.HIncrBy(ctx, sessionKey(session.Id), "messageCount", 1)
		pipe.HSet(ctx, sessionKey(session.Id), "updatedAt", encodeTime(now))
		pipe.ZAdd(ctx, userSessionsKey(session.UserId), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: session.Id.String(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	session.MessageCount++
	session.UpdatedAt = &now
	return nil
}

func (r *SessionRepositoryImpl) RemoveMessage(ctx context.Context, session *entity.Session, messageId uuid.UUID) error {
	now := time.Now()
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, sessionMessagesKey(session.Id), 1, messageId.String())
		pipe.HIncrBy(ctx, sessionKey(session.Id), "messageCount", -1)
		pipe.HSet(ctx, sessionKey(session.Id), "updatedAt", encodeTime(now))
		pipe.ZAdd(ctx, userSessionsKey(session.UserId), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: session.Id.String(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	if session.MessageCount > 0 {
		session.MessageCount--
	}
	session.UpdatedAt = &now
	return nil
}

func (r *SessionRepositoryImpl) MessageIds(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]uuid.UUID, error) {
	// limit <= 0 reads to the end of the list.
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	raw, err := r.rdb.LRange(ctx, sessionMessagesKey(sessionId), int64(offset), stop).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if s == listSentinel {
			continue
		}
		if id, parseErr := uuid.Parse(s); parseErr == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *SessionRepositoryImpl) ListLen(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	return r.rdb.LLen(ctx, sessionMessagesKey(sessionId)).Result()
}
