package implementation

import (
	"context"
	"encoding/json"
	"time"

	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type MessageRepositoryImpl struct {
	rdb redis.Cmdable
}

func NewMessageRepository(rdb redis.Cmdable) contract.MessageRepository {
	return &MessageRepositoryImpl{rdb: rdb}
}

// Composite fields (params, imageIds) are serialized to opaque JSON strings
// inside the flat message hash; the adapter owns both directions.
func messageToFields(m *entity.Message) (map[string]string, error) {
	params, err := json.Marshal(m.Params)
	if err != nil {
		return nil, err
	}
	imageIds, err := json.Marshal(m.ImageIds)
	if err != nil {
		return nil, err
	}
	editedOf := ""
	if m.EditedOf != nil {
		editedOf = m.EditedOf.String()
	}
	return map[string]string{
		"id":        m.Id.String(),
		"sessionId": m.SessionId.String(),
		"role":      m.Role,
		"text":      m.Text,
		"params":    string(params),
		"imageIds":  string(imageIds),
		"editedOf":  editedOf,
		"createdAt": encodeTime(m.CreatedAt),
		"updatedAt": encodeTimePtr(m.UpdatedAt),
	}, nil
}

func fieldsToMessage(fields map[string]string) *entity.Message {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil
	}
	sessionId, err := uuid.Parse(fields["sessionId"])
	if err != nil {
		return nil
	}

	params := map[string]interface{}{}
	if raw := fields["params"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &params)
	}
	imageIds := []uuid.UUID{}
	if raw := fields["imageIds"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &imageIds)
	}

	return &entity.Message{
		Id:        id,
		SessionId: sessionId,
		Role:      fields["role"],
		Text:      fields["text"],
		Params:    params,
		ImageIds:  imageIds,
		EditedOf:  parseUUIDPtr(fields["editedOf"]),
		CreatedAt: parseTime(fields["createdAt"]),
		UpdatedAt: parseTimePtr(fields["updatedAt"]),
	}
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	fields, err := messageToFields(message)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, messageKey(message.Id), fields).Err()
}

func (r *MessageRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	fields, err := r.rdb.HGetAll(ctx, messageKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["id"] == "" {
		return nil, nil
	}
	return fieldsToMessage(fields), nil
}

func (r *MessageRepositoryImpl) FindByIds(ctx context.Context, ids []uuid.UUID) ([]*entity.Message, error) {
	if len(ids) == 0 {
		return []*entity.Message{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, messageKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]*entity.Message, 0, len(cmds))
	for _, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil || len(fields) == 0 || fields["id"] == "" {
			continue
		}
		if m := fieldsToMessage(fields); m != nil {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) Update(ctx context.Context, id uuid.UUID, upd contract.MessageUpdate) (*entity.Message, error) {
	fields := map[string]string{
		"updatedAt": encodeTime(time.Now()),
	}
	if upd.Text != nil {
		fields["text"] = *upd.Text
	}
	if upd.Params != nil {
		raw, err := json.Marshal(upd.Params)
		if err != nil {
			return nil, err
		}
		fields["params"] = string(raw)
	}
	if upd.ImageIds != nil {
		raw, err := json.Marshal(*upd.ImageIds)
		if err != nil {
			return nil, err
		}
		fields["imageIds"] = string(raw)
	}
	if upd.EditedOf != nil {
		fields["editedOf"] = upd.EditedOf.String()
	}
	if err := r.rdb.HSet(ctx, messageKey(id), fields).Err(); err != nil {
		return nil, err
	}
	return r.FindById(ctx, id)
}

func (r *MessageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.rdb.Del(ctx, messageKey(id)).Err()
}
