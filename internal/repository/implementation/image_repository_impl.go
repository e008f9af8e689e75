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

// decrementScript clamps refCount at 0 and stamps the deletion mark in the
// same atomic unit, so a double-decrement can never drive the stored value
// negative. Returns -1 when the hash is absent.
var decrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local v = redis.call('HINCRBY', KEYS[1], 'refCount', -1)
if v < 0 then
  redis.call('HSET', KEYS[1], 'refCount', '0')
  v = 0
end
if v == 0 then
  redis.call('HSET', KEYS[1], 'deletedAt', ARGV[1])
end
return v
`)

type ImageRepositoryImpl struct {
	rdb redis.Cmdable
}

func NewImageRepository(rdb redis.Cmdable) contract.ImageRepository {
	return &ImageRepositoryImpl{rdb: rdb}
}

func imageToFields(i *entity.Image) map[string]string {
	return map[string]string{
		"id":        i.Id.String(),
		"sessionId": i.SessionId.String(),
		"userId":    i.UserId.String(),
		"type":      i.Type,
		"path":      i.Path,
		"thumbPath": i.ThumbPath,
		"mime":      i.Mime,
		"width":     strconv.Itoa(i.Width),
		"height":    strconv.Itoa(i.Height),
		"size":      strconv.FormatInt(i.Size, 10),
		"refCount":  strconv.Itoa(i.RefCount),
		"createdAt": encodeTime(i.CreatedAt),
		"updatedAt": encodeTimePtr(i.UpdatedAt),
		"deletedAt": encodeTimePtr(i.DeletedAt),
	}
}

func fieldsToImage(fields map[string]string) *entity.Image {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil
	}
	sessionId, _ := uuid.Parse(fields["sessionId"])
	userId, _ := uuid.Parse(fields["userId"])
	return &entity.Image{
		Id:        id,
		SessionId: sessionId,
		UserId:    userId,
		Type:      fields["type"],
		Path:      fields["path"],
		ThumbPath: fields["thumbPath"],
		Mime:      fields["mime"],
		Width:     parseInt(fields["width"]),
		Height:    parseInt(fields["height"]),
		Size:      parseInt64(fields["size"]),
		RefCount:  parseInt(fields["refCount"]),
		CreatedAt: parseTime(fields["createdAt"]),
		UpdatedAt: parseTimePtr(fields["updatedAt"]),
		DeletedAt: parseTimePtr(fields["deletedAt"]),
	}
}

func (r *ImageRepositoryImpl) Create(ctx context.Context, image *entity.Image) error {
	return r.rdb.HSet(ctx, imageKey(image.Id), imageToFields(image)).Err()
}

func (r *ImageRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Image, error) {
	fields, err := r.rdb.HGetAll(ctx, imageKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["id"] == "" {
		return nil, nil
	}
	return fieldsToImage(fields), nil
}

func (r *ImageRepositoryImpl) Update(ctx context.Context, id uuid.UUID, upd contract.ImageUpdate) (*entity.Image, error) {
	fields := map[string]string{
		"updatedAt": encodeTime(time.Now()),
	}
	if upd.Path != nil {
		fields["path"] = *upd.Path
	}
	if upd.ThumbPath != nil {
		fields["thumbPath"] = *upd.ThumbPath
	}
	if upd.Width != nil {
		fields["width"] = strconv.Itoa(*upd.Width)
	}
	if upd.Height != nil {
		fields["height"] = strconv.Itoa(*upd.Height)
	}
	if upd.Size != nil {
		fields["size"] = strconv.FormatInt(*upd.Size, 10)
	}
	if err := r.rdb.HSet(ctx, imageKey(id), fields).Err(); err != nil {
		return nil, err
	}
	return r.FindById(ctx, id)
}

func (r *ImageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.rdb.Del(ctx, imageKey(id)).Err()
}

func (r *ImageRepositoryImpl) IncrementRef(ctx context.Context, id uuid.UUID) (int, error) {
	exists, err := r.rdb.Exists(ctx, imageKey(id)).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, contract.ErrImageAbsent
	}
	n, err := r.rdb.HIncrBy(ctx, imageKey(id), "refCount", 1).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *ImageRepositoryImpl) DecrementRef(ctx context.Context, id uuid.UUID) (int, error) {
	res, err := decrementScript.Run(ctx, r.rdb, []string{imageKey(id)}, encodeTime(time.Now())).Int()
	if err != nil {
		return 0, err
	}
	if res < 0 {
		return 0, contract.ErrImageAbsent
	}
	return res, nil
}

func (r *ImageRepositoryImpl) Enumerate(ctx context.Context) ([]*entity.Image, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.rdb.Scan(ctx, cursor, imageKeyPattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return []*entity.Image{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	images := make([]*entity.Image, 0, len(cmds))
	for _, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil || len(fields) == 0 || fields["id"] == "" {
			continue
		}
		if img := fieldsToImage(fields); img != nil {
			images = append(images, img)
		}
	}
	return images, nil
}
