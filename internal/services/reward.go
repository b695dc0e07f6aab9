package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/revenac/apiserver/internal/storage"
	"github.com/revenac/apiserver/types"
	"github.com/rs/zerolog"
)

// MaxRewardImageBytes bounds uploaded reward images.
const MaxRewardImageBytes = 5 << 20

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// RewardRepository defines persistence operations for the reward catalog.
type RewardRepository interface {
	List(ctx context.Context, activeOnly bool) ([]types.Reward, error)
	Get(ctx context.Context, id int) (types.Reward, error)
	Create(ctx context.Context, reward types.Reward) (types.Reward, error)
	Update(ctx context.Context, reward types.Reward) (types.Reward, error)
	SetImageKey(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

// ImageStore is the subset of object storage used for reward images.
// *storage.Storage satisfies it.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RewardService encapsulates catalog use-cases.
type RewardService struct {
	repo   RewardRepository
	images ImageStore
	logger zerolog.Logger
}

// NewRewardService constructs a RewardService. images may be nil, in which
// case image uploads are rejected.
func NewRewardService(repo RewardRepository, images ImageStore, logger zerolog.Logger) *RewardService {
	return &RewardService{
		repo:   repo,
		images: images,
		logger: logger.With().Str("component", "rewards").Logger(),
	}
}

// List returns the catalog, cheapest first.
func (s *RewardService) List(ctx context.Context, activeOnly bool) ([]types.Reward, error) {
	rewards, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, storeFailure(err)
	}
	return rewards, nil
}

func (s *RewardService) Get(ctx context.Context, id int) (types.Reward, error) {
	reward, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Reward{}, mapStoreError(err, "Reward not found")
	}
	return reward, nil
}

func (s *RewardService) Create(ctx context.Context, reward types.Reward) (types.Reward, error) {
	reward, err := normalizeReward(reward)
	if err != nil {
		return types.Reward{}, err
	}
	reward.ImageKey = ""

	created, err := s.repo.Create(ctx, reward)
	if err != nil {
		return types.Reward{}, mapStoreError(err, "Reward not found")
	}
	s.logger.Info().Int("reward_id", created.ID).Str("title", created.Title).Msg("reward created")
	return created, nil
}

func (s *RewardService) Update(ctx context.Context, reward types.Reward) (types.Reward, error) {
	reward, err := normalizeReward(reward)
	if err != nil {
		return types.Reward{}, err
	}

	updated, err := s.repo.Update(ctx, reward)
	if err != nil {
		return types.Reward{}, mapStoreError(err, "Reward not found")
	}
	s.logger.Info().Int("reward_id", updated.ID).Msg("reward updated")
	return updated, nil
}

// Delete removes a reward and its image. Rewards with redemptions cannot be
// deleted and yield a conflict; deactivate them instead.
func (s *RewardService) Delete(ctx context.Context, id int) error {
	reward, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapStoreError(err, "Reward not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreError(err, "Reward not found")
	}
	s.deleteImage(ctx, reward.ImageKey)
	s.logger.Info().Int("reward_id", id).Msg("reward deleted")
	return nil
}

// UploadImage stores data as the image of reward id and returns the updated
// reward. The previous image, if any, is removed.
func (s *RewardService) UploadImage(ctx context.Context, id int, data []byte) (types.Reward, error) {
	if s.images == nil {
		return types.Reward{}, invalidInput("image storage is not configured")
	}
	if len(data) == 0 {
		return types.Reward{}, invalidInput("image is empty")
	}
	if len(data) > MaxRewardImageBytes {
		return types.Reward{}, invalidInput("image too large")
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return types.Reward{}, invalidInput("unsupported image type")
	}

	reward, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Reward{}, mapStoreError(err, "Reward not found")
	}

	key := RewardImageKey(id, data, ext)
	if err := s.images.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Reward{}, storeFailure(fmt.Errorf("put reward image: %w", err))
	}
	if err := s.repo.SetImageKey(ctx, id, key); err != nil {
		s.deleteImage(ctx, key)
		return types.Reward{}, mapStoreError(err, "Reward not found")
	}
	if reward.ImageKey != key {
		s.deleteImage(ctx, reward.ImageKey)
	}

	reward.ImageKey = key
	s.logger.Info().Int("reward_id", id).Str("key", key).Msg("reward image uploaded")
	return reward, nil
}

// Image opens the stored image of reward id.
func (s *RewardService) Image(ctx context.Context, id int) (io.ReadCloser, string, error) {
	reward, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", mapStoreError(err, "Reward not found")
	}
	if reward.ImageKey == "" || s.images == nil {
		return nil, "", newError(KindNotFound, "Reward image not found", nil)
	}

	rc, err := s.images.Get(ctx, reward.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", newError(KindNotFound, "Reward image not found", err)
		}
		return nil, "", storeFailure(err)
	}

	contentType := mime.TypeByExtension(path.Ext(reward.ImageKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

func (s *RewardService) deleteImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("delete reward image")
	}
}

// RewardImageKey returns the content-addressed object key of a reward image.
func RewardImageKey(rewardID int, data []byte, ext string) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("rewards/%d/%s.%s", rewardID, hex.EncodeToString(sum[:]), ext)
}

func normalizeReward(reward types.Reward) (types.Reward, error) {
	reward.Title = strings.TrimSpace(reward.Title)
	reward.Description = strings.TrimSpace(reward.Description)
	reward.Category = strings.ToUpper(strings.TrimSpace(reward.Category))

	switch {
	case reward.Title == "":
		return types.Reward{}, invalidInput("title is required")
	case reward.TokenCost <= 0:
		return types.Reward{}, invalidInput("token_cost must be positive")
	case reward.Stock < 0:
		return types.Reward{}, invalidInput("stock cannot be negative")
	case !types.IsCategory(reward.Category):
		return types.Reward{}, invalidInput("invalid category")
	}
	return reward, nil
}
