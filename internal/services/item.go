package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lostfound-board/apiserver/internal/imaging"
	"github.com/lostfound-board/apiserver/internal/storage"
	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/lostfound-board/apiserver/types"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	// MaxImagesPerItem bounds how many photos a poster can attach.
	MaxImagesPerItem = 5
)

// ImageStore is the object storage the item service keeps photos in.
// *storage.Storage satisfies it.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// NewItem is the user-supplied part of an item.
type NewItem struct {
	Kind        string
	Title       string
	Description string
	Location    string
}

// ItemService encapsulates posting, browsing and photo use-cases.
// Claiming lives in ClaimService.
type ItemService struct {
	repo   ItemRepository
	images ImageStore
	options
}

// NewItemService constructs an ItemService. images may be nil, in which case
// photo operations return ErrStorageDisabled.
func NewItemService(repo ItemRepository, images ImageStore, opts ...Option) *ItemService {
	return &ItemService{repo: repo, images: images, options: newOptions(opts)}
}

// Create validates input and stores a new active item posted by userID.
func (s *ItemService) Create(ctx context.Context, userID string, input NewItem) (types.Item, error) {
	if userID == "" {
		return types.Item{}, ErrUnauthorized
	}
	item, err := validateNewItem(input)
	if err != nil {
		return types.Item{}, err
	}
	item.PostedBy = userID
	item.Status = types.ItemStatusActive
	item.CreatedAt = s.now().UTC()
	item.Images = []string{}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	created, err := s.repo.Create(storeCtx, item)
	if err != nil {
		return types.Item{}, storeError(storeCtx, err)
	}

	s.logger.InfoContext(ctx, "item posted",
		slog.String("item_id", created.ID),
		slog.String("kind", string(created.Kind)),
		slog.String("posted_by", userID))
	publishItemEvent(ctx, s.publisher, s.logger, ChannelItemCreated, created, created.CreatedAt)

	return created, nil
}

func validateNewItem(input NewItem) (types.Item, error) {
	kind, ok := types.ParseItemKind(input.Kind)
	if !ok {
		return types.Item{}, fmt.Errorf("%w: kind must be lost or found", ErrInvalidInput)
	}

	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"title", strings.TrimSpace(input.Title), types.MaxTitleLength},
		{"description", strings.TrimSpace(input.Description), types.MaxDescriptionLength},
		{"location", strings.TrimSpace(input.Location), types.MaxLocationLength},
	}
	for _, f := range fields {
		if f.value == "" {
			return types.Item{}, fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return types.Item{}, fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, f.name, f.max)
		}
	}

	return types.Item{
		Kind:        kind,
		Title:       fields[0].value,
		Description: fields[1].value,
		Location:    fields[2].value,
	}, nil
}

func (s *ItemService) Get(ctx context.Context, id string) (types.Item, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	item, err := s.repo.Get(storeCtx, id)
	if err != nil {
		return types.Item{}, storeError(storeCtx, err)
	}
	return item, nil
}

// List returns one page of matching items, newest first unless the filter
// asks for oldest first, and the total number of matches.
func (s *ItemService) List(ctx context.Context, filter types.ItemFilter) ([]types.Item, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Order == "" {
		filter.Order = types.ItemOrderNewest
	}
	filter.Query = strings.TrimSpace(filter.Query)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	items, total, err := s.repo.List(storeCtx, filter)
	if err != nil {
		return nil, 0, storeError(storeCtx, err)
	}
	return items, total, nil
}

var errImageLimit = fmt.Errorf("%w: an item can have at most %d images", ErrInvalidInput, MaxImagesPerItem)

// AddImage processes an uploaded photo and attaches it to the item. Only the
// poster may add photos.
func (s *ItemService) AddImage(ctx context.Context, itemID, userID string, upload io.Reader) (types.Item, error) {
	if s.images == nil {
		return types.Item{}, ErrStorageDisabled
	}

	item, err := s.Get(ctx, itemID)
	if err != nil {
		return types.Item{}, err
	}
	if item.PostedBy != userID {
		return types.Item{}, ErrForbidden
	}
	if len(item.Images) >= MaxImagesPerItem {
		return types.Item{}, errImageLimit
	}

	photo, err := imaging.Process(upload)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
			return types.Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return types.Item{}, err
	}

	key := fmt.Sprintf("items/%s/%s.jpg", item.ID, uuid.NewString())
	if err := s.images.Put(ctx, key, bytes.NewReader(photo.Data), int64(len(photo.Data)), photo.ContentType); err != nil {
		return types.Item{}, fmt.Errorf("store image: %w", err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	updated, err := s.repo.AddImage(storeCtx, item.ID, key, MaxImagesPerItem)
	if err != nil {
		if delErr := s.images.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.WarnContext(ctx, "remove orphaned image failed",
				slog.String("key", key),
				slog.Any("error", delErr))
		}
		if errors.Is(err, store.ErrLimitReached) {
			return types.Item{}, errImageLimit
		}
		return types.Item{}, storeError(storeCtx, err)
	}
	return updated, nil
}

// OpenImage returns a reader for the item's index-th photo. The caller closes it.
func (s *ItemService) OpenImage(ctx context.Context, itemID string, index int) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.images == nil {
		return nil, storage.ObjectInfo{}, ErrStorageDisabled
	}

	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	if index < 0 || index >= len(item.Images) {
		return nil, storage.ObjectInfo{}, ErrImageNotFound
	}

	reader, info, err := s.images.Get(ctx, item.Images[index])
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrImageNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return reader, info, nil
}
