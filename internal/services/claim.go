package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/lostfound-board/apiserver/types"
)

// ClaimService moves items from active to claimed. It is the only writer of
// an item's status, claimant and claim time.
type ClaimService struct {
	repo ItemRepository
	options
}

func NewClaimService(repo ItemRepository, opts ...Option) *ClaimService {
	return &ClaimService{repo: repo, options: newOptions(opts)}
}

// Claim records userID as the claimant of itemID.
//
// The checks run in order and the first failure is returned: ErrItemNotFound,
// ErrSelfClaim, ErrAlreadyClaimed. The write itself is conditional on the item
// still being active, so when several users race only one succeeds and the
// others get ErrAlreadyClaimed. ErrTimeout means the store did not answer in
// time; the claim may or may not have been applied and can be retried.
func (s *ClaimService) Claim(ctx context.Context, itemID, userID string) (types.Item, error) {
	if userID == "" {
		return types.Item{}, ErrUnauthorized
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	item, err := s.repo.Get(storeCtx, itemID)
	if err != nil {
		return types.Item{}, storeError(storeCtx, err)
	}
	if item.PostedBy == userID {
		return types.Item{}, ErrSelfClaim
	}
	if item.Status != types.ItemStatusActive {
		return types.Item{}, ErrAlreadyClaimed
	}

	claimedAt := s.now().UTC()
	if claimedAt.Before(item.CreatedAt) {
		claimedAt = item.CreatedAt
	}
	claimant := userID

	claimed, err := s.repo.UpdateStatus(storeCtx, item.ID, types.ItemStatusActive, types.ItemTransition{
		Status:    types.ItemStatusClaimed,
		ClaimedBy: &claimant,
		ClaimedAt: &claimedAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.InfoContext(ctx, "claim lost race",
				slog.String("item_id", item.ID),
				slog.String("user_id", userID))
			return types.Item{}, ErrAlreadyClaimed
		}
		return types.Item{}, storeError(storeCtx, err)
	}

	s.logger.InfoContext(ctx, "item claimed",
		slog.String("item_id", claimed.ID),
		slog.String("claimed_by", userID),
		slog.String("posted_by", claimed.PostedBy))
	publishItemEvent(ctx, s.publisher, s.logger, ChannelItemClaimed, claimed, claimedAt)

	return claimed, nil
}
