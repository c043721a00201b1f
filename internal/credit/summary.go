package credit

import (
	"context"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// HasActiveCredit reports whether the user holds a usable drop-in block or
// a running subscription for events of the given type.  It answers the
// listing question "can I book this kind of class"; booking decisions go
// through the eligibility resolver instead.
func (inv *Inventory) HasActiveCredit(ctx context.Context, tx repository.Tx, userID, eventTypeID uint64) (bool, error) {
	blocks, err := tx.ListUserBlocks(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list blocks: %w", err)
	}
	for _, b := range blocks {
		if b.Config == nil || b.Config.Course || b.Config.EventTypeID != eventTypeID {
			continue
		}
		ok, err := inv.IsActiveBlock(ctx, tx, b)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	subs, err := tx.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list subscriptions: %w", err)
	}
	now := inv.now()
	for _, s := range subs {
		if !s.Paid || s.Status != model.SubscriptionActive || s.Config == nil || s.Expired(now) {
			continue
		}
		if _, ok := s.Config.Bookable(eventTypeID); ok {
			return true, nil
		}
	}
	return false, nil
}
