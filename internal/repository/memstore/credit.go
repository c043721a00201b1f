package memstore

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

func (t *tx) withBlockConfig(b model.Block) model.Block {
	if c, ok := t.st.blockConfigs[b.BlockConfigID]; ok {
		b.Config = &c
	}
	b.StartDate = copyTime(b.StartDate)
	b.ExpiryDate = copyTime(b.ExpiryDate)
	b.ManualExpiryDate = copyTime(b.ManualExpiryDate)
	b.TimeChecked = copyTime(b.TimeChecked)
	b.VoucherID = copyID(b.VoucherID)
	return b
}

func (t *tx) GetBlock(ctx context.Context, id uint64) (*model.Block, error) {
	b, ok := t.st.blocks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b = t.withBlockConfig(b)
	return &b, nil
}

func (t *tx) CreateBlock(ctx context.Context, b *model.Block) error {
	if _, ok := t.st.blockConfigs[b.BlockConfigID]; !ok {
		return repository.ErrNotFound
	}
	b.ID = t.st.next("blocks")
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.now()
	}
	if b.PurchaseDate.IsZero() {
		b.PurchaseDate = b.CreatedAt
	}
	stored := *b
	stored.Config = nil
	t.st.blocks[b.ID] = stored
	*b = t.withBlockConfig(stored)
	return nil
}

func (t *tx) SaveBlock(ctx context.Context, b *model.Block) error {
	if _, ok := t.st.blocks[b.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *b
	stored.Config = nil
	t.st.blocks[b.ID] = stored
	return nil
}

func (t *tx) DeleteBlock(ctx context.Context, id uint64) error {
	delete(t.st.blocks, id)
	return nil
}

func (t *tx) ListUserBlocks(ctx context.Context, userID uint64) ([]model.Block, error) {
	var out []model.Block
	for _, id := range sortedKeys(t.st.blocks) {
		if b := t.st.blocks[id]; b.UserID == userID {
			out = append(out, t.withBlockConfig(b))
		}
	}
	return out, nil
}

func (t *tx) ListUnpaidBlocks(ctx context.Context, createdBefore time.Time, userID *uint64) ([]model.Block, error) {
	var out []model.Block
	for _, id := range sortedKeys(t.st.blocks) {
		b := t.st.blocks[id]
		if b.Paid || !b.CreatedAt.Before(createdBefore) {
			continue
		}
		if userID != nil && b.UserID != *userID {
			continue
		}
		out = append(out, t.withBlockConfig(b))
	}
	return out, nil
}

func (t *tx) withSubscriptionConfig(s model.Subscription) model.Subscription {
	if c, ok := t.st.subscriptionConfigs[s.ConfigID]; ok {
		s.Config = &c
	}
	s.StartDate = copyTime(s.StartDate)
	s.ExpiryDate = copyTime(s.ExpiryDate)
	s.TimeChecked = copyTime(s.TimeChecked)
	return s
}

func (t *tx) GetSubscription(ctx context.Context, id uint64) (*model.Subscription, error) {
	s, ok := t.st.subscriptions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s = t.withSubscriptionConfig(s)
	return &s, nil
}

func (t *tx) CreateSubscription(ctx context.Context, s *model.Subscription) error {
	if _, ok := t.st.subscriptionConfigs[s.ConfigID]; !ok {
		return repository.ErrNotFound
	}
	s.ID = t.st.next("subscriptions")
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now()
	}
	if s.PurchaseDate.IsZero() {
		s.PurchaseDate = s.CreatedAt
	}
	if s.Status == "" {
		s.Status = model.SubscriptionPending
	}
	stored := *s
	stored.Config = nil
	t.st.subscriptions[s.ID] = stored
	*s = t.withSubscriptionConfig(stored)
	return nil
}

func (t *tx) SaveSubscription(ctx context.Context, s *model.Subscription) error {
	if _, ok := t.st.subscriptions[s.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *s
	stored.Config = nil
	t.st.subscriptions[s.ID] = stored
	return nil
}

func (t *tx) DeleteSubscription(ctx context.Context, id uint64) error {
	delete(t.st.subscriptions, id)
	return nil
}

func (t *tx) ListUserSubscriptions(ctx context.Context, userID uint64) ([]model.Subscription, error) {
	var out []model.Subscription
	for _, id := range sortedKeys(t.st.subscriptions) {
		if s := t.st.subscriptions[id]; s.UserID == userID {
			out = append(out, t.withSubscriptionConfig(s))
		}
	}
	return out, nil
}

func (t *tx) ListUnpaidSubscriptions(ctx context.Context, createdBefore time.Time, userID *uint64) ([]model.Subscription, error) {
	var out []model.Subscription
	for _, id := range sortedKeys(t.st.subscriptions) {
		s := t.st.subscriptions[id]
		if s.Paid || !s.CreatedAt.Before(createdBefore) {
			continue
		}
		if userID != nil && s.UserID != *userID {
			continue
		}
		out = append(out, t.withSubscriptionConfig(s))
	}
	return out, nil
}

func (t *tx) ListRenewableSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var out []model.Subscription
	for _, id := range sortedKeys(t.st.subscriptions) {
		s := t.withSubscriptionConfig(t.st.subscriptions[id])
		if !s.Paid || s.Status != model.SubscriptionActive || s.ReminderSent {
			continue
		}
		if s.Config == nil || !s.Config.Recurring {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
