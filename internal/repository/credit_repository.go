package repository

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// Blocks and subscriptions are always read joined with their config so the
// returned rows carry Config.

const blockJoin = `SELECT b.id, b.user_id, b.block_config_id, b.paid, b.purchase_date, b.start_date, b.expiry_date,
	b.manual_expiry_date, b.voucher_id, b.time_checked, b.created_at,
	c.id, c.event_type_id, c.name, c.size, c.duration, c.course, c.cost, c.active
	FROM blocks b JOIN block_configs c ON c.id = b.block_config_id`

func scanBlock(r rowScanner) (model.Block, error) {
	var (
		b model.Block
		c model.BlockConfig
	)
	err := r.Scan(&b.ID, &b.UserID, &b.BlockConfigID, &b.Paid, &b.PurchaseDate, &b.StartDate, &b.ExpiryDate,
		&b.ManualExpiryDate, &b.VoucherID, &b.TimeChecked, &b.CreatedAt,
		&c.ID, &c.EventTypeID, &c.Name, &c.Size, &c.DurationWeeks, &c.Course, &c.Cost, &c.Active)
	b.Config = &c
	return b, err
}

func (t *mysqlTx) GetBlock(ctx context.Context, id uint64) (*model.Block, error) {
	b, err := scanBlock(t.tx.QueryRowContext(ctx, blockJoin+" WHERE b.id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (t *mysqlTx) CreateBlock(ctx context.Context, b *model.Block) error {
	cfg, err := t.GetBlockConfig(ctx, b.BlockConfigID)
	if err != nil {
		return err
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.now()
	}
	if b.PurchaseDate.IsZero() {
		b.PurchaseDate = b.CreatedAt
	}
	id, err := t.insert(ctx,
		`INSERT INTO blocks (user_id, block_config_id, paid, purchase_date, start_date, expiry_date, manual_expiry_date, voucher_id, time_checked, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.BlockConfigID, b.Paid, b.PurchaseDate, b.StartDate, b.ExpiryDate, b.ManualExpiryDate, b.VoucherID, b.TimeChecked, b.CreatedAt)
	if err != nil {
		return err
	}
	b.ID = id
	b.Config = cfg
	return nil
}

func (t *mysqlTx) SaveBlock(ctx context.Context, b *model.Block) error {
	return t.update(ctx, "blocks", b.ID,
		`UPDATE blocks SET paid=?, purchase_date=?, start_date=?, expiry_date=?, manual_expiry_date=?, voucher_id=?, time_checked=?
		 WHERE id=?`,
		b.Paid, b.PurchaseDate, b.StartDate, b.ExpiryDate, b.ManualExpiryDate, b.VoucherID, b.TimeChecked, b.ID)
}

func (t *mysqlTx) DeleteBlock(ctx context.Context, id uint64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM blocks WHERE id=?", id)
	return err
}

func (t *mysqlTx) ListUserBlocks(ctx context.Context, userID uint64) ([]model.Block, error) {
	rows, err := t.tx.QueryContext(ctx, blockJoin+" WHERE b.user_id=? ORDER BY b.id", userID)
	return collect(rows, err, scanBlock)
}

func (t *mysqlTx) ListUnpaidBlocks(ctx context.Context, createdBefore time.Time, userID *uint64) ([]model.Block, error) {
	q := blockJoin + " WHERE b.paid=0 AND b.created_at < ?"
	args := []any{createdBefore.UTC()}
	if userID != nil {
		q += " AND b.user_id=?"
		args = append(args, *userID)
	}
	rows, err := t.tx.QueryContext(ctx, q+" ORDER BY b.id", args...)
	return collect(rows, err, scanBlock)
}

const subscriptionJoin = `SELECT s.id, s.user_id, s.config_id, s.paid, s.status, s.purchase_date, s.start_date, s.expiry_date,
	s.reminder_sent, s.time_checked, s.created_at,
	c.id, c.name, c.duration, c.duration_units, c.start_options, c.start_date, c.recurring, c.active,
	c.advance_purchase_allowed, c.partial_purchase_allowed, c.include_no_shows_in_usage, c.cost, c.cost_per_week, c.bookable_event_types
	FROM subscriptions s JOIN subscription_configs c ON c.id = s.config_id`

// subscriptionRow splits one joined row between the subscription columns
// and the config scanner.
type subscriptionRow struct {
	r rowScanner
	s *model.Subscription
}

func (sr *subscriptionRow) Scan(dest ...any) error {
	s := sr.s
	head := []any{&s.ID, &s.UserID, &s.ConfigID, &s.Paid, &s.Status, &s.PurchaseDate, &s.StartDate, &s.ExpiryDate,
		&s.ReminderSent, &s.TimeChecked, &s.CreatedAt}
	return sr.r.Scan(append(head, dest...)...)
}

func scanSubscription(r rowScanner) (model.Subscription, error) {
	var s model.Subscription
	c, err := scanSubscriptionConfig(&subscriptionRow{r: r, s: &s})
	if err != nil {
		return s, err
	}
	s.Config = &c
	return s, nil
}

func (t *mysqlTx) GetSubscription(ctx context.Context, id uint64) (*model.Subscription, error) {
	s, err := scanSubscription(t.tx.QueryRowContext(ctx, subscriptionJoin+" WHERE s.id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (t *mysqlTx) CreateSubscription(ctx context.Context, s *model.Subscription) error {
	cfg, err := t.GetSubscriptionConfig(ctx, s.ConfigID)
	if err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now()
	}
	if s.PurchaseDate.IsZero() {
		s.PurchaseDate = s.CreatedAt
	}
	if s.Status == "" {
		s.Status = model.SubscriptionPending
	}
	id, err := t.insert(ctx,
		`INSERT INTO subscriptions (user_id, config_id, paid, status, purchase_date, start_date, expiry_date, reminder_sent, time_checked, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.UserID, s.ConfigID, s.Paid, s.Status, s.PurchaseDate, s.StartDate, s.ExpiryDate, s.ReminderSent, s.TimeChecked, s.CreatedAt)
	if err != nil {
		return err
	}
	s.ID = id
	s.Config = cfg
	return nil
}

func (t *mysqlTx) SaveSubscription(ctx context.Context, s *model.Subscription) error {
	return t.update(ctx, "subscriptions", s.ID,
		`UPDATE subscriptions SET paid=?, status=?, purchase_date=?, start_date=?, expiry_date=?, reminder_sent=?, time_checked=?
		 WHERE id=?`,
		s.Paid, s.Status, s.PurchaseDate, s.StartDate, s.ExpiryDate, s.ReminderSent, s.TimeChecked, s.ID)
}

func (t *mysqlTx) DeleteSubscription(ctx context.Context, id uint64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM subscriptions WHERE id=?", id)
	return err
}

func (t *mysqlTx) ListUserSubscriptions(ctx context.Context, userID uint64) ([]model.Subscription, error) {
	rows, err := t.tx.QueryContext(ctx, subscriptionJoin+" WHERE s.user_id=? ORDER BY s.id", userID)
	return collect(rows, err, scanSubscription)
}

func (t *mysqlTx) ListUnpaidSubscriptions(ctx context.Context, createdBefore time.Time, userID *uint64) ([]model.Subscription, error) {
	q := subscriptionJoin + " WHERE s.paid=0 AND s.created_at < ?"
	args := []any{createdBefore.UTC()}
	if userID != nil {
		q += " AND s.user_id=?"
		args = append(args, *userID)
	}
	rows, err := t.tx.QueryContext(ctx, q+" ORDER BY s.id", args...)
	return collect(rows, err, scanSubscription)
}

func (t *mysqlTx) ListRenewableSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := t.tx.QueryContext(ctx,
		subscriptionJoin+" WHERE s.paid=1 AND s.status=? AND s.reminder_sent=0 AND c.recurring=1 ORDER BY s.id",
		model.SubscriptionActive)
	return collect(rows, err, scanSubscription)
}
