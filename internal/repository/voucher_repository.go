package repository

import (
	"context"

	"github.com/iliyamo/studio-booking/internal/model"
)

const voucherCols = `id, code, scope, discount, discount_amount, start_date, expiry_date, max_vouchers, max_per_user,
	item_count, activated, is_gift, purchaser_email, created_at`

func (t *mysqlTx) getVoucher(ctx context.Context, where string, arg any) (*model.Voucher, error) {
	var v model.Voucher
	err := t.tx.QueryRowContext(ctx, "SELECT "+voucherCols+" FROM vouchers WHERE "+where, arg).Scan(
		&v.ID, &v.Code, &v.Scope, &v.DiscountPercent, &v.DiscountAmount, &v.StartDate, &v.ExpiryDate,
		&v.MaxVouchers, &v.MaxPerUser, &v.ItemCount, &v.Activated, &v.IsGift, &v.PurchaserEmail, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	v.BlockConfigIDs, err = t.ids(ctx,
		"SELECT block_config_id FROM voucher_block_configs WHERE voucher_id=? ORDER BY block_config_id", v.ID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *mysqlTx) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	return t.getVoucher(ctx, "code=?", code)
}

func (t *mysqlTx) GetVoucher(ctx context.Context, id uint64) (*model.Voucher, error) {
	return t.getVoucher(ctx, "id=?", id)
}

func (t *mysqlTx) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	n, err := t.count(ctx, "SELECT COUNT(*) FROM vouchers WHERE code=?", code)
	return n > 0, err
}

func (t *mysqlTx) CreateVoucher(ctx context.Context, v *model.Voucher) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = t.now()
	}
	id, err := t.insert(ctx,
		`INSERT INTO vouchers (code, scope, discount, discount_amount, start_date, expiry_date, max_vouchers, max_per_user,
			item_count, activated, is_gift, purchaser_email, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.Code, v.Scope, v.DiscountPercent, v.DiscountAmount, v.StartDate, v.ExpiryDate, v.MaxVouchers, v.MaxPerUser,
		v.ItemCount, v.Activated, v.IsGift, v.PurchaserEmail, v.CreatedAt)
	if err != nil {
		return err
	}
	v.ID = id
	return t.saveVoucherBlockConfigs(ctx, v)
}

func (t *mysqlTx) SaveVoucher(ctx context.Context, v *model.Voucher) error {
	err := t.update(ctx, "vouchers", v.ID,
		`UPDATE vouchers SET code=?, scope=?, discount=?, discount_amount=?, start_date=?, expiry_date=?, max_vouchers=?,
			max_per_user=?, item_count=?, activated=?, is_gift=?, purchaser_email=?
		 WHERE id=?`,
		v.Code, v.Scope, v.DiscountPercent, v.DiscountAmount, v.StartDate, v.ExpiryDate, v.MaxVouchers,
		v.MaxPerUser, v.ItemCount, v.Activated, v.IsGift, v.PurchaserEmail, v.ID)
	if err != nil {
		return err
	}
	return t.saveVoucherBlockConfigs(ctx, v)
}

func (t *mysqlTx) saveVoucherBlockConfigs(ctx context.Context, v *model.Voucher) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM voucher_block_configs WHERE voucher_id=?", v.ID); err != nil {
		return err
	}
	for _, id := range v.BlockConfigIDs {
		if _, err := t.tx.ExecContext(ctx,
			"INSERT INTO voucher_block_configs (voucher_id, block_config_id) VALUES (?,?)", v.ID, id); err != nil {
			return writeErr(err)
		}
	}
	return nil
}

func (t *mysqlTx) CountVoucherBlocks(ctx context.Context, voucherID uint64, f VoucherUseFilter) (int, error) {
	q := "SELECT COUNT(*) FROM blocks WHERE voucher_id=?"
	args := []any{voucherID}
	if f.Paid != nil {
		q += " AND paid=?"
		args = append(args, *f.Paid)
	}
	if f.UserID != nil {
		q += " AND user_id=?"
		args = append(args, *f.UserID)
	}
	if f.ExcludeBlockID != nil {
		q += " AND id<>?"
		args = append(args, *f.ExcludeBlockID)
	}
	return t.count(ctx, q, args...)
}

func (t *mysqlTx) CountVoucherInvoices(ctx context.Context, code string, userID *uint64) (int, error) {
	q := "SELECT COUNT(*) FROM invoices WHERE paid=1 AND total_voucher_code=?"
	args := []any{code}
	if userID != nil {
		q += " AND user_id=?"
		args = append(args, *userID)
	}
	return t.count(ctx, q, args...)
}

func (t *mysqlTx) GetGiftVoucherConfig(ctx context.Context, id uint64) (*model.GiftVoucherConfig, error) {
	var c model.GiftVoucherConfig
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, block_config_id, discount_amount, duration, active FROM gift_voucher_configs WHERE id=?", id).Scan(
		&c.ID, &c.BlockConfigID, &c.DiscountAmount, &c.DurationMonths, &c.Active)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (t *mysqlTx) CreateGiftVoucher(ctx context.Context, g *model.GiftVoucher) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = t.now()
	}
	id, err := t.insert(ctx,
		"INSERT INTO gift_vouchers (config_id, voucher_id, purchaser_email, paid, created_at) VALUES (?,?,?,?,?)",
		g.ConfigID, g.VoucherID, g.PurchaserEmail, g.Paid, g.CreatedAt)
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func (t *mysqlTx) GetGiftVoucher(ctx context.Context, id uint64) (*model.GiftVoucher, error) {
	var g model.GiftVoucher
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, config_id, voucher_id, purchaser_email, paid, created_at FROM gift_vouchers WHERE id=?", id).Scan(
		&g.ID, &g.ConfigID, &g.VoucherID, &g.PurchaserEmail, &g.Paid, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (t *mysqlTx) SaveGiftVoucher(ctx context.Context, g *model.GiftVoucher) error {
	return t.update(ctx, "gift_vouchers", g.ID,
		"UPDATE gift_vouchers SET purchaser_email=?, paid=? WHERE id=?", g.PurchaserEmail, g.Paid, g.ID)
}

// Invoice line items live in invoice_items keyed by item_type.
const (
	itemBlock        = "block"
	itemSubscription = "subscription"
	itemGiftVoucher  = "gift_voucher"
)

func (t *mysqlTx) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if inv.DateCreated.IsZero() {
		inv.DateCreated = t.now()
	}
	id, err := t.insert(ctx,
		`INSERT INTO invoices (invoice_id, user_id, amount, total_voucher_code, paid, date_created, date_paid)
		 VALUES (?,?,?,?,?,?,?)`,
		inv.InvoiceRef, inv.UserID, inv.Amount, inv.TotalVoucherCode, inv.Paid, inv.DateCreated, inv.DatePaid)
	if err != nil {
		return err
	}
	inv.ID = id
	for kind, ids := range map[string][]uint64{
		itemBlock:        inv.BlockIDs,
		itemSubscription: inv.SubscriptionIDs,
		itemGiftVoucher:  inv.GiftVoucherIDs,
	} {
		for _, itemID := range ids {
			if _, err := t.tx.ExecContext(ctx,
				"INSERT INTO invoice_items (invoice_id, item_type, item_id) VALUES (?,?,?)", inv.ID, kind, itemID); err != nil {
				return writeErr(err)
			}
		}
	}
	return nil
}

func (t *mysqlTx) GetInvoiceByRef(ctx context.Context, ref string) (*model.Invoice, error) {
	var inv model.Invoice
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, invoice_id, user_id, amount, total_voucher_code, paid, date_created, date_paid
		 FROM invoices WHERE invoice_id=?`, ref).Scan(
		&inv.ID, &inv.InvoiceRef, &inv.UserID, &inv.Amount, &inv.TotalVoucherCode, &inv.Paid, &inv.DateCreated, &inv.DatePaid)
	if err != nil {
		return nil, notFound(err)
	}
	const items = "SELECT item_id FROM invoice_items WHERE invoice_id=? AND item_type=? ORDER BY item_id"
	if inv.BlockIDs, err = t.ids(ctx, items, inv.ID, itemBlock); err != nil {
		return nil, err
	}
	if inv.SubscriptionIDs, err = t.ids(ctx, items, inv.ID, itemSubscription); err != nil {
		return nil, err
	}
	if inv.GiftVoucherIDs, err = t.ids(ctx, items, inv.ID, itemGiftVoucher); err != nil {
		return nil, err
	}
	return &inv, nil
}

// SaveInvoice updates the payment state; line items are fixed at creation.
func (t *mysqlTx) SaveInvoice(ctx context.Context, inv *model.Invoice) error {
	return t.update(ctx, "invoices", inv.ID,
		"UPDATE invoices SET amount=?, total_voucher_code=?, paid=?, date_paid=? WHERE id=?",
		inv.Amount, inv.TotalVoucherCode, inv.Paid, inv.DatePaid, inv.ID)
}
