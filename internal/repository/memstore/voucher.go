package memstore

import (
	"context"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

func cloneVoucher(v model.Voucher) model.Voucher {
	v.BlockConfigIDs = append([]uint64(nil), v.BlockConfigIDs...)
	v.ExpiryDate = copyTime(v.ExpiryDate)
	return v
}

func (t *tx) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	for _, v := range t.st.vouchers {
		if v.Code == code {
			v = cloneVoucher(v)
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) GetVoucher(ctx context.Context, id uint64) (*model.Voucher, error) {
	v, ok := t.st.vouchers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v = cloneVoucher(v)
	return &v, nil
}

func (t *tx) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	for _, v := range t.st.vouchers {
		if v.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CreateVoucher(ctx context.Context, v *model.Voucher) error {
	if exists, _ := t.VoucherCodeExists(ctx, v.Code); exists {
		return repository.ErrConflict
	}
	v.ID = t.st.next("vouchers")
	if v.CreatedAt.IsZero() {
		v.CreatedAt = t.now()
	}
	t.st.vouchers[v.ID] = cloneVoucher(*v)
	return nil
}

func (t *tx) SaveVoucher(ctx context.Context, v *model.Voucher) error {
	if _, ok := t.st.vouchers[v.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.vouchers[v.ID] = cloneVoucher(*v)
	return nil
}

func (t *tx) CountVoucherBlocks(ctx context.Context, voucherID uint64, f repository.VoucherUseFilter) (int, error) {
	n := 0
	for id, b := range t.st.blocks {
		if b.VoucherID == nil || *b.VoucherID != voucherID {
			continue
		}
		if f.Paid != nil && b.Paid != *f.Paid {
			continue
		}
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.ExcludeBlockID != nil && id == *f.ExcludeBlockID {
			continue
		}
		n++
	}
	return n, nil
}

func (t *tx) CountVoucherInvoices(ctx context.Context, code string, userID *uint64) (int, error) {
	n := 0
	for _, inv := range t.st.invoices {
		if !inv.Paid || inv.TotalVoucherCode == nil || *inv.TotalVoucherCode != code {
			continue
		}
		if userID != nil && inv.UserID != *userID {
			continue
		}
		n++
	}
	return n, nil
}

func (t *tx) GetGiftVoucherConfig(ctx context.Context, id uint64) (*model.GiftVoucherConfig, error) {
	c, ok := t.st.giftConfigs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

// PutGiftVoucherConfig seeds a gift voucher config; there is no write path
// for configs in the engine.
func (s *Store) PutGiftVoucherConfig(c model.GiftVoucherConfig) model.GiftVoucherConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.st.next("gift_voucher_configs")
	s.st.giftConfigs[c.ID] = c
	return c
}

func (t *tx) CreateGiftVoucher(ctx context.Context, g *model.GiftVoucher) error {
	g.ID = t.st.next("gift_vouchers")
	if g.CreatedAt.IsZero() {
		g.CreatedAt = t.now()
	}
	t.st.gifts[g.ID] = *g
	return nil
}

func (t *tx) GetGiftVoucher(ctx context.Context, id uint64) (*model.GiftVoucher, error) {
	g, ok := t.st.gifts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (t *tx) SaveGiftVoucher(ctx context.Context, g *model.GiftVoucher) error {
	if _, ok := t.st.gifts[g.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.gifts[g.ID] = *g
	return nil
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	inv.BlockIDs = append([]uint64(nil), inv.BlockIDs...)
	inv.SubscriptionIDs = append([]uint64(nil), inv.SubscriptionIDs...)
	inv.GiftVoucherIDs = append([]uint64(nil), inv.GiftVoucherIDs...)
	return inv
}

func (t *tx) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	inv.ID = t.st.next("invoices")
	if inv.DateCreated.IsZero() {
		inv.DateCreated = t.now()
	}
	t.st.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (t *tx) GetInvoiceByRef(ctx context.Context, ref string) (*model.Invoice, error) {
	for _, inv := range t.st.invoices {
		if inv.InvoiceRef == ref {
			inv = cloneInvoice(inv)
			return &inv, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) SaveInvoice(ctx context.Context, inv *model.Invoice) error {
	if _, ok := t.st.invoices[inv.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}
