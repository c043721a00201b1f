package credit

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/model"
)

var hundred = decimal.NewFromInt(100)

// CostWithVoucher applies a percentage or fixed discount to cost, floors
// the result at zero and rounds to the smallest currency unit.
func CostWithVoucher(cost decimal.Decimal, v *model.Voucher) decimal.Decimal {
	if v == nil {
		return cost.Round(2)
	}
	out := cost
	switch {
	case v.DiscountPercent != nil:
		pct := decimal.NewFromInt(int64(*v.DiscountPercent))
		out = cost.Mul(hundred.Sub(pct)).Div(hundred)
	case v.DiscountAmount.Valid:
		out = cost.Sub(v.DiscountAmount.Decimal)
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out.Round(2)
}
