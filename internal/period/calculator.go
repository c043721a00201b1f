package period

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

const (
	// RenewalWindow is how close the next period (or the expiry of the
	// held subscription) must be before it is offered without advance
	// purchase.
	RenewalWindow = 72 * time.Hour

	// partialGrace is how long after a period starts it is still sold at
	// full cost.
	partialGrace = 6 * 24 * time.Hour
)

// CurrentAndNext returns the start of the period containing now and of the
// one after it for fixed-date configs.  The studio keeps period boundaries
// on UTC calendar dates whatever the caller's zone: a period starts at UTC
// midnight, and an instant belongs to the period of its UTC date.  current is
// nil while the anchor is in the future.  One-off configs have a single
// period starting at the anchor and no next period.  Other start policies
// return nil, nil.
func CurrentAndNext(cfg model.SubscriptionConfig, now time.Time) (current, next *time.Time) {
	if cfg.StartOptions != model.StartFixedDate || cfg.StartDate == nil {
		return nil, nil
	}
	anchor := studiotime.StartOfDayUTC(*cfg.StartDate)
	if !cfg.Recurring {
		return &anchor, nil
	}
	today := studiotime.StartOfDayUTC(now)
	if today.Before(anchor) {
		return nil, &anchor
	}
	n := cfg.Duration
	if n <= 0 {
		n = 1
	}

	var cur, nxt time.Time
	switch cfg.DurationUnit {
	case model.DurationMonths:
		k := studiotime.MonthsBetween(anchor, today) / n * n
		cur = studiotime.AddMonths(anchor, k)
		if cur.After(today) {
			k -= n
			cur = studiotime.AddMonths(anchor, k)
		}
		nxt = studiotime.AddMonths(anchor, k+n)
	default:
		days := 7 * n
		k := studiotime.DaysBetween(anchor, today) / days
		cur = anchor.AddDate(0, 0, k*days)
		nxt = cur.AddDate(0, 0, days)
	}
	return &cur, &nxt
}

// StartOptionsForUser lists the start dates the user may buy the config for,
// given the subscriptions they already hold on it.  A nil entry means the
// subscription starts on its first booking.
func StartOptionsForUser(cfg model.SubscriptionConfig, existing []model.Subscription, now time.Time) []*time.Time {
	today := studiotime.StartOfDayUTC(now)
	options := []*time.Time{}

	switch cfg.StartOptions {
	case model.StartSignupDate:
		latest := latestUnexpired(cfg, existing, now)
		if latest == nil {
			return append(options, &today)
		}
		expiry := subscriptionEnd(cfg, *latest)
		if expiry != nil && gated(cfg, *expiry, now) {
			options = append(options, expiry)
		}
		return options

	case model.StartFirstBooking:
		for _, s := range existing {
			if s.StartDate == nil {
				return options
			}
		}
		latest := latestUnexpired(cfg, existing, now)
		if latest == nil {
			return append(options, nil)
		}
		if expiry := subscriptionEnd(cfg, *latest); expiry != nil && gated(cfg, *expiry, now) {
			options = append(options, nil)
		}
		return options

	case model.StartFixedDate:
		if !cfg.Recurring {
			if len(existing) > 0 || cfg.StartDate == nil {
				return options
			}
			anchor := studiotime.StartOfDayUTC(*cfg.StartDate)
			return append(options, &anchor)
		}
		cur, nxt := CurrentAndNext(cfg, now)
		switch {
		case cur == nil && nxt != nil:
			options = append(options, nxt)
		case cur != nil:
			options = append(options, cur)
			if nxt != nil && gated(cfg, *nxt, now) {
				options = append(options, nxt)
			}
		}
		return withoutHeld(options, existing)
	}
	return options
}

// gated reports whether a period starting at t may be offered now.
func gated(cfg model.SubscriptionConfig, t, now time.Time) bool {
	return cfg.AdvancePurchaseAllowed || t.Sub(now) <= RenewalWindow
}

// latestUnexpired returns the unexpired subscription with the latest start,
// treating an unstarted one as the latest of all.
func latestUnexpired(cfg model.SubscriptionConfig, existing []model.Subscription, now time.Time) *model.Subscription {
	var live []model.Subscription
	for _, s := range existing {
		if e := subscriptionEnd(cfg, s); e != nil && !now.Before(*e) {
			continue
		}
		live = append(live, s)
	}
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool {
		a, b := live[i].StartDate, live[j].StartDate
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})
	return &live[len(live)-1]
}

func subscriptionEnd(cfg model.SubscriptionConfig, s model.Subscription) *time.Time {
	if s.ExpiryDate != nil {
		e := *s.ExpiryDate
		return &e
	}
	if s.StartDate == nil {
		return nil
	}
	e := periodEnd(*s.StartDate, cfg)
	return &e
}

func withoutHeld(options []*time.Time, existing []model.Subscription) []*time.Time {
	out := options[:0]
	for _, o := range options {
		held := false
		for _, s := range existing {
			if o != nil && s.StartDate != nil && s.StartDate.Equal(*o) {
				held = true
				break
			}
		}
		if !held {
			out = append(out, o)
		}
	}
	return out
}

// PartialCost is the price of the config bought at now.  Fixed-date configs
// that allow partial purchase charge cost-per-week for the weeks left once
// more than six days of the current period have passed; a part week counts
// as a whole one and the result never exceeds the full cost.
func PartialCost(cfg model.SubscriptionConfig, now time.Time) decimal.Decimal {
	full := cfg.Cost
	if !cfg.PartialPurchaseAllowed || !cfg.CostPerWeek.Valid || cfg.StartOptions != model.StartFixedDate {
		return full
	}
	cur, _ := CurrentAndNext(cfg, now)
	if cur == nil || now.Sub(*cur) <= partialGrace {
		return full
	}
	left := periodEnd(*cur, cfg).Sub(now)
	days := int(left.Hours() / 24)
	weeks := days / 7
	if days%7 > 0 || weeks == 0 {
		weeks++
	}
	cost := cfg.CostPerWeek.Decimal.Mul(decimal.NewFromInt(int64(weeks)))
	if cost.GreaterThan(full) {
		return full
	}
	return cost
}

// ExpiresSoon reports whether a started subscription ends within window of
// now, counting whole days left.
func ExpiresSoon(s model.Subscription, now time.Time, window time.Duration) bool {
	if s.ExpiryDate == nil || !now.Before(*s.ExpiryDate) {
		return false
	}
	daysLeft := int(s.ExpiryDate.Sub(now).Hours() / 24)
	return daysLeft <= int(window.Hours()/24)
}
