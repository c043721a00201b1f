// Package period implements the calendar rules of subscription configs:
// which period a recurring config is currently in, which start dates a user
// may buy, and what a partly elapsed period costs.
package period

import (
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

// maxMonthlyAnchorDay keeps monthly anchors on a day every month has.
const maxMonthlyAnchorDay = 28

// NormalizeConfig truncates the anchor to midnight UTC and, for monthly
// recurring configs, moves anchors after the 28th back to the 28th.  It then
// validates the config.
func NormalizeConfig(cfg *model.SubscriptionConfig) error {
	if cfg.StartDate != nil {
		d := studiotime.StartOfDayUTC(*cfg.StartDate)
		if cfg.Recurring && cfg.DurationUnit == model.DurationMonths && d.Day() > maxMonthlyAnchorDay {
			d = studiotime.Date(d.Year(), d.Month(), maxMonthlyAnchorDay)
		}
		cfg.StartDate = &d
	}
	if !cfg.PartialPurchaseAllowed {
		cfg.CostPerWeek.Valid = false
	}
	return ValidateConfig(*cfg)
}

// ValidateConfig checks the combinations a config may not hold.
func ValidateConfig(cfg model.SubscriptionConfig) error {
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", model.ErrInvalidConfig)
	}
	switch cfg.DurationUnit {
	case model.DurationWeeks, model.DurationMonths:
	default:
		return fmt.Errorf("%w: unknown duration unit %q", model.ErrInvalidConfig, cfg.DurationUnit)
	}
	switch cfg.StartOptions {
	case model.StartFixedDate:
		if cfg.StartDate == nil {
			return fmt.Errorf("%w: a start date is required", model.ErrInvalidConfig)
		}
	case model.StartSignupDate, model.StartFirstBooking:
	default:
		return fmt.Errorf("%w: unknown start option %q", model.ErrInvalidConfig, cfg.StartOptions)
	}
	if !cfg.Recurring && cfg.StartOptions != model.StartFixedDate {
		return fmt.Errorf("%w: one-off subscriptions need a fixed start date", model.ErrInvalidConfig)
	}
	if cfg.PartialPurchaseAllowed {
		if cfg.StartOptions != model.StartFixedDate {
			return fmt.Errorf("%w: partial purchase needs a fixed start date", model.ErrInvalidConfig)
		}
		if !cfg.CostPerWeek.Valid {
			return fmt.Errorf("%w: partial purchase needs a cost per week", model.ErrInvalidConfig)
		}
	}
	for id, a := range cfg.BookableEventTypes {
		if a.AllowedNumber < 0 {
			return fmt.Errorf("%w: negative allowance for event type %d", model.ErrInvalidConfig, id)
		}
		if a.AllowedNumber > 0 {
			switch a.AllowedUnit {
			case model.AllowanceDay, model.AllowanceWeek, model.AllowanceMonth:
			default:
				return fmt.Errorf("%w: unknown allowance unit %q", model.ErrInvalidConfig, a.AllowedUnit)
			}
		}
	}
	return nil
}

// IsPurchaseable reports whether the config is on sale: active, and not a
// one-off whose only period has already ended.
func IsPurchaseable(cfg model.SubscriptionConfig, now time.Time) bool {
	if !cfg.Active {
		return false
	}
	if cfg.Recurring || cfg.StartDate == nil {
		return true
	}
	end := periodEnd(*cfg.StartDate, cfg)
	return now.Before(end)
}

func periodEnd(start time.Time, cfg model.SubscriptionConfig) time.Time {
	if cfg.DurationUnit == model.DurationMonths {
		return studiotime.AddMonths(start, cfg.Duration)
	}
	return studiotime.AddWeeks(start, cfg.Duration)
}
