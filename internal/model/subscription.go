package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DurationUnit is the unit of SubscriptionConfig.Duration.
type DurationUnit string

const (
	DurationWeeks  DurationUnit = "weeks"
	DurationMonths DurationUnit = "months"
)

// StartPolicy decides when a subscription period begins.
type StartPolicy string

const (
	StartFixedDate    StartPolicy = "start_date"
	StartSignupDate   StartPolicy = "signup_date"
	StartFirstBooking StartPolicy = "first_booking_date"
)

// AllowanceUnit is the accounting window of a usage cap.
type AllowanceUnit string

const (
	AllowanceDay   AllowanceUnit = "day"
	AllowanceWeek  AllowanceUnit = "week"
	AllowanceMonth AllowanceUnit = "month"
)

// Allowance caps how many bookings of one event type a subscription may
// pay for per window.  A zero AllowedNumber means uncapped.
type Allowance struct {
	AllowedNumber int           `json:"allowed_number,omitempty"`
	AllowedUnit   AllowanceUnit `json:"allowed_unit,omitempty"`
}

// SubscriptionConfig is the template subscriptions are sold from.
// BookableEventTypes is stored as a JSON column keyed by event type id.
type SubscriptionConfig struct {
	ID                     uint64               // subscription_configs.id
	Name                   string               // subscription_configs.name
	Duration               int                  // subscription_configs.duration
	DurationUnit           DurationUnit         // subscription_configs.duration_units
	StartOptions           StartPolicy          // subscription_configs.start_options
	StartDate              *time.Time           // subscription_configs.start_date (anchor, nullable)
	Recurring              bool                 // subscription_configs.recurring
	Active                 bool                 // subscription_configs.active
	AdvancePurchaseAllowed bool                 // subscription_configs.advance_purchase_allowed
	PartialPurchaseAllowed bool                 // subscription_configs.partial_purchase_allowed
	IncludeNoShowsInUsage  bool                 // subscription_configs.include_no_shows_in_usage
	Cost                   decimal.Decimal      // subscription_configs.cost
	CostPerWeek            decimal.NullDecimal  // subscription_configs.cost_per_week (nullable)
	BookableEventTypes     map[uint64]Allowance // subscription_configs.bookable_event_types (JSON)
}

// Bookable reports whether events of the given type may use the config and
// returns the configured allowance.
func (c SubscriptionConfig) Bookable(eventTypeID uint64) (Allowance, bool) {
	a, ok := c.BookableEventTypes[eventTypeID]
	return a, ok
}

// SubscriptionStatus tracks the payment/lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a user's time-boxed credit.  StartDate may stay nil until
// the first booking for first-booking configs; ExpiryDate is derived from
// StartDate and the config duration.
type Subscription struct {
	ID           uint64              // subscriptions.id
	UserID       uint64              // subscriptions.user_id
	ConfigID     uint64              // subscriptions.config_id
	Config       *SubscriptionConfig // joined from subscription_configs
	Paid         bool                // subscriptions.paid
	Status       SubscriptionStatus  // subscriptions.status
	PurchaseDate time.Time           // subscriptions.purchase_date
	StartDate    *time.Time          // subscriptions.start_date (nullable)
	ExpiryDate   *time.Time          // subscriptions.expiry_date (nullable)
	ReminderSent bool                // subscriptions.reminder_sent
	TimeChecked  *time.Time          // subscriptions.time_checked (nullable)
	CreatedAt    time.Time           // subscriptions.created_at
}

// Expired reports whether the subscription's expiry has passed.
func (s Subscription) Expired(now time.Time) bool {
	return s.ExpiryDate != nil && !now.Before(*s.ExpiryDate)
}
