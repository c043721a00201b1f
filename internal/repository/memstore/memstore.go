// Package memstore is an in-memory repository.Store.  Units of work are
// serialized by a single mutex and rolled back by restoring a snapshot taken
// when the unit began, so it behaves like the MySQL store under test.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

type state struct {
	seq map[string]uint64

	eventTypes          map[uint64]model.EventType
	events              map[uint64]model.Event
	courses             map[uint64]model.Course
	blockConfigs        map[uint64]model.BlockConfig
	subscriptionConfigs map[uint64]model.SubscriptionConfig
	bookings            map[uint64]model.Booking
	waiting             map[uint64]model.WaitingListUser
	blocks              map[uint64]model.Block
	subscriptions       map[uint64]model.Subscription
	vouchers            map[uint64]model.Voucher
	giftConfigs         map[uint64]model.GiftVoucherConfig
	gifts               map[uint64]model.GiftVoucher
	invoices            map[uint64]model.Invoice
	users               map[uint64]model.User
	disclaimers         map[uint64]model.OnlineDisclaimer
	contents            []model.DisclaimerContentRow
	activity            []model.ActivityLog
}

func newState() *state {
	return &state{
		seq:                 map[string]uint64{},
		eventTypes:          map[uint64]model.EventType{},
		events:              map[uint64]model.Event{},
		courses:             map[uint64]model.Course{},
		blockConfigs:        map[uint64]model.BlockConfig{},
		subscriptionConfigs: map[uint64]model.SubscriptionConfig{},
		bookings:            map[uint64]model.Booking{},
		waiting:             map[uint64]model.WaitingListUser{},
		blocks:              map[uint64]model.Block{},
		subscriptions:       map[uint64]model.Subscription{},
		vouchers:            map[uint64]model.Voucher{},
		giftConfigs:         map[uint64]model.GiftVoucherConfig{},
		gifts:               map[uint64]model.GiftVoucher{},
		invoices:            map[uint64]model.Invoice{},
		users:               map[uint64]model.User{},
		disclaimers:         map[uint64]model.OnlineDisclaimer{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:                 cloneMap(s.seq),
		eventTypes:          cloneMap(s.eventTypes),
		events:              cloneMap(s.events),
		courses:             cloneMap(s.courses),
		blockConfigs:        cloneMap(s.blockConfigs),
		subscriptionConfigs: cloneMap(s.subscriptionConfigs),
		bookings:            cloneMap(s.bookings),
		waiting:             cloneMap(s.waiting),
		blocks:              cloneMap(s.blocks),
		subscriptions:       cloneMap(s.subscriptions),
		vouchers:            cloneMap(s.vouchers),
		giftConfigs:         cloneMap(s.giftConfigs),
		gifts:               cloneMap(s.gifts),
		invoices:            cloneMap(s.invoices),
		users:               cloneMap(s.users),
		disclaimers:         cloneMap(s.disclaimers),
		contents:            append([]model.DisclaimerContentRow(nil), s.contents...),
		activity:            append([]model.ActivityLog(nil), s.activity...),
	}
}

func (s *state) next(table string) uint64 {
	s.seq[table]++
	return s.seq[table]
}

// Store is the in-memory implementation of repository.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock sets the clock used for CreatedAt defaults.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithinTx runs fn with exclusive access to the store.  State changes made
// by fn are discarded when it returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&tx{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// ActivityLogs returns a copy of the activity log.
func (s *Store) ActivityLogs() []model.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ActivityLog(nil), s.st.activity...)
}

type tx struct {
	st  *state
	now func() time.Time
}

var _ repository.Tx = (*tx)(nil)

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
