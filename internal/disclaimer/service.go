package disclaimer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/cache"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// ErrAlreadySigned is returned when a user with an active disclaimer signs
// again.
var ErrAlreadySigned = fmt.Errorf("disclaimer: active disclaimer already exists: %w", repository.ErrConflict)

// Service publishes content, records signatures and checks them.  It
// satisfies identity.DisclaimerChecker.
type Service struct {
	store    repository.Store
	rdb      *redis.Client
	active   *cache.Versioned
	prefix   string
	validity time.Duration
	now      func() time.Time
}

// NewService returns a Service.  rdb may be nil, which disables caching.
func NewService(store repository.Store, rdb *redis.Client, prefix string, validity time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if prefix == "" {
		prefix = "cache"
	}
	return &Service{
		store:    store,
		rdb:      rdb,
		active:   cache.NewVersioned(rdb, prefix, "disclaimer", 10*time.Minute),
		prefix:   prefix,
		validity: validity,
		now:      now,
	}
}

// WithCacheTTL sets how long cached answers live.  Call it before use.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.active = cache.NewVersioned(s.rdb, s.prefix, "disclaimer", ttl)
	}
	return s
}

// Current returns the latest published version, or nil.
func (s *Service) Current(ctx context.Context) (*Published, error) {
	var out *Published
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		row, err := tx.CurrentDisclaimerContent(ctx)
		if err != nil {
			return err
		}
		if row != nil {
			p := fromRow(*row)
			out = &p
		}
		return nil
	})
	return out, err
}

// Publish issues the draft as the new current version.  Every cached
// answer is dropped since older signatures stop counting.
func (s *Service) Publish(ctx context.Context, d Draft) (*Published, error) {
	var pub Published
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		row, err := tx.CurrentDisclaimerContent(ctx)
		if err != nil {
			return err
		}
		var cur *Published
		if row != nil {
			c := fromRow(*row)
			cur = &c
		}
		if pub, err = d.Publish(cur, s.now()); err != nil {
			return err
		}
		r := pub.row()
		if err := tx.CreateDisclaimerContent(ctx, &r); err != nil {
			return fmt.Errorf("create disclaimer content: %w", err)
		}
		return tx.AppendActivityLog(ctx, &model.ActivityLog{Log: fmt.Sprintf("Disclaimer Content version %s created", pub.version.StringFixed(1))})
	})
	if err != nil {
		return nil, err
	}
	s.bumpGeneration(ctx)
	return &pub, nil
}

// Sign records a signature of the current version for the user.
func (s *Service) Sign(ctx context.Context, userID uint64) (*model.OnlineDisclaimer, error) {
	now := s.now()
	var d model.OnlineDisclaimer
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ok, err := s.activeTx(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if ok {
			return ErrAlreadySigned
		}
		row, err := tx.CurrentDisclaimerContent(ctx)
		if err != nil {
			return err
		}
		d = model.OnlineDisclaimer{UserID: userID, Version: decimal.Zero, Date: now}
		if row != nil {
			d.Version = row.Version
		}
		if err := tx.CreateDisclaimer(ctx, &d); err != nil {
			return fmt.Errorf("create disclaimer: %w", err)
		}
		return tx.AppendActivityLog(ctx, &model.ActivityLog{Log: fmt.Sprintf("Online disclaimer created: user %d - V%s", userID, d.Version.StringFixed(1))})
	})
	if err != nil {
		return nil, err
	}
	s.active.Invalidate(ctx, userID)
	return &d, nil
}

// HasActive reports whether the user's latest signature is of the current
// version and was made within the validity period.
func (s *Service) HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	return s.active.Bool(ctx, userID, s.generationKey(ctx), func(ctx context.Context) (bool, error) {
		var ok bool
		err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
			var err error
			ok, err = s.activeTx(ctx, tx, userID, now)
			return err
		})
		return ok, err
	})
}

func (s *Service) activeTx(ctx context.Context, tx repository.Tx, userID uint64, now time.Time) (bool, error) {
	d, err := tx.LatestDisclaimer(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("latest disclaimer: %w", err)
	}
	if d == nil {
		return false, nil
	}
	row, err := tx.CurrentDisclaimerContent(ctx)
	if err != nil {
		return false, fmt.Errorf("current disclaimer content: %w", err)
	}
	current := decimal.Zero
	if row != nil {
		current = row.Version
	}
	return d.Version.Equal(current) && d.SignedAt().Add(s.validity).After(now), nil
}

// The generation is bumped on publish so entries cached under older
// content versions are never read again.
func (s *Service) generationKeyName() string { return s.prefix + ":disclaimer:gen" }

func (s *Service) generationKey(ctx context.Context) string {
	if s.rdb == nil {
		return "active"
	}
	gen, err := s.rdb.Get(ctx, s.generationKeyName()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("disclaimer: generation read failed: %v", err)
	}
	return fmt.Sprintf("active:g%d", gen)
}

func (s *Service) bumpGeneration(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, s.generationKeyName()).Err(); err != nil {
		log.Printf("disclaimer: generation bump failed: %v", err)
	}
}
