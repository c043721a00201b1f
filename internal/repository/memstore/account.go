package memstore

import (
	"context"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// PutUser seeds a user row and returns it with its id.
func (s *Store) PutUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.next("users")
	}
	s.st.users[u.ID] = u
	return u
}

func (t *tx) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (t *tx) ListManagedUsers(ctx context.Context, managerID uint64) ([]model.User, error) {
	var out []model.User
	for _, id := range sortedKeys(t.st.users) {
		u := t.st.users[id]
		if u.ManagerID != nil && *u.ManagerID == managerID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (t *tx) LatestDisclaimer(ctx context.Context, userID uint64) (*model.OnlineDisclaimer, error) {
	var latest *model.OnlineDisclaimer
	for _, id := range sortedKeys(t.st.disclaimers) {
		d := t.st.disclaimers[id]
		if d.UserID != userID {
			continue
		}
		if latest == nil || d.SignedAt().After(latest.SignedAt()) {
			d := d
			latest = &d
		}
	}
	return latest, nil
}

func (t *tx) CreateDisclaimer(ctx context.Context, d *model.OnlineDisclaimer) error {
	d.ID = t.st.next("online_disclaimers")
	if d.Date.IsZero() {
		d.Date = t.now()
	}
	t.st.disclaimers[d.ID] = *d
	return nil
}

// CurrentDisclaimerContent returns the published row with the highest
// version, or nil when none has been published.
func (t *tx) CurrentDisclaimerContent(ctx context.Context) (*model.DisclaimerContentRow, error) {
	var cur *model.DisclaimerContentRow
	for i := range t.st.contents {
		c := t.st.contents[i]
		if c.IsDraft {
			continue
		}
		if cur == nil || c.Version.GreaterThan(cur.Version) {
			cur = &c
		}
	}
	return cur, nil
}

func (t *tx) CreateDisclaimerContent(ctx context.Context, c *model.DisclaimerContentRow) error {
	for _, existing := range t.st.contents {
		if existing.Version.Equal(c.Version) {
			return repository.ErrConflict
		}
	}
	t.st.contents = append(t.st.contents, *c)
	return nil
}

func (t *tx) AppendActivityLog(ctx context.Context, entry *model.ActivityLog) error {
	entry.ID = uint64(len(t.st.activity) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now()
	}
	t.st.activity = append(t.st.activity, *entry)
	return nil
}
