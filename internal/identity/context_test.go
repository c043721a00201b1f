package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/repository/memstore"
)

type fixedChecker map[uint64]bool

func (f fixedChecker) HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	return f[userID], nil
}

func TestCanActFor(t *testing.T) {
	parent := New(1, model.RoleStudent, []uint64{5}, nil)
	assert.True(t, parent.CanActFor(1))
	assert.True(t, parent.CanActFor(5))
	assert.False(t, parent.CanActFor(6))

	staff := New(2, model.RoleStaff, nil, nil)
	assert.True(t, staff.IsStaff())
	assert.True(t, staff.CanActFor(6))
}

func TestHasActiveDisclaimer(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	ok, err := New(1, model.RoleStudent, nil, nil).HasActiveDisclaimer(ctx, 1, now)
	require.NoError(t, err)
	assert.True(t, ok, "no checker means signed")

	uc := New(1, model.RoleStudent, nil, fixedChecker{1: true})
	ok, err = uc.HasActiveDisclaimer(ctx, 1, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = uc.HasActiveDisclaimer(ctx, 2, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := New(1, model.RoleStudent, nil, nil)
	assert.Equal(t, -1, uc.Age(now))

	dob := time.Date(2008, 3, 1, 0, 0, 0, 0, time.UTC)
	uc.DateOfBirth = &dob
	assert.Equal(t, 16, uc.Age(now))

	dob = time.Date(2008, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 15, uc.Age(now))
}

func TestLoaderLoad(t *testing.T) {
	store := memstore.New()
	dob := time.Date(1990, 5, 4, 0, 0, 0, 0, time.UTC)
	parent := store.PutUser(model.User{Email: "p@example.com", Role: model.RoleStudent, IsActive: true, DateOfBirth: &dob})
	child := store.PutUser(model.User{Email: "c@example.com", Role: model.RoleStudent, IsActive: true, ManagerID: &parent.ID})
	gone := store.PutUser(model.User{Email: "x@example.com", Role: model.RoleStudent})

	l := NewLoader(store, fixedChecker{})
	ctx := context.Background()

	uc, err := l.Load(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{child.ID}, uc.ManagedUserIDs)
	require.NotNil(t, uc.DateOfBirth)
	ok, err := uc.HasActiveDisclaimer(ctx, parent.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Load(ctx, gone.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = l.Load(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
