// Package identity builds the UserContext that booking operations act
// through: who is asking, for whom they may act, and whether a given user
// has an active disclaimer.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// DisclaimerChecker reports whether a user holds an active signed
// disclaimer.
type DisclaimerChecker interface {
	HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error)
}

// UserContext is the caller of an operation.
type UserContext struct {
	UserID         uint64
	Role           string
	DateOfBirth    *time.Time
	ManagedUserIDs []uint64

	disclaimers DisclaimerChecker
}

// New returns a UserContext with the given disclaimer capability.  A nil
// checker treats every user as having signed.
func New(userID uint64, role string, managed []uint64, checker DisclaimerChecker) *UserContext {
	return &UserContext{UserID: userID, Role: role, ManagedUserIDs: managed, disclaimers: checker}
}

// IsStaff reports the STAFF role.
func (uc *UserContext) IsStaff() bool { return uc.Role == model.RoleStaff }

// CanActFor reports whether the caller may book for userID: themselves, one
// of their managed accounts, or anyone when staff.
func (uc *UserContext) CanActFor(userID uint64) bool {
	if userID == uc.UserID || uc.IsStaff() {
		return true
	}
	for _, id := range uc.ManagedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasActiveDisclaimer asks the disclaimer service about userID.
func (uc *UserContext) HasActiveDisclaimer(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	if uc.disclaimers == nil {
		return true, nil
	}
	return uc.disclaimers.HasActive(ctx, userID, now)
}

// Age returns the caller's age in whole years at now, or -1 when the date
// of birth is unknown.
func (uc *UserContext) Age(now time.Time) int {
	if uc.DateOfBirth == nil {
		return -1
	}
	dob := *uc.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// Loader builds UserContexts from the store.
type Loader struct {
	store   repository.Store
	checker DisclaimerChecker
}

// NewLoader returns a Loader.
func NewLoader(store repository.Store, checker DisclaimerChecker) *Loader {
	return &Loader{store: store, checker: checker}
}

// Load reads the user and their managed accounts.  Inactive users get
// repository.ErrForbidden.
func (l *Loader) Load(ctx context.Context, userID uint64) (*UserContext, error) {
	var uc *UserContext
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user %d: %w", userID, err)
		}
		if !u.IsActive {
			return repository.ErrForbidden
		}
		managed, err := tx.ListManagedUsers(ctx, userID)
		if err != nil {
			return fmt.Errorf("list managed users: %w", err)
		}
		ids := make([]uint64, 0, len(managed))
		for _, m := range managed {
			ids = append(ids, m.ID)
		}
		uc = New(u.ID, u.Role, ids, l.checker)
		uc.DateOfBirth = u.DateOfBirth
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uc, nil
}
