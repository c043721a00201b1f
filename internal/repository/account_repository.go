package repository

import (
	"context"

	"github.com/iliyamo/studio-booking/internal/model"
)

const userCols = `id, email, password_hash, role, date_of_birth, manager_id, is_active, created_at, updated_at`

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.DateOfBirth, &u.ManagerID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (t *mysqlTx) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, "SELECT "+userCols+" FROM users WHERE id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (t *mysqlTx) ListManagedUsers(ctx context.Context, managerID uint64) ([]model.User, error) {
	rows, err := t.tx.QueryContext(ctx, "SELECT "+userCols+" FROM users WHERE manager_id=? ORDER BY id", managerID)
	return collect(rows, err, scanUser)
}

// LatestDisclaimer returns the most recently signed disclaimer, or nil.
func (t *mysqlTx) LatestDisclaimer(ctx context.Context, userID uint64) (*model.OnlineDisclaimer, error) {
	var d model.OnlineDisclaimer
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, user_id, version, date, date_updated FROM online_disclaimers
		 WHERE user_id=? ORDER BY COALESCE(date_updated, date) DESC, id DESC LIMIT 1`, userID).Scan(
		&d.ID, &d.UserID, &d.Version, &d.Date, &d.DateUpdated)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (t *mysqlTx) CreateDisclaimer(ctx context.Context, d *model.OnlineDisclaimer) error {
	if d.Date.IsZero() {
		d.Date = t.now()
	}
	id, err := t.insert(ctx,
		"INSERT INTO online_disclaimers (user_id, version, date, date_updated) VALUES (?,?,?,?)",
		d.UserID, d.Version, d.Date, d.DateUpdated)
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// CurrentDisclaimerContent returns the highest published version, or nil.
func (t *mysqlTx) CurrentDisclaimerContent(ctx context.Context) (*model.DisclaimerContentRow, error) {
	var c model.DisclaimerContentRow
	err := t.tx.QueryRowContext(ctx,
		`SELECT version, disclaimer_terms, is_draft, issue_date FROM disclaimer_contents
		 WHERE is_draft=0 ORDER BY version DESC LIMIT 1`).Scan(&c.Version, &c.Content, &c.IsDraft, &c.IssueDate)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (t *mysqlTx) CreateDisclaimerContent(ctx context.Context, c *model.DisclaimerContentRow) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO disclaimer_contents (version, disclaimer_terms, is_draft, issue_date) VALUES (?,?,?,?)",
		c.Version, c.Content, c.IsDraft, c.IssueDate)
	return writeErr(err)
}

func (t *mysqlTx) AppendActivityLog(ctx context.Context, entry *model.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now()
	}
	id, err := t.insert(ctx, "INSERT INTO activity_logs (log, timestamp) VALUES (?,?)", entry.Log, entry.CreatedAt)
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}
