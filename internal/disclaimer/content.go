// Package disclaimer owns disclaimer content versions and answers whether
// a user has an active signed disclaimer.
//
// Content is edited as a Draft and frozen by Publish into a Published
// value whose fields cannot be changed afterwards.
package disclaimer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/model"
)

var (
	// ErrUnchanged is returned when publishing content identical to the
	// current version.
	ErrUnchanged = errors.New("disclaimer: no changes made to content")
	// ErrVersionNotNewer is returned when a draft's version does not exceed
	// the current one.
	ErrVersionNotNewer = errors.New("disclaimer: version must be newer than the current version")
)

// Draft is editable disclaimer content.  A zero Version publishes as the
// next major version.
type Draft struct {
	Version   decimal.Decimal
	Content   string
	IssueDate time.Time
}

// Edit replaces the content and moves the issue date.
func (d *Draft) Edit(content string, now time.Time) {
	d.Content = content
	d.IssueDate = now
}

// Published is an issued disclaimer version.  Values are only produced by
// Draft.Publish or read back from the store.
type Published struct {
	version   decimal.Decimal
	content   string
	issueDate time.Time
}

func (p Published) Version() decimal.Decimal { return p.version }
func (p Published) Content() string          { return p.content }
func (p Published) IssueDate() time.Time     { return p.issueDate }

// Publish freezes the draft.  current is the latest published version, or
// nil when there is none.
func (d Draft) Publish(current *Published, now time.Time) (Published, error) {
	if strings.TrimSpace(d.Content) == "" {
		return Published{}, fmt.Errorf("disclaimer: empty content: %w", model.ErrInvalidConfig)
	}
	cur := decimal.Zero
	if current != nil {
		if current.content == d.Content {
			return Published{}, ErrUnchanged
		}
		cur = current.version
	}
	version := d.Version
	if version.IsZero() {
		version = cur.Add(decimal.NewFromInt(1)).Floor()
	}
	if !version.GreaterThan(cur) {
		return Published{}, ErrVersionNotNewer
	}
	issued := d.IssueDate
	if issued.IsZero() {
		issued = now
	}
	return Published{version: version.Round(1), content: d.Content, issueDate: issued}, nil
}

func (p Published) row() model.DisclaimerContentRow {
	return model.DisclaimerContentRow{Version: p.version, Content: p.content, IssueDate: p.issueDate}
}

func fromRow(r model.DisclaimerContentRow) Published {
	return Published{version: r.Version, content: r.Content, issueDate: r.IssueDate}
}
