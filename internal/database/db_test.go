package database

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNKeepsTimesInUTC(t *testing.T) {
	dsn := DSN("studio", "s3cret", "db.local", "3306", "studio")
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.local:3306", cfg.Addr)
	assert.Equal(t, "studio", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "UTC", cfg.Loc.String())
}

func TestStatementsCoverEveryTable(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)
	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
		assert.False(t, strings.HasSuffix(s, ";"))
	}
	joined := strings.Join(stmts, "\n")
	for _, table := range []string{"bookings", "blocks", "subscriptions", "vouchers", "invoice_items", "activity_logs"} {
		assert.Contains(t, joined, "EXISTS "+table+" (")
	}
	assert.Contains(t, joined, "UNIQUE KEY uq_bookings_user_event (user_id, event_id)")
}
