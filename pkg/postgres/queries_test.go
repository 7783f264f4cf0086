package postgres

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestSearchMembersQuery(t *testing.T) {
	query, args, err := searchMembersQuery("  Jo_ ", 50).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "FROM members WHERE (display_name ILIKE $1 OR legal_name ILIKE $2 OR email ILIKE $3)")
	assert.Contains(t, query, "ORDER BY display_name LIMIT 50")
	assert.Equal(t, []any{`%Jo\_%`, `%Jo\_%`, `%Jo\_%`}, args)
}

func TestSearchMembersQuery_EmptyQueryListsEveryone(t *testing.T) {
	query, args, err := searchMembersQuery("", 0).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

func TestUpdateStatusQuery(t *testing.T) {
	at := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

	query, args, err := updateStatusQuery("m1", model.StatusSuspended, model.StatusInactive, at).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE members SET status = $1, updated_at = $2 WHERE (id = $3 AND status = $4)", query)
	assert.Equal(t, []any{model.StatusInactive, at, "m1", model.StatusSuspended}, args)

	query, _, err = updateStatusQuery("m1", model.StatusPending, model.StatusActive, at).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "member_since = COALESCE(member_since, $3)")
}

func TestVisibleAnnouncementsQuery(t *testing.T) {
	now := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

	query, args, err := visibleAnnouncementsQuery(now).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE (is_published = $1 AND publish_at <= $2 AND (expires_at IS NULL OR expires_at > $3))")
	assert.Equal(t, []any{true, now, now}, args)
}

func TestLatestWaiversQuery(t *testing.T) {
	query, _, err := latestWaiversQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "SELECT DISTINCT ON (member_id) id, member_id")
	assert.Contains(t, query, "ORDER BY member_id, signed_date DESC")
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_reads.sql": {Data: []byte("SELECT 2;")},
		"migrations/001_init.sql":  {Data: []byte("SELECT 1;")},
		"migrations/003_next.sql":  {Data: []byte("SELECT 3;")},
		"migrations/README.md":     {Data: []byte("notes")},
	}

	pending, err := pendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_reads.sql", "003_next.sql"}, pending)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	pending, err := pendingMigrations(migrationsFS, nil)
	require.NoError(t, err)
	assert.Contains(t, pending, "001_init.sql")
}
