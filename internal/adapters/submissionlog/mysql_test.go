package submissionlog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mysqlDSNEnv = "CONTACT_GUARD_TEST_MYSQL_DSN"

func newMySQLLog(t *testing.T, lockTimeout time.Duration) *MySQLLog {
	t.Helper()
	log, err := NewMySQLLog(testDSN(t, mysqlDSNEnv), lockTimeout, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestGetLockSeconds(t *testing.T) {
	assert.Equal(t, -1, getLockSeconds(0))
	assert.Equal(t, -1, getLockSeconds(-time.Second))
	assert.Equal(t, 1, getLockSeconds(time.Millisecond))
	assert.Equal(t, 1, getLockSeconds(500*time.Millisecond))
	assert.Equal(t, 1, getLockSeconds(time.Second))
	assert.Equal(t, 2, getLockSeconds(1500*time.Millisecond))
	assert.Equal(t, 5, getLockSeconds(5*time.Second))
}

func TestMySQLLog_ConcurrentCheckThenInsert(t *testing.T) {
	log := newMySQLLog(t, 5*time.Second)
	email := uniqueEmail()

	assert.Equal(t, 1, raceCheckThenInsert(t, log, email, 8))

	var count int
	require.NoError(t, log.db.QueryRow(`SELECT COUNT(*) FROM contact_submissions WHERE email = ?`, email).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMySQLLog_SubSecondLockTimeoutStillWaits(t *testing.T) {
	log := newMySQLLog(t, 300*time.Millisecond)

	assertLockWaitTimesOut(t, log, "email:"+uniqueEmail(), 900*time.Millisecond)
}

func TestMySQLLog_NeverBackdatesSameKey(t *testing.T) {
	ctx := context.Background()
	log := newMySQLLog(t, 5*time.Second)
	email := uniqueEmail()

	require.NoError(t, log.Insert(ctx, record(uuid.NewString(), email, "", base)))

	late := record(uuid.NewString(), email, "", base.Add(-time.Second))
	require.NoError(t, log.Insert(ctx, late))
	assert.True(t, late.CreatedAt.Equal(base))

	rec, err := log.MostRecentByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(base))

	_, err = log.MostRecentByEmail(ctx, uniqueEmail())
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}
