package submissionlog

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDSN returns the DSN in env or skips the test
func testDSN(t *testing.T, env string) string {
	t.Helper()
	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("%s not set", env)
	}
	return dsn
}

func uniqueEmail() string {
	return "race-" + uuid.NewString() + "@x.com"
}

// raceCheckThenInsert runs n concurrent atomic sections that each insert a
// record for email only when none exists yet, and returns how many inserted.
func raceCheckThenInsert(t *testing.T, log core.SubmissionLog, email string, n int) int {
	t.Helper()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := log.Atomically(ctx, core.LockKeys(email, ""), func(tx core.SubmissionTx) error {
				_, err := tx.MostRecentByEmail(ctx, email)
				if err == nil {
					return nil
				}
				if !errors.Is(err, core.ErrRecordNotFound) {
					return err
				}
				if err := tx.Insert(ctx, record(uuid.NewString(), email, "", base)); err != nil {
					return err
				}
				mu.Lock()
				inserted++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()
	return inserted
}

// assertLockWaitTimesOut holds key in one atomic section and checks that a
// second section on the same key gives up after at least minWait without
// running its body.
func assertLockWaitTimesOut(t *testing.T, log core.SubmissionLog, key string, minWait time.Duration) {
	t.Helper()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- log.Atomically(ctx, []string{key}, func(tx core.SubmissionTx) error {
			close(entered)
			<-release
			return nil
		})
	}()

	select {
	case <-entered:
	case <-time.After(10 * time.Second):
		t.Fatal("first section never entered")
	}

	start := time.Now()
	err := log.Atomically(ctx, []string{key}, func(tx core.SubmissionTx) error {
		t.Error("second section ran while the key was held")
		return nil
	})
	waited := time.Since(start)

	close(release)
	require.NoError(t, <-holder)

	require.Error(t, err)
	assert.GreaterOrEqual(t, waited, minWait)
}
