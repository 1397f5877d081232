package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/contact-guard/internal/adapters/submissionlog"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// inlineDispatcher runs follow-up work before Dispatch returns
type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

type fakeScreener struct {
	score float64
	err   error
	calls int
}

func (s *fakeScreener) Screen(ctx context.Context, record *core.SubmissionRecord) (*core.ScreeningVerdict, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &core.ScreeningVerdict{Score: s.score, Confidence: 0.9, ModelUsed: "fake"}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	records  []*core.SubmissionRecord
	verdicts []*core.ScreeningVerdict
}

func (n *recordingNotifier) Notify(ctx context.Context, record *core.SubmissionRecord, verdict *core.ScreeningVerdict) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	n.verdicts = append(n.verdicts, verdict)
	return nil
}

type trustedDomain string

func (d trustedDomain) IsWhitelisted(from string) bool {
	return len(from) > len(d) && from[len(from)-len(d):] == string(d)
}

func newTestService(t *testing.T, screening *core.Screening, notifier core.Notifier) (*core.ContactService, *submissionlog.MemoryLog, *clock) {
	t.Helper()
	g, log, clk := newTestGuard(t, testPolicy)
	svc := core.NewContactService(g, log, screening, notifier, inlineDispatcher{}, zap.NewNop())
	return svc, log, clk
}

func submission(email, ip, honeypot string, elapsed *float64) *core.ContactSubmission {
	c := candidate(email, ip, elapsed)
	c.HoneypotValue = honeypot
	return &core.ContactSubmission{Candidate: *c, UserAgent: "test-agent/1.0"}
}

func TestSubmit_Scenario(t *testing.T) {
	svc, log, clk := newTestService(t, nil, nil)
	ctx := context.Background()

	a, err := svc.Submit(ctx, submission("a@x.com", "1.1.1.1", "", &tenSeconds))
	require.NoError(t, err)
	require.True(t, a.Result.Accepted)
	require.NotNil(t, a.Record)
	assert.NotEmpty(t, a.Record.ID)
	assert.Equal(t, t0, a.Record.CreatedAt)
	assert.Equal(t, "test-agent/1.0", a.Record.UserAgent)
	assert.Equal(t, 1, log.Len())

	clk.Advance(60 * time.Second)

	b, err := svc.Submit(ctx, submission("a@x.com", "2.2.2.2", "", &tenSeconds))
	require.NoError(t, err)
	assert.Equal(t, core.ReasonEmailCooldownActive, b.Result.Reason)
	assert.Equal(t, 60, b.Result.RemainingSeconds())
	assert.Nil(t, b.Record)

	c, err := svc.Submit(ctx, submission("b@y.com", "1.1.1.1", "", &tenSeconds))
	require.NoError(t, err)
	assert.Equal(t, core.ReasonIPCooldownActive, c.Result.Reason)
	assert.Equal(t, 240, c.Result.RemainingSeconds())

	d, err := svc.Submit(ctx, submission("c@z.com", "3.3.3.3", "bot", &tenSeconds))
	require.NoError(t, err)
	assert.Equal(t, core.ReasonAutomatedSubmission, d.Result.Reason)

	assert.Equal(t, 1, log.Len(), "rejections are never recorded")
}

func TestSubmit_ConcurrentSameEmail(t *testing.T) {
	svc, log, _ := newTestService(t, nil, nil)

	const n = 16
	results := make([]*core.SubmitOutcome, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			out, err := svc.Submit(context.Background(), submission("race@x.com", "", "", &tenSeconds))
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	close(start)
	wg.Wait()

	accepted := 0
	for _, out := range results {
		require.NotNil(t, out)
		if out.Result.Accepted {
			accepted++
		} else {
			assert.Equal(t, core.ReasonEmailCooldownActive, out.Result.Reason)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, log.Len())
}

func TestSubmit_StoresNormalizedKeys(t *testing.T) {
	svc, log, _ := newTestService(t, nil, nil)

	out, err := svc.Submit(context.Background(), submission(" Ada@Example.com", "::ffff:10.0.0.1", "", nil))
	require.NoError(t, err)
	require.True(t, out.Result.Accepted)

	rec, err := log.MostRecentByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", rec.IPAddress)
}

func TestSubmit_PersistenceFailure(t *testing.T) {
	g := core.NewGuard(failingLog{}, testPolicy, zap.NewNop())
	svc := core.NewContactService(g, failingLog{}, nil, nil, inlineDispatcher{}, zap.NewNop())

	out, err := svc.Submit(context.Background(), submission("a@x.com", "1.1.1.1", "", &tenSeconds))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, errDatabase)
}

func TestSubmit_FollowUpScreensAndNotifies(t *testing.T) {
	screener := &fakeScreener{score: 0.9}
	notifier := &recordingNotifier{}
	svc, _, _ := newTestService(t, &core.Screening{Screener: screener, Threshold: 0.7}, notifier)

	out, err := svc.Submit(context.Background(), submission("a@x.com", "1.1.1.1", "", &tenSeconds))
	require.NoError(t, err)
	require.True(t, out.Result.Accepted)

	assert.Equal(t, 1, screener.calls)
	require.Len(t, notifier.records, 1)
	assert.Equal(t, out.Record.ID, notifier.records[0].ID)
	require.NotNil(t, notifier.verdicts[0])
	assert.True(t, notifier.verdicts[0].IsSpam)
}

func TestSubmit_FollowUpBelowThreshold(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _, _ := newTestService(t, &core.Screening{Screener: &fakeScreener{score: 0.2}, Threshold: 0.7}, notifier)

	_, err := svc.Submit(context.Background(), submission("a@x.com", "1.1.1.1", "", nil))
	require.NoError(t, err)
	require.Len(t, notifier.verdicts, 1)
	assert.False(t, notifier.verdicts[0].IsSpam)
}

func TestSubmit_TrustedSenderSkipsScreening(t *testing.T) {
	screener := &fakeScreener{score: 1}
	notifier := &recordingNotifier{}
	svc, _, _ := newTestService(t, &core.Screening{
		Screener:  screener,
		Trusted:   trustedDomain("@friends.org"),
		Threshold: 0.7,
	}, notifier)

	_, err := svc.Submit(context.Background(), submission("pal@friends.org", "1.1.1.1", "", nil))
	require.NoError(t, err)
	assert.Zero(t, screener.calls)
	require.Len(t, notifier.verdicts, 1)
	assert.Nil(t, notifier.verdicts[0])
}

func TestSubmit_ScreeningErrorStillNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _, _ := newTestService(t, &core.Screening{Screener: &fakeScreener{err: errors.New("quota exceeded")}, Threshold: 0.7}, notifier)

	out, err := svc.Submit(context.Background(), submission("a@x.com", "1.1.1.1", "", nil))
	require.NoError(t, err)
	require.True(t, out.Result.Accepted)
	require.Len(t, notifier.verdicts, 1)
	assert.Nil(t, notifier.verdicts[0])
}

func TestSubmit_RejectionSkipsFollowUp(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _, _ := newTestService(t, nil, notifier)

	_, err := svc.Submit(context.Background(), submission("a@x.com", "1.1.1.1", "filled", nil))
	require.NoError(t, err)
	assert.Empty(t, notifier.records)
}

func TestStatus(t *testing.T) {
	svc, _, clk := newTestService(t, nil, nil)
	ctx := context.Background()

	st, err := svc.Status(ctx, "a@x.com", "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, st.CanSubmit)
	assert.Zero(t, st.RemainingSeconds)

	_, err = svc.Submit(ctx, submission("a@x.com", "1.1.1.1", "", nil))
	require.NoError(t, err)
	clk.Advance(30*time.Second + 200*time.Millisecond)

	st, err = svc.Status(ctx, "A@X.com", "")
	require.NoError(t, err)
	assert.False(t, st.CanSubmit)
	assert.Equal(t, 90, st.RemainingSeconds)

	st, err = svc.Status(ctx, "", "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, 270, st.RemainingSeconds)

	st, err = svc.Status(ctx, "", "")
	require.NoError(t, err)
	assert.True(t, st.CanSubmit)
}
