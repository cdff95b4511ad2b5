package activity

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/features/antigaming"
	"serotonyl.ru/rewards-engine/internal/features/caps"
	"serotonyl.ru/rewards-engine/internal/features/members"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// fakeLedger хранит журнал в памяти и сам реализует LedgerTx.
type fakeLedger struct {
	results   []Result
	totals    map[int64][2]int64
	insertErr error
	nextID    int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{totals: map[int64][2]int64{}}
}

func (l *fakeLedger) InUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx LedgerTx) error) error {
	snapshot := append([]Result(nil), l.results...)
	if err := fn(ctx, l); err != nil {
		l.results = snapshot
		return err
	}
	return nil
}

func (l *fakeLedger) DailyTotals(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (caps.Totals, error) {
	var t caps.Totals
	for _, r := range l.results {
		if r.UserID == userID && !r.RecordedAt.Before(dayStart) && r.RecordedAt.Before(dayEnd) {
			t.Points += r.PointsAwarded
			t.Credits += r.CreditsAwarded
		}
	}
	return t, nil
}

func (l *fakeLedger) InsertResult(ctx context.Context, res *Result) error {
	if l.insertErr != nil {
		return l.insertErr
	}
	l.nextID++
	res.ID = l.nextID
	l.results = append(l.results, *res)
	return nil
}

func (l *fakeLedger) AddMemberTotals(ctx context.Context, userID, points, credits int64) error {
	cur := l.totals[userID]
	l.totals[userID] = [2]int64{cur[0] + points, cur[1] + credits}
	return nil
}

type fakeMembers struct {
	lifetime int64
}

func (m *fakeMembers) Ensure(ctx context.Context, p members.Profile) (*members.Member, error) {
	return &members.Member{UserID: p.UserID, Username: p.Username, TotalPoints: m.lifetime}, nil
}

func (m *fakeMembers) LifetimePoints(ctx context.Context, userID int64) (int64, error) {
	return m.lifetime, nil
}

type fixedStreak int

func (s fixedStreak) Current(context.Context, int64, time.Time) int { return int(s) }

type fakeGate struct {
	verdict antigaming.Verdict
	err     error
}

func (g fakeGate) Evaluate(context.Context, antigaming.Attempt) (antigaming.Verdict, error) {
	return g.verdict, g.err
}

type fakeCache struct {
	calls int
	err   error
}

func (c *fakeCache) Accumulate(ctx context.Context, userID int64, at time.Time, points, credits int64, percentage int) error {
	c.calls++
	return c.err
}

type staticSettings struct{ snap settings.Snapshot }

func (s staticSettings) Snapshot(context.Context) settings.Snapshot { return s.snap }

var monday = time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)

func secs(n int) *int { return &n }

type fixture struct {
	svc    *Service
	ledger *fakeLedger
	cache  *fakeCache
}

func newFixture(gate antigaming.Gate, lifetime int64, streak int) fixture {
	ledger := newFakeLedger()
	cache := &fakeCache{}
	svc := NewService(ledger, &fakeMembers{lifetime: lifetime}, gate, fixedStreak(streak), cache, staticSettings{snap: settings.Defaults()})
	svc.now = func() time.Time { return monday }
	return fixture{svc: svc, ledger: ledger, cache: cache}
}

func allow() antigaming.Gate {
	return fakeGate{verdict: antigaming.Verdict{AllowRewards: true}}
}

func TestCompleteRecordsAndAccumulates(t *testing.T) {
	f := newFixture(allow(), 0, 0)

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 10, BaseCredits: 5,
		Percentage: 95, CompletionSeconds: secs(25),
	})
	require.NoError(t, err)

	// 1.0 × 1.25 × 1.1 = 1.375
	assert.Equal(t, int64(13), resp.FinalPoints)
	assert.Equal(t, int64(5), resp.FinalCredits)
	assert.Equal(t, 1.38, resp.Multiplier)
	assert.False(t, resp.WasLimited)
	assert.True(t, resp.RewardsAllowed)
	assert.Equal(t, "Bonus Applied: 1.38x multiplier!", resp.Message)

	require.Len(t, f.ledger.results, 1)
	assert.Equal(t, int64(13), f.ledger.results[0].PointsAwarded)
	assert.Equal(t, [2]int64{13, 5}, f.ledger.totals[1])
	assert.Equal(t, 1, f.cache.calls)
}

func TestCompleteNearDailyCap(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	f.ledger.results = append(f.ledger.results, Result{
		UserID: 1, RecordedAt: monday.Add(-time.Hour), PointsAwarded: 495, CreditsAwarded: 10,
	})

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 15, BaseCredits: 5, Percentage: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), resp.FinalPoints)
	assert.Equal(t, int64(5), resp.FinalCredits)
	assert.True(t, resp.WasLimited)
	assert.Contains(t, resp.Message, "Daily limit reached")
	assert.True(t, f.ledger.results[1].WasLimited)
}

func TestCompleteAtCapRecordsZero(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	f.ledger.results = append(f.ledger.results, Result{
		UserID: 1, RecordedAt: monday.Add(-time.Hour), PointsAwarded: 500, CreditsAwarded: 200,
	})

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 15, BaseCredits: 5, Percentage: 50,
	})
	require.NoError(t, err)

	assert.Zero(t, resp.FinalPoints)
	assert.Zero(t, resp.FinalCredits)
	assert.True(t, resp.WasLimited)
	assert.True(t, resp.LimitRejected)
	assert.Equal(t, "Daily limit reached: no rewards awarded", resp.Message)
	assert.Len(t, f.ledger.results, 2)
	// Строка журнала с rewards_allowed попадает и в кэш, как при пересборке
	assert.Equal(t, 1, f.cache.calls)
	_, touched := f.ledger.totals[1]
	assert.False(t, touched)
}

func TestCompleteClippedIsNotRejected(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	f.ledger.results = append(f.ledger.results, Result{
		UserID: 1, RecordedAt: monday.Add(-time.Hour), PointsAwarded: 495, CreditsAwarded: 200,
	})

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 15, BaseCredits: 5, Percentage: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), resp.FinalPoints)
	assert.Zero(t, resp.FinalCredits)
	assert.True(t, resp.WasLimited)
	assert.False(t, resp.LimitRejected)
}

func TestCompleteBackdatingDoesNotResetDailyCap(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	ctx := context.Background()

	var awarded int64
	for i := 0; i < 10; i++ {
		at := monday.Add(-time.Duration(i) * 2 * time.Hour)
		resp, err := f.svc.Complete(ctx, CompleteRequest{
			UserID: 1, ActivityID: int64(i + 1), BasePoints: 400, Percentage: 50, CompletedAt: &at,
		})
		require.NoError(t, err)
		awarded += resp.FinalPoints
	}

	assert.Equal(t, settings.Defaults().DailyPointsLimit, awarded)
}

func TestCompleteRejectsCompletedAtOutsideWindow(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	ctx := context.Background()

	for _, at := range []time.Time{
		monday.AddDate(0, 0, -3),
		monday.Add(-25 * time.Hour),
		monday.Add(10 * time.Minute),
		monday.AddDate(1, 0, 0),
	} {
		_, err := f.svc.Complete(ctx, CompleteRequest{
			UserID: 1, ActivityID: 10, BasePoints: 400, Percentage: 50, CompletedAt: &at,
		})
		assert.ErrorIs(t, err, common.ErrInvalidCompletedAt, "completed_at %s", at)
	}
	assert.Empty(t, f.ledger.results)

	// Небольшое расхождение часов допустимо
	skewed := monday.Add(2 * time.Minute)
	_, err := f.svc.Complete(ctx, CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 10, Percentage: 50, CompletedAt: &skewed,
	})
	require.NoError(t, err)
	require.Len(t, f.ledger.results, 1)
	assert.Equal(t, skewed, f.ledger.results[0].CompletedAt)
	assert.Equal(t, monday, f.ledger.results[0].RecordedAt)
}

func TestCompleteBlockedByGate(t *testing.T) {
	gate := fakeGate{verdict: antigaming.Verdict{AllowRewards: false, RiskScore: 0.7}}
	f := newFixture(gate, 0, 0)

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 15, BaseCredits: 5, Percentage: 100,
	})
	require.NoError(t, err)

	assert.Zero(t, resp.FinalPoints)
	assert.Zero(t, resp.FinalCredits)
	assert.False(t, resp.RewardsAllowed)

	require.Len(t, f.ledger.results, 1)
	assert.False(t, f.ledger.results[0].RewardsAllowed)
	assert.Equal(t, 0.7, f.ledger.results[0].RiskScore)
	assert.Zero(t, f.cache.calls)
}

func TestCompleteGateErrorFailsOpen(t *testing.T) {
	f := newFixture(fakeGate{err: errors.New("db down")}, 0, 0)

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 10, BaseCredits: 5, Percentage: 50,
	})
	require.NoError(t, err)
	assert.True(t, resp.RewardsAllowed)
	assert.Equal(t, int64(10), resp.FinalPoints)
}

func TestCompleteCacheErrorIsSwallowed(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	f.cache.err = errors.New("cache down")

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 10, BaseCredits: 5, Percentage: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.FinalPoints)
	assert.Len(t, f.ledger.results, 1)
}

func TestCompleteLedgerErrorIsReturned(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	f.ledger.insertErr = errors.New("insert failed")

	_, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 10, BaseCredits: 5, Percentage: 50,
	})
	assert.Error(t, err)
	assert.Zero(t, f.cache.calls)
}

func TestCompleteGoldTierWithStreak(t *testing.T) {
	f := newFixture(allow(), 6000, 5)

	resp, err := f.svc.Complete(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 10, BaseCredits: 5, Percentage: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "gold", resp.Tier)
	assert.Equal(t, 5, resp.StreakDays)
	assert.Contains(t, resp.Message, "Gold Tier Benefits!")
	assert.Contains(t, resp.Message, "5 Day Streak!")
}

func TestCompleteValidation(t *testing.T) {
	f := newFixture(allow(), 0, 0)
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, CompleteRequest{UserID: 1, Percentage: 101})
	assert.ErrorIs(t, err, common.ErrInvalidPercentage)

	_, err = f.svc.Complete(ctx, CompleteRequest{UserID: 1, BasePoints: -1})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = f.svc.Complete(ctx, CompleteRequest{UserID: 1, BasePoints: 1_000_001})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = f.svc.Complete(ctx, CompleteRequest{UserID: 1, BaseCredits: math.MaxInt64})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = f.svc.Complete(ctx, CompleteRequest{UserID: 1, CompletionSeconds: secs(-5)})
	assert.ErrorIs(t, err, common.ErrInvalidDuration)

	_, err = f.svc.Complete(ctx, CompleteRequest{UserID: 0})
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	assert.Empty(t, f.ledger.results)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture(fakeGate{verdict: antigaming.Verdict{AllowRewards: false}}, 0, 0)
	f.ledger.results = append(f.ledger.results, Result{
		UserID: 1, RecordedAt: monday.Add(-time.Hour), PointsAwarded: 495,
	})

	resp, err := f.svc.Preview(context.Background(), CompleteRequest{
		UserID: 1, ActivityID: 10, BasePoints: 15, BaseCredits: 5, Percentage: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), resp.FinalPoints)
	assert.True(t, resp.WasLimited)
	assert.True(t, resp.RewardsAllowed)
	assert.Len(t, f.ledger.results, 1)
	assert.Zero(t, f.cache.calls)
}
