package leaderboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/settings"
)

type fakeStore struct {
	week    []Aggregate
	weekErr error
	live    []Aggregate
	liveErr error

	liveFrom, liveTo *time.Time
	liveCalls        int
	readWeekStart    time.Time

	rebuilds     atomic.Int32
	rebuildGate  chan struct{}
	cleanupUntil time.Time
	stats        Stats
}

func (s *fakeStore) ReadWeek(ctx context.Context, weekStart time.Time) ([]Aggregate, error) {
	s.readWeekStart = weekStart
	return s.week, s.weekErr
}

func (s *fakeStore) LiveAggregate(ctx context.Context, from, to *time.Time) ([]Aggregate, error) {
	s.liveCalls++
	s.liveFrom, s.liveTo = from, to
	return s.live, s.liveErr
}

func (s *fakeStore) RebuildWeek(ctx context.Context, weekStart time.Time) (int64, error) {
	s.rebuilds.Add(1)
	if s.rebuildGate != nil {
		<-s.rebuildGate
	}
	return 3, nil
}

func (s *fakeStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	s.cleanupUntil = before
	return 7, nil
}

func (s *fakeStore) Stats(ctx context.Context, weekStart time.Time) (Stats, error) {
	return s.stats, nil
}

type staticSettings struct{ snap settings.Snapshot }

func (s staticSettings) Snapshot(context.Context) settings.Snapshot { return s.snap }

// среда, 20 марта 2024
var now = time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC)

func newEngine(store *fakeStore, snap settings.Snapshot) *Engine {
	e := NewEngine(store, staticSettings{snap: snap})
	e.now = func() time.Time { return now }
	return e
}

func TestWeeklyFromCache(t *testing.T) {
	store := &fakeStore{week: []Aggregate{
		{UserID: 2, DisplayName: "bob", Points: 100},
		{UserID: 1, DisplayName: "alice", Points: 100},
		{UserID: 3, DisplayName: "carol", Points: 40},
	}}
	e := newEngine(store, settings.Defaults())

	r, err := e.Rankings(context.Background(), Query{Window: Weekly, RequestingUserID: 2})
	require.NoError(t, err)

	assert.Equal(t, SourceCache, r.Source)
	assert.Equal(t, "2024-03-18", r.PeriodStart)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), store.readWeekStart)
	assert.Equal(t, 3, r.TotalParticipants)
	assert.Zero(t, store.liveCalls)

	require.Len(t, r.Participants, 3)
	assert.Equal(t, "alice", r.Participants[0].DisplayName)
	assert.Equal(t, 1, r.Participants[0].Rank)
	assert.Equal(t, "bob", r.Participants[1].DisplayName)
	assert.Equal(t, 2, r.Participants[1].Rank)
	assert.True(t, r.Participants[1].IsRequestingUser)
	require.NotNil(t, r.RequestingUserRank)
	assert.Equal(t, 2, *r.RequestingUserRank)
}

func TestWeeklyFallsBackToLiveWhenCacheEmpty(t *testing.T) {
	store := &fakeStore{live: []Aggregate{{UserID: 1, DisplayName: "alice", Points: 10}}}
	e := newEngine(store, settings.Defaults())

	r, err := e.Rankings(context.Background(), Query{Window: Weekly})
	require.NoError(t, err)

	assert.Equal(t, SourceLive, r.Source)
	assert.Equal(t, 1, r.TotalParticipants)
	require.NotNil(t, store.liveFrom)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), *store.liveFrom)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), *store.liveTo)
}

func TestWeeklyFallsBackToLiveOnCacheError(t *testing.T) {
	store := &fakeStore{
		weekErr: errors.New("relation does not exist"),
		live:    []Aggregate{{UserID: 1, DisplayName: "alice", Points: 10}},
	}
	e := newEngine(store, settings.Defaults())

	r, err := e.Rankings(context.Background(), Query{Window: Weekly})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, r.Source)
}

func TestLiveErrorIsReturned(t *testing.T) {
	store := &fakeStore{liveErr: errors.New("db down")}
	e := newEngine(store, settings.Defaults())

	_, err := e.Rankings(context.Background(), Query{Window: Monthly})
	assert.Error(t, err)
}

func TestMonthlyAndAllTimeAreLive(t *testing.T) {
	store := &fakeStore{
		week: []Aggregate{{UserID: 9, DisplayName: "cached", Points: 1}},
		live: []Aggregate{{UserID: 1, DisplayName: "alice", Points: 10}},
	}
	e := newEngine(store, settings.Defaults())

	r, err := e.Rankings(context.Background(), Query{Window: Monthly})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, r.Source)
	assert.Equal(t, "2024-03-01", r.PeriodStart)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *store.liveTo)

	r, err = e.Rankings(context.Background(), Query{Window: AllTime})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, r.Source)
	assert.Empty(t, r.PeriodStart)
	assert.Nil(t, store.liveFrom)
	assert.Nil(t, store.liveTo)
}

func TestRequestingUserRankOutsidePage(t *testing.T) {
	var rows []Aggregate
	for i := int64(1); i <= 30; i++ {
		rows = append(rows, Aggregate{UserID: i, DisplayName: "u", Points: 100 - i})
	}
	e := newEngine(&fakeStore{live: rows}, settings.Defaults())

	r, err := e.Rankings(context.Background(), Query{Window: AllTime, Limit: 10, RequestingUserID: 25})
	require.NoError(t, err)

	assert.Len(t, r.Participants, 10)
	assert.Equal(t, 30, r.TotalParticipants)
	require.NotNil(t, r.RequestingUserRank)
	assert.Equal(t, 25, *r.RequestingUserRank)
	for _, p := range r.Participants {
		assert.False(t, p.IsRequestingUser)
	}
}

func TestMaxEntriesClampsLimit(t *testing.T) {
	var rows []Aggregate
	for i := int64(1); i <= 30; i++ {
		rows = append(rows, Aggregate{UserID: i, Points: i})
	}
	snap := settings.Defaults()
	snap.LeaderboardMaxEntries = 5
	e := newEngine(&fakeStore{live: rows}, snap)

	r, err := e.Rankings(context.Background(), Query{Window: AllTime, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, r.Participants, 5)
}

func TestAnonymousModeKeepsOrder(t *testing.T) {
	snap := settings.Defaults()
	snap.LeaderboardAnonymousMode = true
	store := &fakeStore{live: []Aggregate{
		{UserID: 2, DisplayName: "bob", Points: 100, AvatarURL: "b.png"},
		{UserID: 1, DisplayName: "alice", Points: 100, AvatarURL: "a.png"},
	}}
	e := newEngine(store, snap)

	r, err := e.Rankings(context.Background(), Query{Window: AllTime})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Participants[0].UserID)
	assert.Equal(t, "Player 1", r.Participants[0].DisplayName)
	assert.Empty(t, r.Participants[0].AvatarURL)
}

func TestLeaderboardDisabled(t *testing.T) {
	snap := settings.Defaults()
	snap.LeaderboardPublicEnabled = false
	e := newEngine(&fakeStore{}, snap)

	_, err := e.Rankings(context.Background(), Query{Window: Weekly})
	assert.ErrorIs(t, err, common.ErrLeaderboardDisabled)
}

func TestInvalidWindow(t *testing.T) {
	e := newEngine(&fakeStore{}, settings.Defaults())
	_, err := e.Rankings(context.Background(), Query{Window: "daily"})
	assert.ErrorIs(t, err, common.ErrInvalidWindow)
}

func TestUserRanking(t *testing.T) {
	store := &fakeStore{
		week: []Aggregate{
			{UserID: 1, DisplayName: "alice", Points: 50},
			{UserID: 2, DisplayName: "bob", Points: 70},
		},
		live: []Aggregate{{UserID: 2, DisplayName: "bob", Points: 500}},
	}
	e := newEngine(store, settings.Defaults())

	ur, err := e.UserRanking(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, ur.WeeklyRank)
	assert.Equal(t, 2, *ur.WeeklyRank)
	assert.Equal(t, int64(50), ur.WeeklyScore)
	assert.Equal(t, 2, ur.WeeklyEntries)
	assert.Nil(t, ur.MonthlyRank)
	assert.Nil(t, ur.AllTimeRank)
	assert.Equal(t, "2024-03-18", ur.WeekStart)
}

func TestTopWeeklyReadsGivenWeek(t *testing.T) {
	store := &fakeStore{week: []Aggregate{
		{UserID: 1, DisplayName: "alice", Points: 10},
		{UserID: 2, DisplayName: "bob", Points: 30},
		{UserID: 3, DisplayName: "carol", Points: 20},
	}}
	e := newEngine(store, settings.Defaults())

	top, err := e.Top(context.Background(), Weekly, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].DisplayName)
	assert.Equal(t, "carol", top[1].DisplayName)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), store.readWeekStart)
}

func TestRebuildCoalescesConcurrentCalls(t *testing.T) {
	store := &fakeStore{rebuildGate: make(chan struct{})}
	e := newEngine(store, settings.Defaults())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := e.Rebuild(context.Background(), now)
			assert.NoError(t, err)
			assert.Equal(t, int64(3), n)
		}()
	}

	// Даём горутинам встать в очередь singleflight, затем отпускаем пересборку
	time.Sleep(50 * time.Millisecond)
	close(store.rebuildGate)
	wg.Wait()

	assert.LessOrEqual(t, store.rebuilds.Load(), int32(5))
	assert.GreaterOrEqual(t, store.rebuilds.Load(), int32(1))
}

func TestCleanupRetention(t *testing.T) {
	store := &fakeStore{}
	e := newEngine(store, settings.Defaults())

	n, err := e.Cleanup(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), store.cleanupUntil)

	_, err = e.Cleanup(context.Background(), 0)
	assert.Error(t, err)
}
