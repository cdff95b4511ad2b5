package settings

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValuesEmptyGivesDefaults(t *testing.T) {
	assert.Equal(t, Defaults(), FromValues(nil))
}

func TestFromValuesParsesTypes(t *testing.T) {
	snap := FromValues(map[string]string{
		KeyPureScoringMode:                     "yes",
		KeyTierMultiplierPrefix + TierGold:     "1.75",
		KeyCreditTierMultiplierPrefix + "gold": " 1.15 ",
		KeyDailyPointsLimit:                    "750",
		KeySeasonalEventName:                   "Зимний марафон",
		KeyLeaderboardMaxEntries:               "25",
	})

	assert.True(t, snap.PureScoringMode)
	assert.Equal(t, 1.75, snap.TierMultipliers.For(TierGold))
	assert.Equal(t, 1.15, snap.CreditTierMultipliers.For(TierGold))
	assert.Equal(t, int64(750), snap.DailyPointsLimit)
	assert.Equal(t, "Зимний марафон", snap.SeasonalEventName)
	assert.Equal(t, 25, snap.LeaderboardMaxEntries)
	// Не заданные ключи остаются по умолчанию
	assert.Equal(t, 1.2, snap.TierMultipliers.For(TierSilver))
}

func TestFromValuesMalformedFallsBack(t *testing.T) {
	snap := FromValues(map[string]string{
		KeyWeekendBonusEnabled:      "maybe",
		KeyStreakBonusMultiplier:    "abc",
		KeyDailyCreditCap:           "1e3",
		KeyQuickCompletionThreshold: "",
	})
	d := Defaults()
	assert.Equal(t, d.WeekendBonusEnabled, snap.WeekendBonusEnabled)
	assert.Equal(t, d.StreakBonusMultiplier, snap.StreakBonusMultiplier)
	assert.Equal(t, d.DailyCreditCap, snap.DailyCreditCap)
	assert.Equal(t, d.QuickCompletionThreshold, snap.QuickCompletionThreshold)
}

func TestTierTableUnknownTier(t *testing.T) {
	assert.Equal(t, 1.0, Defaults().TierMultipliers.For("diamond"))
}

func TestDefaultSeedMatchesDefaults(t *testing.T) {
	entries, err := DefaultSeed()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	assert.Equal(t, Defaults(), FromValues(Values(entries)))
}

func TestParseSeedRejectsDuplicates(t *testing.T) {
	_, err := ParseSeed([]byte("- key: a\n  value: \"1\"\n- key: a\n  value: \"2\"\n"))
	assert.Error(t, err)

	_, err = ParseSeed([]byte("- value: \"1\"\n"))
	assert.Error(t, err)
}

func TestStoreLoadAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow(KeyDailyPointsLimit, "300").
		AddRow(KeySeasonalEventName, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value FROM system_settings")).
		WillReturnRows(rows)

	values, err := NewStore(db).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "300", values[KeyDailyPointsLimit])
	assert.Equal(t, "", values[KeySeasonalEventName])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSeedMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entries := []SeedEntry{
		{Key: KeyDailyPointsLimit, Value: "500", Category: "limits", Description: "d"},
		{Key: KeyDailyCreditCap, Value: "200", Category: "limits", Description: "c"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_settings")).
		WithArgs(KeyDailyPointsLimit, "500", "limits", "d").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Второй ключ уже есть — ON CONFLICT DO NOTHING
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_settings")).
		WithArgs(KeyDailyCreditCap, "200", "limits", "c").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := NewStore(db).SeedMissing(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSeedMissingRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_settings")).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err = NewStore(db).SeedMissing(context.Background(), []SeedEntry{{Key: "k", Value: "v"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeLoader struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeLoader) LoadAll(ctx context.Context) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func TestProviderCachesUntilTTL(t *testing.T) {
	loader := &fakeLoader{values: map[string]string{KeyDailyPointsLimit: "100"}}
	p := NewProvider(loader, time.Minute)
	now := time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	assert.Equal(t, int64(100), p.Snapshot(ctx).DailyPointsLimit)

	loader.values = map[string]string{KeyDailyPointsLimit: "200"}
	assert.Equal(t, int64(100), p.Snapshot(ctx).DailyPointsLimit, "снимок ещё свежий")
	assert.Equal(t, 1, loader.calls)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, int64(200), p.Snapshot(ctx).DailyPointsLimit)
	assert.Equal(t, 2, loader.calls)
}

func TestProviderInvalidate(t *testing.T) {
	loader := &fakeLoader{values: map[string]string{KeyPureScoringMode: "false"}}
	p := NewProvider(loader, time.Hour)
	ctx := context.Background()

	assert.False(t, p.Snapshot(ctx).PureScoringMode)

	loader.values = map[string]string{KeyPureScoringMode: "true"}
	p.Invalidate()
	assert.True(t, p.Snapshot(ctx).PureScoringMode)
}

func TestProviderFallsBackToDefaults(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db down")}
	p := NewProvider(loader, time.Minute)

	snap := p.Snapshot(context.Background())
	snap.LoadedAt = time.Time{}
	assert.Equal(t, Defaults(), snap)

	assert.Error(t, p.Reload(context.Background()))
}

func TestProviderKeepsLastSnapshotOnError(t *testing.T) {
	loader := &fakeLoader{values: map[string]string{KeyDailyPointsLimit: "42"}}
	p := NewProvider(loader, time.Minute)
	ctx := context.Background()

	assert.Equal(t, int64(42), p.Snapshot(ctx).DailyPointsLimit)

	loader.err = errors.New("db down")
	p.Invalidate()
	assert.Equal(t, int64(42), p.Snapshot(ctx).DailyPointsLimit)
}
