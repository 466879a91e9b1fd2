package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbook/internal/model"
)

const sampleMarkets = `
defaults:
  subscribe_ahead_days: 30
  work_hours: "10:00-18:00"
  work_duration_per_client: 30
holidays:
  - date: "2026-12-25"
    name: Christmas
markets:
  - id: barber
    name: Barber shop
    resource_booking_mode: select
    work_duration_per_client: 60
    owner_chat_id: 42
    orders: [ord-1, ord-2]
    members:
      - {id: alice, name: Alice, status: accepted, is_active: true}
      - {id: bob, name: Bob, status: invited, is_active: true}
    pattern:
      subscribe_ahead_days: 14
      days:
        monday: {enabled: true, work_hours: "09:00-17:00", breaks: ["12:00-13:00"]}
        tuesday: {enabled: true, work_hours: "09:00-17:00"}
        sunday: {enabled: false}
    exclusions:
      - {date: "2026-10-19", break: "12:00-13:00"}
    holidays:
      - {date: "2026-11-01", name: Closed}
  - id: gym
    name: Gym
    resource_booking_mode: multi
    concurrent_slots: 5
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "MARKETBOOK_TEST_KEY=from-dotenv\n")
	path := writeFile(t, dir, "config.yaml", `
server:
  api_key: ${MARKETBOOK_TEST_KEY}
database:
  path: `+filepath.Join(dir, "db", "test.db")+`
api:
  cache_ttl_seconds: 5
`)
	t.Cleanup(func() { os.Unsetenv("MARKETBOOK_TEST_KEY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Server.APIKey)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, filepath.Join(dir, "markets.yaml"), cfg.Markets.Path)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.MarketsWatchInterval())
	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Equal(t, 100, cfg.NotifyQueueSize())
	assert.DirExists(t, filepath.Join(dir, "db"))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestMarketsConfigSetups(t *testing.T) {
	cfg, err := ParseMarketsConfig([]byte(sampleMarkets))
	require.NoError(t, err)
	assert.Equal(t, "MarketsConfig: 2 markets (2 members), 1 holidays", cfg.String())

	barber, err := cfg.Setup("barber")
	require.NoError(t, err)
	assert.Equal(t, model.ModeSelect, barber.Market.ResourceBookingMode)
	assert.Equal(t, 60, barber.Market.WorkDurationPerClient)
	assert.Equal(t, int64(42), barber.OwnerChatID)
	assert.Equal(t, []string{"ord-1", "ord-2"}, barber.Orders)
	assert.Equal(t, 14, barber.Pattern.SubscribeAheadDays)
	assert.True(t, barber.Pattern.Days[model.Monday].Enabled)
	assert.Equal(t, []model.Interval{model.MustInterval("12:00", "13:00")}, barber.Pattern.Days[model.Monday].Breaks)
	assert.False(t, barber.Pattern.Days[model.Wednesday].Enabled)
	assert.True(t, barber.Exclusions.Excludes(model.MustDate("2026-10-19"), model.MustInterval("12:00", "13:00")))
	assert.Equal(t, []model.Date{model.MustDate("2026-11-01"), model.MustDate("2026-12-25")}, barber.ClosedDates)
	require.Len(t, barber.Market.Members, 2)

	gym, err := cfg.Setup("gym")
	require.NoError(t, err)
	assert.Equal(t, 30, gym.Pattern.SubscribeAheadDays)
	assert.Equal(t, 30, gym.Market.WorkDurationPerClient)
	require.NotNil(t, gym.Pattern.Days[model.Friday].WorkHours)
	assert.Equal(t, model.MustInterval("10:00", "18:00"), *gym.Pattern.Days[model.Friday].WorkHours)
	assert.False(t, gym.Pattern.Days[model.Saturday].Enabled)

	all, err := cfg.Setups()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = cfg.Setup("missing")
	assert.Error(t, err)

	ok, name := cfg.IsHoliday(model.MustDate("2026-12-25"))
	assert.True(t, ok)
	assert.Equal(t, "Christmas", name)
}

func TestMarketsConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errPart string
	}{
		{"no markets", `markets: []`, "no markets defined"},
		{"missing id", `markets: [{name: A}]`, "id is required"},
		{"duplicate id", `markets: [{id: a, name: A}, {id: a, name: B}]`, "duplicate id"},
		{"missing name", `markets: [{id: a}]`, "name is required"},
		{"bad mode", `markets: [{id: a, name: A, resource_booking_mode: pool}]`, "resource_booking_mode"},
		{"negative slots", `markets: [{id: a, name: A, concurrent_slots: -1}]`, "concurrent_slots"},
		{"bad member status", `markets: [{id: a, name: A, members: [{id: m, status: gone}]}]`, "unknown status"},
		{"shared order", `markets: [{id: a, name: A, orders: [o]}, {id: b, name: B, orders: [o]}]`, "already belongs"},
		{"bad weekday", `markets: [{id: a, name: A, pattern: {days: {funday: {enabled: true}}}}]`, "pattern.days"},
		{"enabled without hours", `markets: [{id: a, name: A, pattern: {days: {monday: {enabled: true}}}}]`, "workHours"},
		{"break outside hours", `markets: [{id: a, name: A, pattern: {days: {monday: {enabled: true, work_hours: "09:00-12:00", breaks: ["11:30-12:30"]}}}}]`, "within working hours"},
		{"overlapping breaks", `markets: [{id: a, name: A, pattern: {days: {monday: {enabled: true, work_hours: "09:00-17:00", breaks: ["12:00-13:00", "12:30-13:30"]}}}}]`, "overlaps"},
		{"bad range", `markets: [{id: a, name: A, pattern: {days: {monday: {enabled: true, work_hours: "9-17"}}}}]`, "invalid range"},
		{"bad exclusion date", `markets: [{id: a, name: A, exclusions: [{date: "19.10.2026", break: "12:00-13:00"}]}]`, "exclusions[0]"},
		{"bad holiday", `holidays: [{date: tomorrow}]` + "\n" + `markets: [{id: a, name: A}]`, "holiday[0]"},
		{"bad defaults", `defaults: {work_hours: "18:00-09:00"}` + "\n" + `markets: [{id: a, name: A}]`, "defaults.work_hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMarketsConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestWatchMarkets(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "markets.yaml", sampleMarkets)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *MarketsConfig, 4)
	err := WatchMarkets(ctx, path, 10*time.Millisecond, zerolog.Nop(), func(c *MarketsConfig) { updates <- c })
	require.NoError(t, err)

	first := <-updates
	assert.Len(t, first.Markets, 2)

	broken := writeFile(t, dir, "markets.yaml", "markets: [")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(broken, future, future))

	fixed := strings.Replace(sampleMarkets, "name: Gym", "name: Fitness", 1)
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "markets.yaml", fixed)
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	select {
	case next := <-updates:
		assert.Equal(t, "Fitness", next.GetMarketByID("gym").Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after change")
	}
}
