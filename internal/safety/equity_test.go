package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProtector(alert AlertFunc) (*Protector, *time.Time) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	p := NewProtector(ProtectorConfig{
		MaxDailyLossPct:      2.0,
		MaxConsecutiveLosses: 3,
		Cooldown:             2 * time.Hour,
	}, alert)
	p.nowFn = func() time.Time { return now }
	p.state.LastResetDay = dayOf(now)
	return p, &now
}

func TestConsecutiveLossesTripCooldown(t *testing.T) {
	var alerts []string
	p, now := testProtector(func(title, _, severity string) {
		alerts = append(alerts, severity+": "+title)
	})

	p.RecordTradeResult(-10, 100000)
	p.RecordTradeResult(-10, 100000)
	assert.True(t, p.CanTrade())

	p.RecordTradeResult(-10, 100000)
	assert.False(t, p.CanTrade())
	require.NotEmpty(t, alerts)
	assert.Contains(t, alerts[len(alerts)-1], "warning")

	// Cooldown expires lazily.
	*now = now.Add(2*time.Hour + time.Minute)
	assert.True(t, p.CanTrade())
}

func TestWinResetsLossStreak(t *testing.T) {
	p, _ := testProtector(nil)

	p.RecordTradeResult(-10, 100000)
	p.RecordTradeResult(-10, 100000)
	p.RecordTradeResult(5, 100000)
	p.RecordTradeResult(-10, 100000)

	assert.True(t, p.CanTrade())
	assert.Equal(t, 1, p.State().ConsecutiveLosses)
}

func TestDailyLossDisablesUntilRollover(t *testing.T) {
	var critical bool
	p, now := testProtector(func(_, _, severity string) {
		if severity == "critical" {
			critical = true
		}
	})

	// 2% of 10k equity in one trade.
	p.RecordTradeResult(-200, 10000)
	assert.False(t, p.CanTrade())
	assert.True(t, critical)

	// Same day: still disabled even hours later.
	*now = now.Add(5 * time.Hour)
	assert.False(t, p.CanTrade())

	// Next day: rollover clears the breaker and the PnL.
	*now = now.Add(24 * time.Hour)
	assert.True(t, p.CanTrade())
	assert.Zero(t, p.State().DailyPnL)
}

func TestForceEnableLiftsBreakers(t *testing.T) {
	p, _ := testProtector(nil)
	p.RecordTradeResult(-10, 100000)
	p.RecordTradeResult(-10, 100000)
	p.RecordTradeResult(-10, 100000)
	require.False(t, p.CanTrade())

	p.ForceEnable()
	assert.True(t, p.CanTrade())
}

func TestRestoreRoundTrip(t *testing.T) {
	p, _ := testProtector(nil)
	p.RecordTradeResult(-50, 10000)

	saved := p.State()
	p2, _ := testProtector(nil)
	p2.Restore(saved)
	assert.Equal(t, saved, p2.State())
}
