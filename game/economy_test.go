package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpswar/models"
)

func cooldownTrail(events []Event, side models.Side, kind models.PowerupKind) []time.Duration {
	var out []time.Duration
	for _, ev := range events {
		if ev.Kind == EventPowerupCooldown && ev.Side == side && ev.Powerup == kind {
			out = append(out, ev.Remaining)
		}
	}
	return out
}

func TestReverserLifecycle(t *testing.T) {
	m, events := newTestMatch(t)
	m.AddCoins(models.SideLeft, -5)
	require.Equal(t, 10, m.Economy(models.SideLeft).Coins())

	require.True(t, m.UsePowerup(models.SideLeft, models.Reverser))
	assert.Zero(t, m.Economy(models.SideLeft).Coins())
	assert.True(t, m.AdvantageFlipped())
	assert.Equal(t, 20*time.Second, m.Economy(models.SideLeft).PowerupCooldown(models.Reverser))

	m.Step(4999 * time.Millisecond)
	assert.True(t, m.AdvantageFlipped())
	m.Step(time.Millisecond)
	assert.False(t, m.AdvantageFlipped())

	m.Step(15 * time.Second)
	assert.Zero(t, m.Economy(models.SideLeft).PowerupCooldown(models.Reverser))

	trail := cooldownTrail(*events, models.SideLeft, models.Reverser)
	require.Len(t, trail, 21)
	for i, remaining := range trail {
		assert.Equal(t, time.Duration(20-i)*time.Second, remaining)
	}
}

func TestReverserRejectedWithoutCoinsOrDuringCooldown(t *testing.T) {
	m, events := newTestMatch(t)
	m.AddCoins(models.SideRight, -6)

	assert.False(t, m.UsePowerup(models.SideRight, models.Reverser))
	assert.Equal(t, 9, m.Economy(models.SideRight).Coins())
	assert.False(t, m.AdvantageFlipped())
	assert.Empty(t, cooldownTrail(*events, models.SideRight, models.Reverser))

	m.AddCoins(models.SideRight, 11)
	require.True(t, m.UsePowerup(models.SideRight, models.Reverser))
	assert.False(t, m.UsePowerup(models.SideRight, models.Reverser), "on cooldown")
	assert.Equal(t, 10, m.Economy(models.SideRight).Coins())

	m.Step(20 * time.Second)
	assert.True(t, m.UsePowerup(models.SideRight, models.Reverser))
}

func TestOverlappingReversersKeepTableFlipped(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.UsePowerup(models.SideLeft, models.Reverser))
	m.Step(3 * time.Second)
	require.True(t, m.UsePowerup(models.SideRight, models.Reverser))

	m.Step(2 * time.Second)
	assert.True(t, m.AdvantageFlipped(), "left's expiry must not revert right's activation")
	m.Step(3 * time.Second)
	assert.False(t, m.AdvantageFlipped())
}

func TestOverlappingReversersExpirePerSide(t *testing.T) {
	m, events := newTestMatch(t)
	require.True(t, m.UsePowerup(models.SideLeft, models.Reverser))
	m.Step(3 * time.Second)
	require.True(t, m.UsePowerup(models.SideRight, models.Reverser))
	m.Step(5 * time.Second)

	var expired []models.Side
	var flips []Event
	for _, ev := range *events {
		if ev.Kind == EventPowerupExpired && ev.Powerup == models.Reverser {
			expired = append(expired, ev.Side)
		}
		if ev.Kind == EventAdvantageFlipped {
			flips = append(flips, ev)
		}
	}
	assert.Equal(t, []models.Side{models.SideLeft, models.SideRight}, expired)
	require.Len(t, flips, 2, "flipped once and reverted once")
	assert.True(t, flips[0].Flipped)
	assert.False(t, flips[1].Flipped)
	assert.Equal(t, models.SideRight, flips[1].Side)
}

func TestFlooderAcceleratesActiveBarracks(t *testing.T) {
	m, events := newTestMatch(t)
	require.True(t, m.ToggleBarrack(leftRock))
	require.True(t, m.UsePowerup(models.SideLeft, models.Flooder))
	assert.Zero(t, m.Economy(models.SideLeft).Coins())
	assert.True(t, m.Economy(models.SideLeft).FlooderActive())

	b, _ := m.Barrack(leftRock)
	assert.Equal(t, 500*time.Millisecond, b.SpawnInterval())

	m.sched.Advance(5 * time.Second)
	assert.False(t, m.Economy(models.SideLeft).FlooderActive())
	assert.Equal(t, time.Second, b.SpawnInterval())
	assert.Equal(t, 9, countEvents(*events, EventUnitSpawned))

	m.sched.Advance(time.Second)
	assert.Equal(t, 10, countEvents(*events, EventUnitSpawned))

	trail := cooldownTrail(*events, models.SideLeft, models.Flooder)
	require.Len(t, trail, 7)
	assert.Equal(t, 10*time.Second, trail[0])
	assert.Equal(t, 4*time.Second, trail[len(trail)-1])
}

func TestFlooderDoesNotTouchOtherSide(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.ToggleBarrack(rightScissors))
	require.True(t, m.UsePowerup(models.SideLeft, models.Flooder))

	b, _ := m.Barrack(rightScissors)
	assert.Equal(t, time.Second, b.SpawnInterval())
	assert.False(t, m.Economy(models.SideRight).FlooderActive())
}

func TestFlooderAppliesToBarrackActivatedLater(t *testing.T) {
	m, events := newTestMatch(t)
	require.True(t, m.UsePowerup(models.SideLeft, models.Flooder))
	require.True(t, m.ToggleBarrack(leftPaper))

	m.sched.Advance(time.Second)
	assert.Equal(t, 2, countEvents(*events, EventUnitSpawned))
}

func TestCoinsNeverNegative(t *testing.T) {
	m, _ := newTestMatch(t)
	m.AddCoins(models.SideLeft, -100)
	assert.Zero(t, m.Economy(models.SideLeft).Coins())
}
