package game

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpswar/models"
)

func TestUnitPastEnemyLineSeeksEnemyBase(t *testing.T) {
	m, _ := newTestMatch(t)
	u := m.spawnUnit(models.SideLeft, models.Rock, Vec2{X: 1100, Y: 360})
	// 自陣に近い敵がいても突撃を優先する
	m.spawnUnit(models.SideRight, models.Paper, Vec2{X: 600, Y: 360})

	u.steer(m)

	assert.Equal(t, SeekEnemyBase, u.Mode)
	assert.InDelta(t, 100, u.Vel.X, 1e-9)
	assert.InDelta(t, 0, u.Vel.Y, 1e-9)
	assert.False(t, u.FlipX)
}

func TestUnitInterceptsEnemyClosestToOwnCastle(t *testing.T) {
	m, _ := newTestMatch(t)
	u := m.spawnUnit(models.SideLeft, models.Rock, Vec2{X: 700, Y: 360})
	// ユニット自身に近い敵ではなく、自城に近い敵を狙う
	m.spawnUnit(models.SideRight, models.Paper, Vec2{X: 690, Y: 100})
	far := m.spawnUnit(models.SideRight, models.Paper, Vec2{X: 400, Y: 600})

	u.steer(m)

	assert.Equal(t, SeekAllies, u.Mode)
	dir := far.Pos.Sub(u.Pos)
	want := dir.Scale(100 / dir.Len())
	assert.InDelta(t, want.X, u.Vel.X, 1e-9)
	assert.InDelta(t, want.Y, u.Vel.Y, 1e-9)
	assert.True(t, u.FlipX, "moving left mirrors a left-side unit")
	assert.InDelta(t, 100, u.Vel.Len(), 1e-9)
}

func TestUnitIgnoresEnemiesPastOwnLine(t *testing.T) {
	m, _ := newTestMatch(t)
	u := m.spawnUnit(models.SideRight, models.Scissors, Vec2{X: 900, Y: 360})
	// 右側の兵舎列（x=1030）を越えた敵は迎撃対象外
	m.spawnUnit(models.SideLeft, models.Rock, Vec2{X: 1050, Y: 360})

	u.steer(m)

	assert.Equal(t, SeekEnemyBase, u.Mode)
	assert.Less(t, u.Vel.X, 0.0)
	assert.False(t, u.FlipX, "right-side unit moving left keeps default facing")
}

func TestUnitWithoutEnemiesHeadsForCastle(t *testing.T) {
	m, _ := newTestMatch(t)
	u := m.spawnUnit(models.SideRight, models.Paper, Vec2{X: 980, Y: 160})

	u.steer(m)

	castle := m.Castle(models.SideLeft).Pos
	dir := castle.Sub(u.Pos)
	assert.Equal(t, SeekEnemyBase, u.Mode)
	assert.InDelta(t, dir.X/dir.Len()*100, u.Vel.X, 1e-9)
	assert.InDelta(t, dir.Y/dir.Len()*100, u.Vel.Y, 1e-9)
}

func TestUnitOnTargetStopsWithoutNaN(t *testing.T) {
	m, _ := newTestMatch(t)
	u := m.spawnUnit(models.SideLeft, models.Rock, Vec2{X: 300, Y: 360})
	u.moveTowards(u.Pos, 100)
	assert.False(t, math.IsNaN(u.Vel.X))
	assert.Equal(t, Vec2{}, u.Vel)
}

func TestMoveClampsToField(t *testing.T) {
	r := DefaultRules()
	u := newUnit(1, models.SideLeft, models.Rock, Vec2{X: 1270, Y: 5}, r)
	u.Vel = Vec2{X: 1000, Y: -1000}
	u.move(1, r)
	assert.InDelta(t, r.FieldWidth-r.UnitSize/2, u.Pos.X, 1e-9)
	assert.InDelta(t, r.UnitSize/2, u.Pos.Y, 1e-9)
}

func TestUndefendedRushWinsMatch(t *testing.T) {
	m, events := newTestMatch(t)
	require.True(t, m.ToggleBarrack(leftPaper))

	for i := 0; i < 60*20; i++ {
		m.Step(time.Second / 60)
		if over, _ := m.Over(); over {
			break
		}
	}

	over, winner := m.Over()
	require.True(t, over)
	assert.Equal(t, models.SideLeft, winner)
	assert.Equal(t, 1, countEvents(*events, EventGameOver))

	// 終了後のStepでは何も起きない
	spawned := countEvents(*events, EventUnitSpawned)
	m.Step(10 * time.Second)
	assert.Equal(t, spawned, countEvents(*events, EventUnitSpawned))
}
