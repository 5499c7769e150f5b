package game

import (
	"time"

	"rpswar/models"
)

// Rules はマッチのゲームバランスとフィールド寸法
type Rules struct {
	FieldWidth  float64
	FieldHeight float64

	UnitHP          int
	NormalDamage    int
	AdvantageDamage int
	UnitSpeed       float64 // px/s
	UnitSize        float64 // 当たり判定の一辺
	NudgeDistance   float64 // 戦闘後に押し離す距離

	CastleOffset float64 // フィールド端から城の中心まで
	CastleSize   float64
	BarrackLine  float64 // フィールド端から兵舎列まで
	BarrackGap   float64 // 兵舎同士の縦の間隔
	SpawnOffset  float64

	StartingCoins int

	MaxActiveBarracks   int
	BarrackCooldown     time.Duration
	BarrackCooldownTick time.Duration
	SpawnInterval       time.Duration
	FloodedInterval     time.Duration

	ReverserCost     int
	ReverserDuration time.Duration
	ReverserCooldown time.Duration
	FlooderCost      int
	FlooderDuration  time.Duration
	FlooderCooldown  time.Duration
	PowerupTick      time.Duration
}

// DefaultRules はオリジナルのゲームと同じ定数
func DefaultRules() Rules {
	return Rules{
		FieldWidth:  1280,
		FieldHeight: 720,

		UnitHP:          2,
		NormalDamage:    1,
		AdvantageDamage: 2,
		UnitSpeed:       100,
		UnitSize:        64 * 0.5 * 0.7,
		NudgeDistance:   10,

		CastleOffset: 100,
		CastleSize:   128 * 0.8,
		BarrackLine:  250,
		BarrackGap:   200,
		SpawnOffset:  50,

		StartingCoins: 15,

		MaxActiveBarracks:   2,
		BarrackCooldown:     3000 * time.Millisecond,
		BarrackCooldownTick: 100 * time.Millisecond,
		SpawnInterval:       1000 * time.Millisecond,
		FloodedInterval:     500 * time.Millisecond,

		ReverserCost:     10,
		ReverserDuration: 5000 * time.Millisecond,
		ReverserCooldown: 20000 * time.Millisecond,
		FlooderCost:      15,
		FlooderDuration:  5000 * time.Millisecond,
		FlooderCooldown:  10000 * time.Millisecond,
		PowerupTick:      1000 * time.Millisecond,
	}
}

// castleX はサイドの城のx座標
func (r Rules) castleX(side models.Side) float64 {
	if side == models.SideLeft {
		return r.CastleOffset
	}
	return r.FieldWidth - r.CastleOffset
}

// barrackLineX はサイドの兵舎列（防衛線）のx座標
func (r Rules) barrackLineX(side models.Side) float64 {
	if side == models.SideLeft {
		return r.BarrackLine
	}
	return r.FieldWidth - r.BarrackLine
}

// barrackY は種類ごとの兵舎のy座標。上からrock, paper, scissors
func (r Rules) barrackY(kind models.UnitKind) float64 {
	mid := r.FieldHeight / 2
	switch kind {
	case models.Rock:
		return mid - r.BarrackGap
	case models.Scissors:
		return mid + r.BarrackGap
	default:
		return mid
	}
}

// crossed は自軍側から見てxが敵側の線lineを越えたかどうか
func crossed(side models.Side, x, line float64) bool {
	if side == models.SideLeft {
		return x > line
	}
	return x < line
}
