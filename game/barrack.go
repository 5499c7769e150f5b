package game

import (
	"time"

	"go.uber.org/zap"

	"rpswar/models"
)

// Barrack は1種類のユニットを生産する兵舎
type Barrack struct {
	ID       models.BarrackID
	Side     models.Side
	Kind     models.UnitKind
	Pos      Vec2
	active   bool
	cooldown time.Duration

	spawnTask    *Task
	cooldownTask *Task
	match        *Match
}

func newBarrack(m *Match, side models.Side, kind models.UnitKind) *Barrack {
	return &Barrack{
		ID:    models.NewBarrackID(side, kind),
		Side:  side,
		Kind:  kind,
		Pos:   Vec2{X: m.rules.barrackLineX(side), Y: m.rules.barrackY(kind)},
		match: m,
	}
}

func (b *Barrack) Active() bool {
	return b.active
}

// Cooldown は切り替え可能になるまでの残り時間
func (b *Barrack) Cooldown() time.Duration {
	return b.cooldown
}

// SpawnInterval は現在の生産間隔。Flooder発動中は短くなる
func (b *Barrack) SpawnInterval() time.Duration {
	if b.match.economies[b.Side.Index()].flooderActive {
		return b.match.rules.FloodedInterval
	}
	return b.match.rules.SpawnInterval
}

// toggle は稼働状態を切り替える。クールダウン中や稼働上限に達している場合は何もせずfalse
func (b *Barrack) toggle() bool {
	m := b.match
	if b.cooldown > 0 {
		m.logger.Debug("Barrack toggle rejected: cooldown", zap.String("barrack", string(b.ID)), zap.Duration("remaining", b.cooldown))
		return false
	}

	if b.active {
		b.active = false
		b.spawnTask.Cancel()
		b.spawnTask = nil
	} else {
		if m.ActiveBarracks(b.Side) >= m.rules.MaxActiveBarracks {
			m.logger.Debug("Barrack toggle rejected: capacity", zap.String("barrack", string(b.ID)))
			return false
		}
		b.active = true
		b.startProduction()
	}

	b.startCooldown()
	m.emit(Event{Kind: EventBarrackChanged, Side: b.Side, Barrack: b.ID, Active: b.active, Remaining: b.cooldown})
	return true
}

func (b *Barrack) startProduction() {
	b.spawnTask.Cancel()
	b.spawnTask = b.match.sched.Every(b.SpawnInterval(), b.produceUnit)
}

// restartProduction は生産間隔が変わった時に稼働中の兵舎のタイマーを張り直す
func (b *Barrack) restartProduction() {
	if !b.active || b.spawnTask == nil {
		return
	}
	b.startProduction()
}

func (b *Barrack) startCooldown() {
	b.cooldown = b.match.rules.BarrackCooldown
	b.cooldownTask.Cancel()
	tick := b.match.rules.BarrackCooldownTick
	b.cooldownTask = b.match.sched.Every(tick, func() {
		b.cooldown -= tick
		if b.cooldown > 0 {
			return
		}
		b.cooldown = 0
		b.cooldownTask.Cancel()
		b.cooldownTask = nil
		b.match.emit(Event{Kind: EventBarrackChanged, Side: b.Side, Barrack: b.ID, Active: b.active})
	})
}

func (b *Barrack) produceUnit() {
	// 停止後に残ったタイマーは何もしない
	if !b.active || b.match.done() {
		return
	}
	offset := b.match.rules.SpawnOffset
	if b.Side == models.SideRight {
		offset = -offset
	}
	b.match.spawnUnit(b.Side, b.Kind, Vec2{X: b.Pos.X + offset, Y: b.Pos.Y})
}

// stop は全てのタイマーを止める
func (b *Barrack) stop() {
	b.spawnTask.Cancel()
	b.cooldownTask.Cancel()
	b.spawnTask = nil
	b.cooldownTask = nil
}
