package game

import (
	"time"

	"go.uber.org/zap"

	"rpswar/models"
)

// SharedState はセッション全体で共有される状態。マッチが所有しセッションと同じ寿命を持つ
type SharedState struct {
	AdvantageFlipped bool
	reversers        int // 効果中のReverserの数。0になったら反転を戻す
}

type powerupState struct {
	cooldown time.Duration
	tick     *Task
}

// Economy は片側のコインとパワーアップの状態
type Economy struct {
	Side          models.Side
	coins         int
	flooderActive bool
	flooderExpiry *Task
	reverseExpiry *Task
	powerups      map[models.PowerupKind]*powerupState
	match         *Match
}

func newEconomy(m *Match, side models.Side) *Economy {
	return &Economy{
		Side:  side,
		coins: m.rules.StartingCoins,
		powerups: map[models.PowerupKind]*powerupState{
			models.Reverser: {},
			models.Flooder:  {},
		},
		match: m,
	}
}

func (e *Economy) Coins() int {
	return e.coins
}

func (e *Economy) FlooderActive() bool {
	return e.flooderActive
}

// PowerupCooldown はパワーアップが再使用できるまでの残り時間
func (e *Economy) PowerupCooldown(kind models.PowerupKind) time.Duration {
	if p, ok := e.powerups[kind]; ok {
		return p.cooldown
	}
	return 0
}

func (e *Economy) addCoins(n int) {
	e.coins += n
	if e.coins < 0 {
		e.coins = 0
	}
	e.match.emit(Event{Kind: EventCoinsChanged, Side: e.Side, Coins: e.coins})
}

// canUse はコストと再使用待ちの両方を満たしているか
func (e *Economy) canUse(kind models.PowerupKind, cost int) bool {
	return e.coins >= cost && e.powerups[kind].cooldown == 0
}

func (e *Economy) useReverser() bool {
	r := e.match.rules
	if !e.canUse(models.Reverser, r.ReverserCost) {
		e.match.logger.Debug("Reverser rejected", zap.String("side", string(e.Side)), zap.Int("coins", e.coins))
		return false
	}
	e.addCoins(-r.ReverserCost)

	// 相性表を反転。両サイドが重ねて使った場合は全ての発動が切れるまで反転したまま
	shared := e.match.shared
	if e.reverseExpiry != nil {
		e.reverseExpiry.Cancel()
	} else {
		shared.reversers++
	}
	if !shared.AdvantageFlipped {
		shared.AdvantageFlipped = true
		e.match.emit(Event{Kind: EventAdvantageFlipped, Side: e.Side, Flipped: true})
	}
	e.match.emit(Event{Kind: EventPowerupActivated, Side: e.Side, Powerup: models.Reverser})
	e.reverseExpiry = e.match.sched.After(r.ReverserDuration, func() {
		e.reverseExpiry = nil
		shared.reversers--
		e.match.emit(Event{Kind: EventPowerupExpired, Side: e.Side, Powerup: models.Reverser})
		if shared.reversers == 0 {
			shared.AdvantageFlipped = false
			e.match.emit(Event{Kind: EventAdvantageFlipped, Side: e.Side, Flipped: false})
		}
	})

	e.startCooldown(models.Reverser, r.ReverserCooldown)
	return true
}

func (e *Economy) useFlooder() bool {
	r := e.match.rules
	if !e.canUse(models.Flooder, r.FlooderCost) {
		e.match.logger.Debug("Flooder rejected", zap.String("side", string(e.Side)), zap.Int("coins", e.coins))
		return false
	}
	e.addCoins(-r.FlooderCost)

	e.flooderActive = true
	e.match.restartProduction(e.Side)
	e.match.emit(Event{Kind: EventPowerupActivated, Side: e.Side, Powerup: models.Flooder})
	e.flooderExpiry.Cancel()
	e.flooderExpiry = e.match.sched.After(r.FlooderDuration, func() {
		e.flooderActive = false
		e.flooderExpiry = nil
		e.match.restartProduction(e.Side)
		e.match.emit(Event{Kind: EventPowerupExpired, Side: e.Side, Powerup: models.Flooder})
	})

	e.startCooldown(models.Flooder, r.FlooderCooldown)
	return true
}

// startCooldown は1秒ごとに残り時間を減らし、その都度通知する
func (e *Economy) startCooldown(kind models.PowerupKind, total time.Duration) {
	p := e.powerups[kind]
	p.cooldown = total
	p.tick.Cancel()
	e.match.emit(Event{Kind: EventPowerupCooldown, Side: e.Side, Powerup: kind, Remaining: p.cooldown})

	step := e.match.rules.PowerupTick
	p.tick = e.match.sched.Every(step, func() {
		p.cooldown -= step
		if p.cooldown <= 0 {
			p.cooldown = 0
			p.tick.Cancel()
			p.tick = nil
		}
		e.match.emit(Event{Kind: EventPowerupCooldown, Side: e.Side, Powerup: kind, Remaining: p.cooldown})
	})
}

func (e *Economy) stop() {
	e.flooderExpiry.Cancel()
	e.reverseExpiry.Cancel()
	for _, p := range e.powerups {
		p.tick.Cancel()
	}
}
