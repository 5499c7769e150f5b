package game

import (
	"math"

	"rpswar/models"
)

// 相性表: キーの種類が値の種類に勝つ
var (
	advantage = map[models.UnitKind]models.UnitKind{
		models.Rock:     models.Scissors,
		models.Scissors: models.Paper,
		models.Paper:    models.Rock,
	}
	flippedAdvantage = map[models.UnitKind]models.UnitKind{
		models.Rock:     models.Paper,
		models.Paper:    models.Scissors,
		models.Scissors: models.Rock,
	}
)

// Beats は現在の相性表でattackerがdefenderに勝つかどうか
func Beats(attacker, defender models.UnitKind, flipped bool) bool {
	table := advantage
	if flipped {
		table = flippedAdvantage
	}
	return table[attacker] == defender
}

// Damage は attacker が defender に与えるダメージ
func (r Rules) Damage(attacker, defender models.UnitKind, flipped bool) int {
	if Beats(attacker, defender, flipped) {
		return r.AdvantageDamage
	}
	return r.NormalDamage
}

// overlaps は中心aとbの正方形（一辺sa, sb）が重なっているか
func overlaps(a Vec2, sa float64, b Vec2, sb float64) bool {
	half := (sa + sb) / 2
	return math.Abs(a.X-b.X) < half && math.Abs(a.Y-b.Y) < half
}

// resolveContacts は接触しているユニット同士とユニットと城を処理する。
// 1ステップで同じ組が二度処理されることはない。
func (m *Match) resolveContacts() {
	size := m.rules.UnitSize
	for _, a := range m.units {
		if !a.alive || a.Side != models.SideLeft {
			continue
		}
		for _, b := range m.units {
			if !a.alive {
				break
			}
			if !b.alive || b.Side != models.SideRight {
				continue
			}
			if overlaps(a.Pos, size, b.Pos, size) {
				m.fight(a, b)
			}
		}
	}

	for _, u := range m.units {
		if !u.alive || m.over {
			continue
		}
		enemy := u.Side.Opposite()
		castle := m.castles[enemy.Index()]
		if overlaps(u.Pos, size, castle.Pos, m.rules.CastleSize) {
			m.baseReached(u, castle)
		}
	}
	m.sweepDead()
}

// fight は2体のユニットを同時にダメージ処理する。先攻後攻は無い
func (m *Match) fight(a, b *Unit) {
	flipped := m.shared.AdvantageFlipped
	damageToB := m.rules.Damage(a.Kind, b.Kind, flipped)
	damageToA := m.rules.Damage(b.Kind, a.Kind, flipped)
	aDead := a.takeDamage(damageToA)
	bDead := b.takeDamage(damageToB)

	if aDead {
		m.destroyUnit(a, b.Side)
	}
	if bDead {
		m.destroyUnit(b, a.Side)
	}

	// 連続ヒットを避けるため少し引き離す
	angle := math.Atan2(b.Pos.Y-a.Pos.Y, b.Pos.X-a.Pos.X)
	push := Vec2{math.Cos(angle), math.Sin(angle)}.Scale(m.rules.NudgeDistance)
	a.Pos = a.Pos.Sub(push)
	b.Pos = b.Pos.Add(push)
}

// destroyUnit はユニットを一度だけ破壊し、倒した側にコインを1枚与える
func (m *Match) destroyUnit(u *Unit, killedBy models.Side) {
	if !u.alive {
		return
	}
	u.alive = false
	m.emit(Event{Kind: EventUnitDestroyed, Side: u.Side, Unit: u.ID, UnitKind: u.Kind, KilledBy: killedBy})
	m.AddCoins(killedBy, 1)
}

// baseReached は敵城に到達したユニットの側を勝者としてマッチを終える
func (m *Match) baseReached(u *Unit, castle Castle) {
	if u.Side == castle.Side {
		return
	}
	m.finish(castle.Side.Opposite())
}
