package game

import (
	"math"

	"rpswar/models"
)

// UnitID はマッチ内で一意なユニット番号。生成順に増える
type UnitID uint64

// TargetMode はユニットの追跡モード
type TargetMode int

const (
	SeekAllies TargetMode = iota
	SeekEnemyBase
)

func (m TargetMode) String() string {
	if m == SeekEnemyBase {
		return "seekEnemyBase"
	}
	return "seekAllies"
}

type Vec2 struct {
	X, Y float64
}

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec2) Distance(o Vec2) float64 { return v.Sub(o).Len() }

// Unit は移動して戦う戦闘ユニット
type Unit struct {
	ID    UnitID
	Side  models.Side
	Kind  models.UnitKind
	HP    int
	Pos   Vec2
	Vel   Vec2
	Mode  TargetMode
	FlipX bool // 描画の向き。進行方向に合わせて反転
	alive bool
}

func newUnit(id UnitID, side models.Side, kind models.UnitKind, pos Vec2, rules Rules) *Unit {
	dir := 1.0
	if side == models.SideRight {
		dir = -1
	}
	return &Unit{
		ID:    id,
		Side:  side,
		Kind:  kind,
		HP:    rules.UnitHP,
		Pos:   pos,
		Vel:   Vec2{X: rules.UnitSpeed * dir},
		FlipX: side == models.SideRight,
		alive: true,
	}
}

func (u *Unit) Alive() bool {
	return u.alive
}

// takeDamage はHPを減らし、0以下になったらtrueを返す
func (u *Unit) takeDamage(amount int) bool {
	u.HP -= amount
	return u.HP <= 0
}

// steer は毎tick呼ばれ、目標を選び直して速度と向きを更新する。
// 敵の兵舎列を越えたら敵城へ一直線、越えていなければ自陣に近い敵を迎撃する。
func (u *Unit) steer(m *Match) {
	enemy := u.Side.Opposite()
	if crossed(u.Side, u.Pos.X, m.rules.barrackLineX(enemy)) {
		u.Mode = SeekEnemyBase
		u.moveTowards(m.castles[enemy.Index()].Pos, m.rules.UnitSpeed)
		return
	}

	u.Mode = SeekAllies
	if target := u.nearestIntruder(m); target != nil {
		u.moveTowards(target.Pos, m.rules.UnitSpeed)
		return
	}
	// 迎撃対象がいなければ敵城を目指す
	u.Mode = SeekEnemyBase
	u.moveTowards(m.castles[enemy.Index()].Pos, m.rules.UnitSpeed)
}

// nearestIntruder は自軍の兵舎列をまだ越えていない敵ユニットのうち、自城に最も近いものを返す
func (u *Unit) nearestIntruder(m *Match) *Unit {
	ownLine := m.rules.barrackLineX(u.Side)
	ownCastle := m.castles[u.Side.Index()].Pos
	var nearest *Unit
	nearestDist := math.Inf(1)
	for _, e := range m.units {
		if !e.alive || e.Side == u.Side {
			continue
		}
		if crossed(e.Side, e.Pos.X, ownLine) {
			continue
		}
		d := e.Pos.Distance(ownCastle)
		if d < nearestDist {
			nearestDist = d
			nearest = e
		}
	}
	return nearest
}

func (u *Unit) moveTowards(target Vec2, speed float64) {
	dir := target.Sub(u.Pos)
	length := dir.Len()
	if length == 0 {
		u.Vel = Vec2{}
		return
	}
	n := dir.Scale(1 / length)
	u.Vel = n.Scale(speed)
	if u.Side == models.SideLeft {
		u.FlipX = n.X < 0
	} else {
		u.FlipX = n.X > 0
	}
}

// move は速度に従って位置を進め、フィールド内に収める
func (u *Unit) move(seconds float64, rules Rules) {
	u.Pos = u.Pos.Add(u.Vel.Scale(seconds))
	u.Pos = rules.clamp(u.Pos, rules.UnitSize/2)
}

func (r Rules) clamp(p Vec2, half float64) Vec2 {
	p.X = math.Max(half, math.Min(r.FieldWidth-half, p.X))
	p.Y = math.Max(half, math.Min(r.FieldHeight-half, p.Y))
	return p
}
