package builtin

import (
	"math"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

const (
	wanderRadius   = 10.0
	wanderInterval = 3.0
	wanderArrive   = 1.0

	sneezeChance = 0.3
	coughChance  = 0.2

	hungerThreshold  = 50.0
	searchStep       = 2.0
	searchDirections = 4
	searchAngleStep  = math.Pi / 2
)

type wanderState struct {
	x, z     float64
	timeLeft float64
}

type searchState struct {
	cx, cz    float64
	step      int
	baseAngle float64
}

func (b *Brain) wanderTarget(p *protocol.Perception) (float64, float64) {
	st, ok := b.wander[p.MyID]
	if !ok {
		st = &wanderState{timeLeft: wanderInterval}
		st.x, st.z = b.randomAround(p.MyX, p.MyZ)
		b.wander[p.MyID] = st
	}
	st.timeLeft -= b.interval
	if st.timeLeft <= 0 || math.Hypot(st.x-p.MyX, st.z-p.MyZ) < wanderArrive {
		st.x, st.z = b.randomAround(p.MyX, p.MyZ)
		st.timeLeft = wanderInterval
	}
	return st.x, st.z
}

func (b *Brain) randomAround(x, z float64) (float64, float64) {
	return x + b.uniform(-wanderRadius, wanderRadius), z + b.uniform(-wanderRadius, wanderRadius)
}

func (b *Brain) decideWander(p *protocol.Perception) protocol.Decision {
	x, z := b.wanderTarget(p)
	return move(protocol.MoveWalk, x, z)
}

// decideFlu wanders and, while contagious with someone in earshot, sneezes
// or coughs.
func (b *Brain) decideFlu(p *protocol.Perception) protocol.Decision {
	d := b.decideWander(p)
	if p.IsContagious == 1 && p.HeardCount > 0 {
		switch roll := b.rng.Float64(); {
		case roll < sneezeChance:
			d.Action.Type = "sneeze"
		case roll < sneezeChance+coughChance:
			d.Action.Type = "cough"
		}
	}
	return d
}

// decideHunger runs to the nearest visible food when hungry. With nothing
// in sight it looks around in four 90 degree steps, then moves on.
func (b *Brain) decideHunger(p *protocol.Perception) protocol.Decision {
	if p.Hunger >= hungerThreshold {
		delete(b.search, p.MyID)
		return b.decideWander(p)
	}
	delete(b.wander, p.MyID)

	if id, x, z, ok := closestFood(p); ok {
		delete(b.search, p.MyID)
		d := move(protocol.MoveRun, x, z)
		d.Action = protocol.ActionDirective{Type: "eat", TargetID: id}
		return d
	}

	st, ok := b.search[p.MyID]
	if !ok {
		st = &searchState{cx: p.MyX, cz: p.MyZ, baseAngle: b.uniform(0, 2*math.Pi)}
		b.search[p.MyID] = st
	}
	angle := st.baseAngle + float64(st.step)*searchAngleStep
	x := st.cx + math.Cos(angle)*searchStep
	z := st.cz + math.Sin(angle)*searchStep
	st.step++
	if st.step >= searchDirections {
		st.step = 0
		st.cx, st.cz = p.MyX, p.MyZ
		st.baseAngle = b.uniform(0, 2*math.Pi)
	}
	return move(protocol.MoveWalk, x, z)
}

func closestFood(p *protocol.Perception) (string, float64, float64, bool) {
	best := math.Inf(1)
	var id string
	var x, z float64
	for fid, f := range p.VisibleFood {
		d := math.Hypot(f.X-p.MyX, f.Z-p.MyZ)
		if d < best || (d == best && fid < id) {
			best, id, x, z = d, fid, f.X, f.Z
		}
	}
	return id, x, z, id != ""
}
