package builtin

import (
	"math"
	"sort"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

const (
	flockRunToLeader  = 3.0
	flockRunToGroup   = 5.0
	flockLeaderRun    = 10.0
	flockClusterR     = 4.0
	flockClusterRatio = 0.75
	flockMinGroup     = 3
	flockLeaderArrive = 2.0
	flockRepick       = 20
	flockLeaderRange  = 20.0
)

// flockLeader is a leader's current destination and how many batches it
// has been heading there.
type flockLeader struct {
	x, z    float64
	batches int
}

type ally struct {
	id   string
	x, z float64
	dist float64
}

// decideFlocking groups agents of the same faction. A lone agent leads
// toward a random destination; others follow a visible leader, or gather
// on the centroid of their visible allies until the cluster is tight
// enough to elect one (lowest ID).
func (b *Brain) decideFlocking(p *protocol.Perception) protocol.Decision {
	allies := make(map[string]ally, len(p.VisibleAgents))
	for id, va := range p.VisibleAgents {
		if va.Faction != p.MyFaction || va.State == "dead" {
			continue
		}
		allies[id] = ally{id: id, x: va.X, z: va.Z, dist: math.Hypot(va.X-p.MyX, va.Z-p.MyZ)}
	}
	if len(allies) == 0 {
		delete(b.groups, p.MyID)
		return b.lead(p)
	}

	if leader, ok := b.groups[p.MyID]; ok {
		if a, visible := allies[leader]; visible {
			return followAlly(a, flockRunToLeader)
		}
		delete(b.groups, p.MyID)
	}

	if a, ok := b.nearestLeader(allies); ok {
		b.join(p.MyID, a.id)
		return followAlly(a, flockRunToLeader)
	}

	var cx, cz float64
	nearest := ally{dist: math.Inf(1)}
	for _, a := range allies {
		cx += a.x
		cz += a.z
		if a.dist < nearest.dist || (a.dist == nearest.dist && a.id < nearest.id) {
			nearest = a
		}
	}
	n := float64(len(allies))
	cx, cz = cx/n, cz/n
	toCenter := math.Hypot(cx-p.MyX, cz-p.MyZ)

	clustered := 0
	for _, a := range allies {
		if math.Hypot(a.x-cx, a.z-cz) <= flockClusterR {
			clustered++
		}
	}
	formed := float64(clustered)/n >= flockClusterRatio && len(allies) >= flockMinGroup
	if formed && toCenter <= flockClusterR {
		leader := p.MyID
		for id := range allies {
			if id < leader {
				leader = id
			}
		}
		if leader == p.MyID {
			return b.lead(p)
		}
		b.join(p.MyID, leader)
		return followAlly(allies[leader], flockRunToLeader)
	}

	if len(allies) >= flockMinGroup {
		return move(runOrWalk(toCenter > flockRunToGroup), cx, cz)
	}
	return followAlly(nearest, flockRunToGroup)
}

// lead keeps an agent heading to its destination, picking a new one on
// arrival or after flockRepick batches.
func (b *Brain) lead(p *protocol.Perception) protocol.Decision {
	st, ok := b.leaders[p.MyID]
	switch {
	case !ok:
		st = &flockLeader{}
		st.x, st.z = b.leaderDestination(p.MyX, p.MyZ)
		b.leaders[p.MyID] = st
	case math.Hypot(st.x-p.MyX, st.z-p.MyZ) < flockLeaderArrive || st.batches >= flockRepick:
		st.x, st.z = b.leaderDestination(p.MyX, p.MyZ)
		st.batches = 0
	default:
		st.batches++
	}
	far := math.Hypot(st.x-p.MyX, st.z-p.MyZ) > flockLeaderRun
	return move(runOrWalk(far), st.x, st.z)
}

func (b *Brain) leaderDestination(x, z float64) (float64, float64) {
	return x + b.uniform(-flockLeaderRange, flockLeaderRange), z + b.uniform(-flockLeaderRange, flockLeaderRange)
}

// join makes id a follower. It stops leading so two agents never end up
// following each other.
func (b *Brain) join(id, leader string) {
	b.groups[id] = leader
	delete(b.leaders, id)
}

func (b *Brain) nearestLeader(allies map[string]ally) (ally, bool) {
	ids := make([]string, 0, len(allies))
	for id := range allies {
		if _, ok := b.leaders[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ally{}, false
	}
	sort.Strings(ids)
	best := allies[ids[0]]
	for _, id := range ids[1:] {
		if a := allies[id]; a.dist < best.dist {
			best = a
		}
	}
	return best, true
}

func followAlly(a ally, runAbove float64) protocol.Decision {
	return move(runOrWalk(a.dist > runAbove), a.x, a.z)
}

func runOrWalk(run bool) string {
	if run {
		return protocol.MoveRun
	}
	return protocol.MoveWalk
}
