package decision

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

// noTarget is how the behaviour scripts spell an empty target id.
const noTarget = "0"

type shared struct {
	all       map[string]protocol.AgentSummary
	items     []protocol.ItemInfo
	deposits  []protocol.DepositInfo
	obstacles []protocol.ObstacleInfo
}

// Snapshot reads the registries once and builds a perception for every
// enabled, live agent. It returns nil when there is no leader.
func (c *Coordinator) Snapshot(now time.Time) *Batch {
	c.mu.Lock()
	leader := c.leader
	if leader == "" {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	seq := c.seq
	c.lastBatch = now
	workers := c.cfg.Workers
	c.mu.Unlock()

	agents := c.reg.Agents.All()
	sh := shared{all: make(map[string]protocol.AgentSummary, len(agents))}
	var live []*model.Agent
	for _, a := range agents {
		if a.IsDead() {
			continue
		}
		sh.all[a.ID] = protocol.AgentSummary{
			X:               a.Pos.X,
			Z:               a.Pos.Z,
			IsCarrying:      a.Carrying(),
			CurrentTargetID: targetOrZero(a.ReservedTargetID),
		}
		if a.Enabled {
			live = append(live, a)
		}
	}
	for _, it := range c.reg.Items.All() {
		if it.CarriedBy != "" {
			continue
		}
		sh.items = append(sh.items, protocol.ItemInfo{ID: it.ID, X: it.Pos.X, Z: it.Pos.Z})
	}
	for _, d := range c.reg.Deposits.All() {
		sh.deposits = append(sh.deposits, protocol.DepositInfo{ID: d.ID, X: d.Pos.X, Z: d.Pos.Z, AcceptRadius: d.AcceptRadius, Remaining: d.Remaining()})
	}
	for _, o := range c.reg.Obstacles.All() {
		sh.obstacles = append(sh.obstacles, protocol.ObstacleInfo{ID: o.ID, X: o.Pos.X, Z: o.Pos.Z, Radius: o.Radius, Dynamic: o.Dynamic})
	}

	built := make([]*protocol.Perception, len(live))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, a := range live {
		i, a := i, a
		g.Go(func() error {
			built[i] = c.perceive(a, sh)
			return nil
		})
	}
	_ = g.Wait()

	b := &Batch{
		Seq:         seq,
		At:          now,
		Leader:      leader,
		AgentIDs:    make([]string, len(live)),
		Perceptions: make(protocol.PerceptionBatch, len(live)),
	}
	for i, a := range live {
		b.AgentIDs[i] = a.ID
		b.Perceptions[a.ID] = built[i]
	}
	return b
}

func (c *Coordinator) perceive(a *model.Agent, sh shared) *protocol.Perception {
	p := &protocol.Perception{
		MyID:        a.ID,
		MyName:      a.Name,
		MyArchetype: string(a.Archetype),
		MyFaction:   string(a.Faction),
		MyX:         a.Pos.X,
		MyZ:         a.Pos.Z,
		MyState:     a.State.String(),
		SpawnX:      a.Spawn.X,
		SpawnZ:      a.Spawn.Z,
		HeadingX:    a.Forward.X,
		HeadingZ:    a.Forward.Z,
		Health:      a.Health,
		Hunger:      a.Hunger,

		DiseaseName:        a.Disease.Name,
		InfectionStage:     a.Stage.String(),
		IsContagious:       boolInt(a.Contagious),
		IsImmune:           a.Immune,
		MortalityRate:      a.Disease.MortalityRate,
		Infectivity:        a.Disease.Infectivity,
		RecoveryRate:       a.Disease.RecoveryRate,
		IncubationPeriod:   a.Disease.Incubation.Seconds(),
		ContagiousDuration: a.Disease.ContagiousFor.Seconds(),
		Symptoms:           append([]string{}, a.Disease.Symptoms...),

		CurrentAction:     a.LastAction,
		CurrentActionTime: unixSeconds(a.LastActionAt),

		IsCarrying:      boolInt(a.Carrying()),
		CarriedItemID:   a.CarryingID,
		CurrentTargetID: targetOrZero(a.ReservedTargetID),

		VisibleAgents: map[string]protocol.VisibleAgent{},
		VisibleFood:   map[string]protocol.VisibleFood{},
		HeardAgents:   map[string]protocol.HeardAgent{},

		AllAgents: sh.all,
		Items:     sh.items,
		Deposits:  sh.deposits,
		Obstacles: sh.obstacles,
	}
	if c.percep == nil {
		return p
	}
	vis := c.percep.Visible(a)
	for _, v := range vis.Agents {
		p.VisibleAgents[v.ID] = protocol.VisibleAgent{
			X:                 v.Pos.X,
			Z:                 v.Pos.Z,
			Distance:          v.Distance,
			CurrentAction:     v.Action,
			CurrentActionTime: unixSeconds(v.ActionAt),
			Faction:           string(v.Faction),
			Archetype:         string(v.Archetype),
			State:             v.State.String(),
		}
	}
	for _, f := range vis.Food {
		p.VisibleFood[f.ID] = protocol.VisibleFood{X: f.Pos.X, Z: f.Pos.Z, Distance: f.Distance}
	}
	for _, h := range c.percep.Audible(a) {
		p.HeardAgents[h.ID] = protocol.HeardAgent{X: h.Pos.X, Z: h.Pos.Z, Distance: h.Distance}
	}
	p.VisibleCount = len(p.VisibleAgents)
	p.HeardCount = len(p.HeardAgents)
	return p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func targetOrZero(id string) string {
	if id == "" {
		return noTarget
	}
	return id
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}
