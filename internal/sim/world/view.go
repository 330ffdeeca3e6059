package world

import "github.com/ShiraishiHope/MultiAgents/internal/sim/model"

// Snapshot is a read-only copy of world state published once per tick.
type Snapshot struct {
	Tick     uint64              `json:"tick"`
	Agents   []model.Agent       `json:"agents"`
	Items    []model.Item        `json:"items"`
	Deposits []model.DepositZone `json:"deposits"`
	Food     []model.FoodSource  `json:"food"`
}

// View returns the latest published snapshot. Safe from any goroutine.
func (w *World) View() Snapshot {
	v := w.view.Load()
	if v == nil {
		return Snapshot{}
	}
	s, _ := v.(Snapshot)
	return s
}

// Agent looks up one agent in the latest snapshot.
func (s Snapshot) Agent(id string) (model.Agent, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return model.Agent{}, false
}
