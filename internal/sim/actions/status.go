package actions

import "strconv"

// ModifyHealth writes health directly, bypassing action validation. It is
// used by passive effects such as symptom drain.
func (e *Engine) ModifyHealth(id string, delta float64) (died, found bool) {
	a, ok := e.reg.Agents.Get(id)
	if !ok {
		return false, false
	}
	return a.AdjustHealth(delta), true
}

// ModifyHunger is ModifyHealth for hunger.
func (e *Engine) ModifyHunger(id string, delta float64) (died, found bool) {
	a, ok := e.reg.Agents.Get(id)
	if !ok {
		return false, false
	}
	return a.AdjustHunger(delta), true
}

func formatID(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
