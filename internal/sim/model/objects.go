package model

// Item is a pickable object. CarriedBy holds the carrying robot's id.
type Item struct {
	ID        string `json:"id"`
	Pos       Vec3   `json:"pos"`
	CarriedBy string `json:"carried_by"`
}

func (i *Item) EntityID() string { return i.ID }

// DepositZone accepts delivered items within AcceptRadius until Capacity
// is reached. Capacity <= 0 means unlimited.
type DepositZone struct {
	ID           string  `json:"id"`
	Pos          Vec3    `json:"pos"`
	Capacity     int     `json:"capacity"`
	Deposited    int     `json:"deposited"`
	AcceptRadius float64 `json:"accept_radius"`
}

func (d *DepositZone) EntityID() string { return d.ID }

func (d *DepositZone) HasRoom() bool {
	return d.Capacity <= 0 || d.Deposited < d.Capacity
}

// Remaining is -1 for unlimited zones.
func (d *DepositZone) Remaining() int {
	if d.Capacity <= 0 {
		return -1
	}
	return d.Capacity - d.Deposited
}

type Obstacle struct {
	ID      string  `json:"id"`
	Pos     Vec3    `json:"pos"`
	Radius  float64 `json:"radius"`
	Dynamic bool    `json:"dynamic"`
}

func (o *Obstacle) EntityID() string { return o.ID }

const (
	FoodUnitRestore     = 25.0
	FoodFirstBiteBonus  = 50.0
	FoodBonusSourceSize = 2
)

// FoodSource holds discrete units of food.
type FoodSource struct {
	ID        string `json:"id"`
	Pos       Vec3   `json:"pos"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}

func (f *FoodSource) EntityID() string { return f.ID }

func (f *FoodSource) Empty() bool { return f.Remaining <= 0 }

// Consume removes one unit and returns the hunger it restores. The first
// unit taken from a full two-unit source is worth a double portion.
func (f *FoodSource) Consume() (float64, bool) {
	if f.Empty() {
		return 0, false
	}
	restored := FoodUnitRestore
	if f.Capacity == FoodBonusSourceSize && f.Remaining == FoodBonusSourceSize {
		restored = FoodFirstBiteBonus
	}
	f.Remaining--
	return restored, true
}

// QuarantineZone is a location sick agents are sent to.
type QuarantineZone struct {
	ID     string  `json:"id"`
	Pos    Vec3    `json:"pos"`
	Radius float64 `json:"radius"`
}

func (q *QuarantineZone) EntityID() string { return q.ID }
