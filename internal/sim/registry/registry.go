package registry

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

// ErrConflict is returned when an id is registered twice.
var ErrConflict = errors.New("id already registered")

// Entity is anything addressable by a stable string id.
type Entity interface {
	EntityID() string
}

// Registry is a keyed set of entities. Reads may run concurrently; writes
// are serialized.
type Registry[T Entity] struct {
	kind   string
	logger *log.Logger

	mu    sync.RWMutex
	items map[string]T
}

func New[T Entity](kind string, logger *log.Logger) *Registry[T] {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry[T]{kind: kind, logger: logger, items: map[string]T{}}
}

// Register adds e. A duplicate id keeps the existing entry.
func (r *Registry[T]) Register(e T) error {
	id := e.EntityID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		r.logger.Printf("warn: duplicate %s id=%s ignored", r.kind, id)
		return fmt.Errorf("%s %s: %w", r.kind, id, ErrConflict)
	}
	r.items[id] = e
	return nil
}

func (r *Registry[T]) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	return e, ok
}

// All returns a point-in-time snapshot ordered by id.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	out := make([]T, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.items))
	for id := range r.items {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Range calls fn for each entity in id order until fn returns false.
func (r *Registry[T]) Range(fn func(T) bool) {
	for _, e := range r.All() {
		if !fn(e) {
			return
		}
	}
}

// Registries is the set of per-kind registries owned by one world.
type Registries struct {
	Agents     *Registry[*model.Agent]
	Items      *Registry[*model.Item]
	Deposits   *Registry[*model.DepositZone]
	Obstacles  *Registry[*model.Obstacle]
	Food       *Registry[*model.FoodSource]
	Quarantine *Registry[*model.QuarantineZone]
}

func NewRegistries(logger *log.Logger) *Registries {
	return &Registries{
		Agents:     New[*model.Agent]("agent", logger),
		Items:      New[*model.Item]("item", logger),
		Deposits:   New[*model.DepositZone]("deposit", logger),
		Obstacles:  New[*model.Obstacle]("obstacle", logger),
		Food:       New[*model.FoodSource]("food", logger),
		Quarantine: New[*model.QuarantineZone]("quarantine", logger),
	}
}
