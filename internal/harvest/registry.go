package harvest

import "github.com/talgya/orchard-sim/internal/world"

// Allocator hands out bin IDs from a monotonic counter. One allocator is owned
// by each simulation run and passed to whatever creates bins.
type Allocator struct {
	next BinID
}

// NewAllocator creates an allocator whose first ID is 0.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns a fresh bin ID.
func (a *Allocator) Next() BinID {
	id := a.next
	a.next++
	return id
}

// Registry holds the active bins in creation order.
type Registry struct {
	Capacity float64
	bins     []*Bin
}

// NewRegistry creates an empty registry for bins of the given capacity.
func NewRegistry(capacity float64) *Registry {
	return &Registry{Capacity: capacity}
}

// Create allocates a new empty bin at loc and appends it to the registry.
func (r *Registry) Create(alloc *Allocator, loc world.Coord, onGround bool) *Bin {
	b := &Bin{
		ID:       alloc.Next(),
		Loc:      loc,
		OnGround: onGround,
	}
	r.bins = append(r.bins, b)
	return b
}

// Get returns the bin with the given ID. The bool is false when no such bin is
// active (never created, or already delivered).
func (r *Registry) Get(id BinID) (*Bin, bool) {
	if id == NoBin {
		return nil, false
	}
	for _, b := range r.bins {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// Remove deletes the bin with the given ID and returns it.
func (r *Registry) Remove(id BinID) (*Bin, bool) {
	for i, b := range r.bins {
		if b.ID == id {
			r.bins = append(r.bins[:i], r.bins[i+1:]...)
			return b, true
		}
	}
	return nil, false
}

// All returns the active bins in creation order. The slice must not be
// modified by callers.
func (r *Registry) All() []*Bin {
	return r.bins
}

// Len returns the number of active bins.
func (r *Registry) Len() int {
	return len(r.bins)
}

// Delivery is the final state of a bin that reached the repository.
type Delivery struct {
	Bin  Bin    `json:"bin"`
	Tick uint64 `json:"tick"`
}

// Repository is the append-only collection of delivered bins.
type Repository struct {
	deliveries []Delivery
}

// Append records a delivered bin snapshot.
func (r *Repository) Append(b Bin, tick uint64) {
	r.deliveries = append(r.deliveries, Delivery{Bin: b, Tick: tick})
}

// Len returns the number of delivered bins.
func (r *Repository) Len() int {
	return len(r.deliveries)
}

// Deliveries returns all deliveries in arrival order.
func (r *Repository) Deliveries() []Delivery {
	return r.deliveries
}

// TotalYield returns the yield contained in all delivered bins.
func (r *Repository) TotalYield() float64 {
	total := 0.0
	for _, d := range r.deliveries {
		total += d.Bin.Level
	}
	return total
}
