package track

import "fmt"

// IDState is the allocator-level lifecycle of a track id, independent
// of the filter's bootstrap phase.
type IDState string

const (
	IDFree     IDState = "free"
	IDOccupied IDState = "occupied"
)

// Allocator hands out integer track ids from a free-list arena. Ids
// are 1-based and sequential. There is currently no release path:
// once occupied, an id is never returned to the free pool. Not safe
// for concurrent use without external serialisation.
type Allocator struct {
	states []IDState
}

// NewAllocator returns an empty arena.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns the lowest-numbered free id, growing the arena by
// one new sequential id when none is free. The id is still free after
// Allocate; callers claim it with Occupy.
func (a *Allocator) Allocate() int {
	for i, s := range a.states {
		if s == IDFree {
			return i + 1
		}
	}
	a.states = append(a.states, IDFree)
	return len(a.states)
}

// Occupy transitions id from free to occupied. Occupying an unknown
// or already-occupied id is a programming error and panics.
func (a *Allocator) Occupy(id int) {
	if id < 1 || id > len(a.states) {
		panic(fmt.Sprintf("track: occupy of unallocated id %d", id))
	}
	if a.states[id-1] == IDOccupied {
		panic(fmt.Sprintf("track: occupy of already-occupied id %d", id))
	}
	a.states[id-1] = IDOccupied
}

// State reports the lifecycle state of id.
func (a *Allocator) State(id int) IDState {
	if id < 1 || id > len(a.states) {
		panic(fmt.Sprintf("track: state of unallocated id %d", id))
	}
	return a.states[id-1]
}

// Len returns the number of ids the arena has ever created.
func (a *Allocator) Len() int {
	return len(a.states)
}
