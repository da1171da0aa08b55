package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocator(t *testing.T) {
	t.Parallel()

	t.Run("sequential allocation", func(t *testing.T) {
		a := NewAllocator()
		id := a.Allocate()
		assert.Equal(t, 1, id)
		a.Occupy(id)

		id = a.Allocate()
		assert.Equal(t, 2, id)
		a.Occupy(id)

		assert.Equal(t, 3, a.Allocate())
		assert.Equal(t, 3, a.Len())
	})

	t.Run("allocate without occupy returns same id", func(t *testing.T) {
		a := NewAllocator()
		assert.Equal(t, 1, a.Allocate())
		assert.Equal(t, 1, a.Allocate())
		assert.Equal(t, IDFree, a.State(1))
	})

	t.Run("lowest free id wins", func(t *testing.T) {
		a := NewAllocator()
		a.Occupy(a.Allocate()) // 1
		a.Allocate()           // 2, left free
		assert.Equal(t, 2, a.Allocate())
	})

	t.Run("occupy marks state", func(t *testing.T) {
		a := NewAllocator()
		id := a.Allocate()
		a.Occupy(id)
		assert.Equal(t, IDOccupied, a.State(id))
	})

	t.Run("occupy of unallocated id panics", func(t *testing.T) {
		a := NewAllocator()
		assert.Panics(t, func() { a.Occupy(1) })
		assert.Panics(t, func() { a.Occupy(0) })
	})

	t.Run("double occupy panics", func(t *testing.T) {
		a := NewAllocator()
		id := a.Allocate()
		a.Occupy(id)
		assert.Panics(t, func() { a.Occupy(id) })
	})
}
