// Licensed under the MIT License. See LICENSE file in the project root for details.

package bank

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBank(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		b, err := New[int](8, 4)
		require.NoError(t, err)
		assert.Equal(t, 8, b.Cap())
		assert.Equal(t, 8, b.Free())
		assert.Equal(t, 0, b.InUse())
		assert.Equal(t, 8, b.Count(StateFree))
	})

	t.Run("InvalidCapacity", func(t *testing.T) {
		_, err := New[int](0, 0)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("GetAndStore", func(t *testing.T) {
		b, err := New[int](2, 0)
		require.NoError(t, err)

		s, err := b.Get()
		require.NoError(t, err)
		assert.Equal(t, StateLive, s.State())
		assert.Equal(t, 1, b.Free())

		s.Append(1)
		s.Append(2)
		require.NoError(t, b.Store(s))
		assert.Equal(t, StateFree, s.State())
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, 2, b.Free())
	})

	t.Run("Exhaustion", func(t *testing.T) {
		b, err := New[int](3, 0)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := b.Get()
			require.NoError(t, err)
		}
		_, err = b.Get()
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 0, b.Free())
	})

	t.Run("FIFOOrder", func(t *testing.T) {
		b, err := New[int](3, 0)
		require.NoError(t, err)

		first, _ := b.Get()
		require.NoError(t, b.Store(first))

		// The two untouched slots come out before the recycled one.
		a, _ := b.Get()
		c, _ := b.Get()
		d, _ := b.Get()
		assert.NotEqual(t, first, a)
		assert.NotEqual(t, first, c)
		assert.Equal(t, first, d)
	})

	t.Run("Generation", func(t *testing.T) {
		b, err := New[int](1, 0)
		require.NoError(t, err)

		s, _ := b.Get()
		gen := s.Generation()
		require.NoError(t, b.Store(s))

		again, _ := b.Get()
		require.Same(t, s, again)
		assert.Equal(t, gen+1, again.Generation())
	})

	t.Run("DoubleStore", func(t *testing.T) {
		b, err := New[int](1, 0)
		require.NoError(t, err)

		s, _ := b.Get()
		require.NoError(t, b.Store(s))
		err = b.Store(s)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, 1, b.Free())
	})

	t.Run("ForeignSlot", func(t *testing.T) {
		b1, _ := New[int](1, 0)
		b2, _ := New[int](1, 0)

		s, _ := b1.Get()
		assert.ErrorIs(t, b2.Store(s), ErrForeignSlot)
		assert.ErrorIs(t, b2.Store(nil), ErrForeignSlot)
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		b, err := New[int](16, 0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		const numGoroutines = 8
		const operationsPerGoroutine = 500

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < operationsPerGoroutine; j++ {
					s, err := b.Get()
					if errors.Is(err, ErrExhausted) {
						continue
					}
					s.Append(id*operationsPerGoroutine + j)
					if err := b.Store(s); err != nil {
						t.Errorf("store: %v", err)
						return
					}
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 16, b.Free())
		assert.Equal(t, 16, b.Count(StateFree))
	})
}

func TestSlot(t *testing.T) {
	t.Run("Lifecycle", func(t *testing.T) {
		b, _ := New[int](1, 0)
		s, _ := b.Get()

		require.NoError(t, s.Retire())
		assert.Equal(t, StateRetired, s.State())
		assert.True(t, s.Valid())

		assert.ErrorIs(t, s.Retire(), ErrIllegalTransition)

		require.NoError(t, b.Store(s))
		assert.False(t, s.Valid())
		assert.ErrorIs(t, s.Retire(), ErrIllegalTransition)
	})

	t.Run("CopyAndInsert", func(t *testing.T) {
		b, _ := New[int](2, 0)
		src, _ := b.Get()
		src.Append(1)
		src.Append(3)

		dst, _ := b.Get()
		dst.CopyFrom(src)
		dst.InsertAt(1, 2)
		dst.InsertAt(0, 0)
		dst.InsertAt(4, 4)

		assert.Equal(t, []int{0, 1, 2, 3, 4}, dst.Items())
		assert.Equal(t, []int{1, 3}, src.Items())
	})

	t.Run("LoadDetectsReclaim", func(t *testing.T) {
		b, _ := New[int](1, 4)
		s, _ := b.Get()
		s.Append(7)

		v, err := s.Load(0)
		require.NoError(t, err)
		assert.Equal(t, 7, v)

		require.NoError(t, s.Retire())
		v, err = s.Load(0)
		require.NoError(t, err)
		assert.Equal(t, 7, v)

		require.NoError(t, b.Store(s))
		// A reader that bounds-checked against the old length.
		_, err = s.Load(0)
		assert.ErrorIs(t, err, ErrReclaimed)
	})

	t.Run("LoadAfterReuse", func(t *testing.T) {
		b, _ := New[int](1, 4)
		s, _ := b.Get()
		s.Append(7)
		require.NoError(t, b.Store(s))

		again, _ := b.Get()
		require.Same(t, s, again)
		_, err := s.Load(0)
		assert.ErrorIs(t, err, ErrReclaimed)
	})

	t.Run("StateString", func(t *testing.T) {
		assert.Equal(t, "free", StateFree.String())
		assert.Equal(t, "live", StateLive.String())
		assert.Equal(t, "retired", StateRetired.String())
		assert.Equal(t, "state(9)", State(9).String())
	})
}
