package searcher

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgo/model"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("MinHeap", func(t *testing.T) {
		pq := NewPriorityQueue(false)

		pq.PushItem(model.Candidate{Row: 1, Distance: 10})
		pq.PushItem(model.Candidate{Row: 2, Distance: 5})
		pq.PushItem(model.Candidate{Row: 3, Distance: 20})
		require.Equal(t, 3, pq.Len())

		top, ok := pq.TopItem()
		require.True(t, ok)
		assert.Equal(t, float32(5), top.Distance)

		for _, want := range []float32{5, 10, 20} {
			item, ok := pq.PopItem()
			require.True(t, ok)
			assert.Equal(t, want, item.Distance)
		}
	})

	t.Run("MaxHeap", func(t *testing.T) {
		pq := NewPriorityQueue(true)

		pq.PushItem(model.Candidate{Row: 1, Distance: 10})
		pq.PushItem(model.Candidate{Row: 2, Distance: 5})
		pq.PushItem(model.Candidate{Row: 3, Distance: 20})

		top, ok := pq.TopItem()
		require.True(t, ok)
		assert.Equal(t, float32(20), top.Distance)

		item, _ := pq.PopItem()
		assert.Equal(t, model.RowID(3), item.Row)
	})

	t.Run("TieBreakByRow", func(t *testing.T) {
		minPQ := NewPriorityQueue(false)
		maxPQ := NewPriorityQueue(true)
		for _, r := range []model.RowID{7, 2, 9, 4} {
			minPQ.PushItem(model.Candidate{Row: r, Distance: 1})
			maxPQ.PushItem(model.Candidate{Row: r, Distance: 1})
		}

		var minOrder, maxOrder []model.RowID
		for minPQ.Len() > 0 {
			c, _ := minPQ.PopItem()
			minOrder = append(minOrder, c.Row)
		}
		for maxPQ.Len() > 0 {
			c, _ := maxPQ.PopItem()
			maxOrder = append(maxOrder, c.Row)
		}
		assert.Equal(t, []model.RowID{2, 4, 7, 9}, minOrder)
		assert.Equal(t, []model.RowID{9, 7, 4, 2}, maxOrder)
	})

	t.Run("PushItemBounded", func(t *testing.T) {
		// A max-heap of size k keeps the k closest items.
		pq := NewPriorityQueue(true)
		capacity := 3

		assert.True(t, pq.PushItemBounded(model.Candidate{Row: 1, Distance: 10}, capacity))
		assert.True(t, pq.PushItemBounded(model.Candidate{Row: 2, Distance: 20}, capacity))
		assert.True(t, pq.PushItemBounded(model.Candidate{Row: 3, Distance: 30}, capacity))

		top, _ := pq.TopItem()
		assert.Equal(t, float32(30), top.Distance)

		assert.True(t, pq.PushItemBounded(model.Candidate{Row: 4, Distance: 5}, capacity))
		assert.Equal(t, 3, pq.Len())
		top, _ = pq.TopItem()
		assert.Equal(t, float32(20), top.Distance)

		assert.False(t, pq.PushItemBounded(model.Candidate{Row: 5, Distance: 40}, capacity))
		top, _ = pq.TopItem()
		assert.Equal(t, float32(20), top.Distance)

		// Equal distance, higher row: not better than the top.
		assert.False(t, pq.PushItemBounded(model.Candidate{Row: 6, Distance: 20}, capacity))
		// Equal distance, lower row: better.
		assert.True(t, pq.PushItemBounded(model.Candidate{Row: 0, Distance: 20}, capacity))
		top, _ = pq.TopItem()
		assert.Equal(t, model.RowID(0), top.Row)

		assert.False(t, pq.PushItemBounded(model.Candidate{Row: 9}, 0))
	})

	t.Run("AppendSorted", func(t *testing.T) {
		pq := NewPriorityQueue(true)
		pq.PushItem(model.Candidate{Row: 5, Distance: 2})
		pq.PushItem(model.Candidate{Row: 1, Distance: 3})
		pq.PushItem(model.Candidate{Row: 3, Distance: 2})

		got := pq.AppendSorted(nil)
		assert.Equal(t, []model.Candidate{
			{Row: 3, Distance: 2},
			{Row: 5, Distance: 2},
			{Row: 1, Distance: 3},
		}, got)
		assert.Equal(t, 3, pq.Len())
	})

	t.Run("Reset", func(t *testing.T) {
		pq := NewPriorityQueue(false)
		for i := 0; i < 1000; i++ {
			pq.PushItem(model.Candidate{Row: model.RowID(i), Distance: float32(i)})
		}
		pq.Reset()
		assert.Equal(t, 0, pq.Len())
	})

	t.Run("Stress", func(t *testing.T) {
		pq := NewPriorityQueue(false)
		rng := rand.New(rand.NewPCG(1, 2))

		for i := 0; i < 1000; i++ {
			pq.PushItem(model.Candidate{Row: model.RowID(i), Distance: rng.Float32()})
		}

		var last float32 = -1
		for pq.Len() > 0 {
			item, _ := pq.PopItem()
			require.GreaterOrEqual(t, item.Distance, last)
			last = item.Distance
		}
	})

	t.Run("Empty", func(t *testing.T) {
		pq := NewPriorityQueue(false)
		_, ok := pq.TopItem()
		assert.False(t, ok)
		_, ok = pq.PopItem()
		assert.False(t, ok)
	})
}
