// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"context"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// model is the reference implementation: a slice kept sorted by insertion.
type model struct {
	values []int
}

func (m *model) insert(x int) {
	i, _ := slices.BinarySearch(m.values, x)
	m.values = slices.Insert(m.values, i, x)
}

// TestPropertySortedInvariant checks At(i) <= At(i+1) after any insert sequence.
func TestPropertySortedInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		xs := rapid.SliceOf(rapid.IntRange(-100, 100)).Draw(t, "values")

		v, err := New[int](WithCapacity(64))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer v.Close(ctx)

		for _, x := range xs {
			if err := v.Insert(ctx, x); err != nil {
				t.Fatalf("Insert(%d): %v", x, err)
			}
		}

		n, _ := v.Len(ctx)
		if n != len(xs) {
			t.Fatalf("expected %d elements, got %d", len(xs), n)
		}
		for i := 0; i+1 < n; i++ {
			a, _ := v.At(ctx, i)
			b, _ := v.At(ctx, i+1)
			if a > b {
				t.Fatalf("At(%d)=%d > At(%d)=%d", i, a, i+1, b)
			}
		}
	})
}

// TestPropertyMatchesModel runs random operations against the vector and a
// sorted slice and compares every observation.
func TestPropertyMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		threshold := rapid.IntRange(1, 20).Draw(t, "threshold")

		v, err := New[int](WithCapacity(128), WithScanThreshold(threshold))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer v.Close(ctx)
		m := &model{}

		t.Repeat(map[string]func(*rapid.T){
			"insert": func(t *rapid.T) {
				x := rapid.IntRange(-20, 20).Draw(t, "x")
				if err := v.Insert(ctx, x); err != nil {
					t.Fatalf("Insert: %v", err)
				}
				m.insert(x)
			},
			"batch": func(t *rapid.T) {
				xs := rapid.SliceOfN(rapid.IntRange(-20, 20), 0, 5).Draw(t, "xs")
				b := NewBatch[int]()
				b.AddAll(xs...)
				if err := v.ExecuteBatch(ctx, b); err != nil {
					t.Fatalf("ExecuteBatch: %v", err)
				}
				for _, x := range xs {
					m.insert(x)
				}
			},
			"at": func(t *rapid.T) {
				i := rapid.IntRange(-1, len(m.values)).Draw(t, "i")
				got, err := v.At(ctx, i)
				if i < 0 || i >= len(m.values) {
					if err == nil {
						t.Fatalf("At(%d) on %d elements succeeded", i, len(m.values))
					}
					return
				}
				if err != nil || got != m.values[i] {
					t.Fatalf("At(%d) = %d, %v; want %d", i, got, err, m.values[i])
				}
			},
			"search": func(t *rapid.T) {
				x := rapid.IntRange(-25, 25).Draw(t, "x")
				i, found, err := v.Search(ctx, x)
				wi, wfound := slices.BinarySearch(m.values, x)
				if err != nil || i != wi || found != wfound {
					t.Fatalf("Search(%d) = %d, %v, %v; want %d, %v", x, i, found, err, wi, wfound)
				}
			},
			"reclaim": func(t *rapid.T) {
				if _, err := v.Reclaim(ctx); err != nil {
					t.Fatalf("Reclaim: %v", err)
				}
			},
			"": func(t *rapid.T) {
				values, err := v.Values(ctx)
				if err != nil {
					t.Fatalf("Values: %v", err)
				}
				if !slices.Equal(values, m.values) {
					t.Fatalf("contents %v, want %v", values, m.values)
				}
				if v.Violations() != 0 {
					t.Fatalf("violations: %d", v.Violations())
				}
			},
		})
	})
}
