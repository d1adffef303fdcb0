// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"context"
	"runtime"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExecuteBatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a vector with some values", t, func() {
		v := mustNew(t)
		Reset(func() { v.Close(ctx) })

		So(v.Insert(ctx, 5), ShouldBeNil)
		So(v.Insert(ctx, 1), ShouldBeNil)

		Convey("When a batch is executed", func() {
			b := NewBatch[int]()
			b.AddAll(9, 3, 5)
			b.Add(0)
			v.metrics.Flush()
			clones := v.metrics.GetStats().Contention.Clones
			So(v.ExecuteBatch(ctx, b), ShouldBeNil)

			Convey("Then every value should be in order", func() {
				values, _ := v.Values(ctx)
				So(values, ShouldResemble, []int{0, 1, 3, 5, 5, 9})
				So(b.IsCommitted(), ShouldBeTrue)
			})

			Convey("Then a single snapshot should have been built", func() {
				v.metrics.Flush()
				So(v.metrics.GetStats().Contention.Clones-clones, ShouldEqual, uint64(1))
			})

			Convey("Then running it again should fail", func() {
				So(v.ExecuteBatch(ctx, b), ShouldEqual, ErrBatchAlreadyCommitted)
			})

			Convey("Then it should be reusable after Clear", func() {
				b.Clear()
				So(b.Size(), ShouldEqual, 0)
				b.Add(2)
				So(v.ExecuteBatch(ctx, b), ShouldBeNil)
				n, _ := v.Len(ctx)
				So(n, ShouldEqual, 7)
			})
		})

		Convey("When an empty batch is executed", func() {
			b := NewBatch[int]()
			So(v.ExecuteBatch(ctx, b), ShouldBeNil)

			Convey("Then nothing should change", func() {
				n, _ := v.Len(ctx)
				So(n, ShouldEqual, 2)
				So(b.IsCommitted(), ShouldBeTrue)
			})
		})

		Convey("When a session executes a batch", func() {
			s, _ := v.Session()
			b := NewBatch[int]()
			b.AddAll(4, 2)
			So(s.ExecuteBatch(ctx, b), ShouldBeNil)
			So(s.Close(ctx), ShouldBeNil)

			Convey("Then the values should be published", func() {
				values, _ := v.Values(ctx)
				So(values, ShouldResemble, []int{1, 2, 4, 5})
			})
		})
	})
}

// testValue is a large struct used to detect lingering references after clearing a batch.
type testValue struct {
	_ [1 << 20]byte // 1 MiB to ensure noticeable memory usage
}

const (
	// gcMaxAttempts is the maximum number of garbage collection attempts to wait for finalization.
	gcMaxAttempts = 10
	// gcPause defines the delay between garbage collection attempts.
	gcPause = 10 * time.Millisecond
)

// TestBatchClearReleasesMemory verifies that Clear removes all references allowing GC to reclaim memory.
func TestBatchClearReleasesMemory(t *testing.T) {
	batch := NewBatch[*testValue]()
	val := &testValue{}
	finalized := make(chan struct{})
	runtime.SetFinalizer(val, func(*testValue) { close(finalized) })

	batch.Add(val)
	batch.Clear()

	// Remove our own reference and trigger GC repeatedly until finalizer runs.
	val = nil
	for i := 0; i < gcMaxAttempts; i++ {
		runtime.GC()
		runtime.Gosched()
		select {
		case <-finalized:
			return // Success: finalizer executed
		default:
			time.Sleep(gcPause)
		}
	}

	t.Fatalf("object was not garbage collected after %d attempts", gcMaxAttempts)
}
