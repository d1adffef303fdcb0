// Licensed under the MIT License. See LICENSE file in the project root for details.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	core "github.com/kianostad/lfsv/internal/core"
)

func TestREPL(t *testing.T) {
	Convey("Given a REPL over an empty vector", t, func() {
		v, err := core.New[int](core.WithCapacity(16))
		So(err, ShouldBeNil)
		Reset(func() { v.Close(context.Background()) })

		var out bytes.Buffer
		r := NewREPL(v, &out)

		Convey("When a session of commands is run", func() {
			r.Run(strings.NewReader("insert 5 3 8 1\nat 0\nlen\ndump\nsearch 4\nat 9\nscan\nquit\ninsert 2\n"))
			got := out.String()

			Convey("Then each command should answer", func() {
				So(got, ShouldContainSubstring, "OK")
				So(got, ShouldContainSubstring, "Value: 1")
				So(got, ShouldContainSubstring, "Len: 4")
				So(got, ShouldContainSubstring, "[1 3 5 8]")
				So(got, ShouldContainSubstring, "Index: 2, found: false")
				So(got, ShouldContainSubstring, "Out of range")
				So(got, ShouldContainSubstring, "Reclaimed:")
				So(got, ShouldContainSubstring, "Goodbye!")
			})

			Convey("Then nothing after quit should run", func() {
				n, _ := v.Len(context.Background())
				So(n, ShouldEqual, 4)
			})
		})

		Convey("When input is malformed", func() {
			r.Run(strings.NewReader("insert x\nat\nfrobnicate\n"))

			Convey("Then usage hints should be printed", func() {
				So(out.String(), ShouldContainSubstring, "Not an integer: x")
				So(out.String(), ShouldContainSubstring, "Usage: at <i>")
				So(out.String(), ShouldContainSubstring, "Unknown command: frobnicate")
			})
		})

		Convey("When stats are requested", func() {
			r.Exec(context.Background(), "stats", nil)

			Convey("Then the bank capacity should be shown", func() {
				So(out.String(), ShouldContainSubstring, "bank=15/16")
			})
		})
	})
}
