// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a text logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		ctx := context.Background()

		Convey("When the bank is exhausted", func() {
			logger.LogExhausted(ctx, 8, 7, 0)

			Convey("Then a warning with the capacity should be written", func() {
				So(buf.String(), ShouldContainSubstring, "level=WARN")
				So(buf.String(), ShouldContainSubstring, "memory bank exhausted")
				So(buf.String(), ShouldContainSubstring, "capacity=8")
			})
		})

		Convey("When a session closes without entries", func() {
			logger.LogSessionExit(ctx, "handoff", 0)

			Convey("Then nothing should be written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When tagged with a session id", func() {
			logger.WithSession(7).LogScan(ctx, 1, 2, 3)

			Convey("Then the id should be included", func() {
				So(buf.String(), ShouldContainSubstring, "session=7")
				So(buf.String(), ShouldContainSubstring, "reclaimed=2")
			})
		})

		Convey("When close leaves slots outstanding", func() {
			logger.LogClose(ctx, 3, 5, 6, nil)

			Convey("Then a warning should be written", func() {
				So(buf.String(), ShouldContainSubstring, "closed with slots outstanding")
			})
		})

		Convey("When close fails", func() {
			logger.LogClose(ctx, 0, 0, 6, errors.New("boom"))

			Convey("Then the error should be written", func() {
				So(buf.String(), ShouldContainSubstring, "level=ERROR")
				So(buf.String(), ShouldContainSubstring, "boom")
			})
		})
	})

	Convey("Given a no-op logger", t, func() {
		logger := NoopLogger()

		Convey("Then error level should be disabled", func() {
			So(logger.Enabled(context.Background(), slog.LevelError), ShouldBeFalse)
		})
	})
}
