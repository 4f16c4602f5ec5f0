package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingLogger struct {
	skips  atomic.Int32
	errors atomic.Int32
}

func (r *recordingLogger) Info(msg string, _ ...interface{}) {
	if msg == "skip" {
		r.skips.Add(1)
	}
}

func (r *recordingLogger) Error(error, string, ...interface{}) {
	r.errors.Add(1)
}

var _ cron.Logger = (*recordingLogger)(nil)

func TestScheduler(t *testing.T) {
	Convey("Given a Scheduler", t, func() {
		log := &recordingLogger{}
		scheduler := New(log)

		Convey("New function", func() {
			So(scheduler.cron, ShouldNotBeNil)
			So(New(nil), ShouldNotBeNil)
		})

		Convey("Spec validation", func() {
			So(Validate("0 3 * * *"), ShouldBeNil)
			So(Validate("*/30 0 3 * * *"), ShouldBeNil)
			So(Validate("@daily"), ShouldBeNil)

			err := Validate("invalid spec")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "expected 5 to 6 fields")
		})

		Convey("When adding a job with an invalid cron spec", func() {
			err := scheduler.AddJob("invalid spec", func(context.Context) error { return nil })
			So(err, ShouldNotBeNil)
		})

		Convey("When a job runs every second", func() {
			var runs atomic.Int32
			err := scheduler.AddJob("* * * * * *", func(context.Context) error {
				runs.Add(1)
				return nil
			})
			So(err, ShouldBeNil)
			So(scheduler.Next().IsZero(), ShouldBeTrue)

			scheduler.Start()
			So(scheduler.Next().IsZero(), ShouldBeFalse)
			time.Sleep(2200 * time.Millisecond)
			scheduler.Stop()

			Convey("It runs and stops running after Stop", func() {
				seen := runs.Load()
				So(seen, ShouldBeGreaterThanOrEqualTo, 1)
				time.Sleep(1200 * time.Millisecond)
				So(runs.Load(), ShouldEqual, seen)
			})
		})

		Convey("When a job outlasts its interval", func() {
			var running, maxRunning atomic.Int32
			err := scheduler.AddJob("* * * * * *", func(ctx context.Context) error {
				n := running.Add(1)
				defer running.Add(-1)
				if n > maxRunning.Load() {
					maxRunning.Store(n)
				}
				select {
				case <-time.After(2500 * time.Millisecond):
				case <-ctx.Done():
				}
				return nil
			})
			So(err, ShouldBeNil)

			scheduler.Start()
			time.Sleep(3500 * time.Millisecond)
			scheduler.Stop()

			Convey("Overlapping runs are skipped", func() {
				So(maxRunning.Load(), ShouldEqual, 1)
				So(log.skips.Load(), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When a job fails", func() {
			err := scheduler.AddJob("* * * * * *", func(context.Context) error {
				return errors.New("backup failed")
			})
			So(err, ShouldBeNil)

			scheduler.Start()
			time.Sleep(1500 * time.Millisecond)
			scheduler.Stop()

			Convey("The error is logged and the scheduler keeps going", func() {
				So(log.errors.Load(), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("Stop cancels the context of a running job", func() {
			cancelled := make(chan struct{})
			err := scheduler.AddJob("* * * * * *", func(ctx context.Context) error {
				<-ctx.Done()
				close(cancelled)
				return ctx.Err()
			})
			So(err, ShouldBeNil)

			scheduler.Start()
			time.Sleep(1200 * time.Millisecond)
			scheduler.Stop()

			select {
			case <-cancelled:
			case <-time.After(time.Second):
				So("job context not cancelled", ShouldBeEmpty)
			}
		})
	})
}
