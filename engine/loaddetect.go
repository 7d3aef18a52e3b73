package engine

import (
	"context"
	"time"
)

// blankPageShell is what a browser renders for a document with no content.
const blankPageShell = "<html><head></head><body></body></html>"

// BlankPageSize is the content length of blankPageShell. A page of exactly
// this size loaded but rendered nothing (typically a block or challenge
// interstitial).
const BlankPageSize = len(blankPageShell)

// pollInterval is the spacing between content-size checks.
const pollInterval = time.Second

// LoadOutcome is the verdict of a load poll.
type LoadOutcome int

const (
	// LoadTimedOut means the polling window elapsed without a verdict.
	LoadTimedOut LoadOutcome = iota
	// Loaded means the content grew past the threshold.
	Loaded
	// LoadBlank means the content matched the empty shell.
	LoadBlank
	// LoadFault means the content could not be read.
	LoadFault
)

func (o LoadOutcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case LoadBlank:
		return "blank"
	case LoadFault:
		return "fault"
	default:
		return "timed_out"
	}
}

// Sleeper blocks for d. Tests replace it to run the poll loop instantly.
type Sleeper func(ctx context.Context, d time.Duration)

// sleepWithContext sleeps for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Detector decides whether a navigated page produced real content.
type Detector struct {
	sleep Sleeper
}

// NewDetector returns a Detector. A nil sleeper uses a real timer.
func NewDetector(sleep Sleeper) *Detector {
	if sleep == nil {
		sleep = sleepWithContext
	}
	return &Detector{sleep: sleep}
}

// AwaitLoad polls the content length of drv once per second for
// floor(timeout/1s) ticks. The blank-shell check runs before the threshold
// check on every tick. It never mutates the page.
func (d *Detector) AwaitLoad(ctx context.Context, drv Driver, threshold int, timeout time.Duration) (LoadOutcome, error) {
	log := LoggerFrom(ctx)
	ticks := int(timeout / pollInterval)

	for i := 0; i < ticks; i++ {
		content, err := drv.Content(ctx)
		if err != nil {
			return LoadFault, err
		}
		size := len(content)
		log.Debug("page size", "tick", i, "size", size, "threshold", threshold)

		if size == BlankPageSize {
			return LoadBlank, nil
		}
		if size > threshold {
			return Loaded, nil
		}
		d.sleep(ctx, pollInterval)
	}
	return LoadTimedOut, nil
}
