package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/pagefetch/models"
)

// errEmptyPath is returned for a step that names no selector.
var errEmptyPath = errors.New("action path is empty")

// stepOutcome distinguishes a performed step from a tolerated timeout.
type stepOutcome int

const (
	stepDone stepOutcome = iota
	stepSkipped
)

// ActionReport summarizes a successful run.
type ActionReport struct {
	// Done counts steps whose element was resolved and acted on.
	Done int
	// Skipped lists the indexes of steps whose element never appeared.
	Skipped []int
}

// Executor runs interaction steps against a live page.
type Executor struct{}

// NewExecutor returns an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Run executes steps strictly in order. A resolution timeout skips the step;
// any other failure stops the run and is returned as an ACTION_FAILED
// FetchError naming the step.
func (e *Executor) Run(ctx context.Context, drv Driver, steps []models.Action) (ActionReport, error) {
	var report ActionReport
	for i, step := range steps {
		outcome, err := e.runStep(ctx, drv, step)
		if err != nil {
			LoggerFrom(ctx).Warn("action failed",
				"index", i, "trigger", step.Trigger, "selector", step.Selector.String(), "error", err)
			return report, models.NewFetchError(
				models.ErrCodeActionFailed,
				fmt.Sprintf("action %d (%s %s) failed after %d completed", i, step.Trigger, step.Selector, report.Done),
				err,
			)
		}
		switch outcome {
		case stepSkipped:
			report.Skipped = append(report.Skipped, i)
		default:
			report.Done++
		}
	}
	return report, nil
}

func (e *Executor) runStep(ctx context.Context, drv Driver, step models.Action) (stepOutcome, error) {
	if step.Selector.Empty() {
		return stepDone, errEmptyPath
	}
	switch step.Trigger {
	case models.TriggerClickable, models.TriggerInput, models.TriggerLocated:
	default:
		return stepDone, fmt.Errorf("unknown trigger %q", step.Trigger)
	}

	el, err := drv.Find(ctx, step.Selector, step.Timeout)
	if errors.Is(err, ErrElementNotFound) {
		if step.Trigger == models.TriggerClickable {
			LoggerFrom(ctx).Info("clickable element not found, skipping",
				"selector", step.Selector.String(), "timeout", step.Timeout)
		}
		return stepSkipped, nil
	}
	if err != nil {
		return stepDone, fmt.Errorf("resolve %s: %w", step.Selector, err)
	}
	if step.Trigger == models.TriggerLocated {
		// Resolution alone is the barrier.
		return stepDone, nil
	}

	// The interaction shares the step's bound: an element that stays covered
	// or disabled is treated like one that never appeared.
	actCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	if step.Trigger == models.TriggerClickable {
		err = el.Click(actCtx)
	} else {
		err = el.SendKeys(actCtx, step.Value)
	}
	switch {
	case err == nil:
		if step.Trigger == models.TriggerClickable {
			LoggerFrom(ctx).Debug("clicked element", "selector", step.Selector.String())
		}
		return stepDone, nil
	case errors.Is(err, ErrElementNotFound), errors.Is(err, context.DeadlineExceeded):
		LoggerFrom(ctx).Info("element not interactable in time, skipping",
			"trigger", step.Trigger, "selector", step.Selector.String(), "timeout", step.Timeout, "error", err)
		return stepSkipped, nil
	case step.Trigger == models.TriggerClickable:
		return stepDone, fmt.Errorf("click %s: %w", step.Selector, err)
	default:
		return stepDone, fmt.Errorf("send keys to %s: %w", step.Selector, err)
	}
}
