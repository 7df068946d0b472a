// Package pipeline runs an ordered chain of fallible steps, stopping at the
// first one that fails. Each step that ran leaves a StepRecord; steps after
// a failure leave nothing.
package pipeline

import (
	"context"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// Step is one stage of a pipeline. Run returns a short detail for the
// record on success.
type Step struct {
	Name model.StepName
	Run  func(ctx context.Context) (detail string, err error)
}

// Event is delivered to an Observer around each step. Record is nil when
// the step is about to start.
type Event struct {
	Step   model.StepName
	Record *model.StepRecord
}

// Observer is notified before and after each step.
type Observer func(Event)

// Result is the outcome of Run.
type Result struct {
	Records  []model.StepRecord
	ExitCode model.ExitCode

	// Err is the error of the failing step, nil on success.
	Err error
}

// Run executes steps in order. A step returning a *model.CLIError fails the
// pipeline with that error's code; any other error fails it with
// ExitGeneralError. A cancelled context stops the pipeline before the next
// step starts.
func Run(ctx context.Context, observe Observer, steps ...Step) *Result {
	res := &Result{Records: make([]model.StepRecord, 0, len(steps))}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			res.ExitCode = model.ExitGeneralError
			res.Err = model.WrapCLIError(model.ExitGeneralError, "interrupted before "+step.Name.String(), err)
			return res
		}

		notify(observe, Event{Step: step.Name})

		detail, err := step.Run(ctx)
		rec := model.StepRecord{Step: step.Name, Status: model.StepSucceeded, Detail: detail}
		if err != nil {
			code := ExitCodeOf(err)
			rec.Status = model.StepFailed
			rec.ExitCode = int(code)
			rec.Detail = err.Error()
			res.Records = append(res.Records, rec)
			res.ExitCode = code
			res.Err = err
			notify(observe, Event{Step: step.Name, Record: &rec})
			return res
		}

		res.Records = append(res.Records, rec)
		notify(observe, Event{Step: step.Name, Record: &rec})
	}

	res.ExitCode = model.ExitSuccess
	return res
}

// ExitCodeOf maps err to the exit code it carries.
func ExitCodeOf(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}
	return model.CodeOf(err, model.ExitGeneralError)
}

func notify(observe Observer, ev Event) {
	if observe != nil {
		observe(ev)
	}
}
