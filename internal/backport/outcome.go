package backport

import "fmt"

// Outcome classifies how a backport attempt ended.
type Outcome int

const (
	// OutcomeStarted is the state of an attempt that has announced itself but
	// not yet finished. A returned Result never carries it.
	OutcomeStarted Outcome = iota
	OutcomeConflict
	OutcomePublished
	OutcomeParseFailure
	OutcomeCommandFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeConflict:
		return "conflict"
	case OutcomePublished:
		return "published"
	case OutcomeParseFailure:
		return "parse-failure"
	case OutcomeCommandFailure:
		return "command-failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Step names a checkpoint of the attempt.
type Step string

const (
	StepNotifyStart Step = "notify-start"
	StepPrepare     Step = "prepare"
	StepProbe       Step = "probe"
	StepBranch      Step = "branch"
	StepFetchPatch  Step = "fetch-patch"
	StepApply       Step = "apply"
	StepPublish     Step = "publish"
	StepNotifyFinal Step = "notify-final"
)

// StepError records which checkpoint failed and how the failure is classified.
type StepError struct {
	Outcome Outcome
	Step    Step
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
