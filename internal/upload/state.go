package upload

import (
	"time"

	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/models"
)

// Phase is the stage of the current upload attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseReading    Phase = "reading"
	PhaseDisplayed  Phase = "displayed"
	PhaseFailed     Phase = "failed"
)

// Placeholder is shown in the output region while nothing has been displayed.
const Placeholder = "Upload a file to see results here"

// State is an immutable snapshot of one page's upload slot. It only changes
// through Apply. File is never mutated after a Selected event creates it.
type State struct {
	Phase     Phase            `json:"phase" msgpack:"phase"`
	AttemptID string           `json:"attemptId,omitempty" msgpack:"attemptId,omitempty"`
	File      *models.FileInfo `json:"file,omitempty" msgpack:"file,omitempty"`
	// Content is the text of the last displayed file. Failures leave it alone.
	Content   string      `json:"content" msgpack:"content"`
	Error     string      `json:"error,omitempty" msgpack:"error,omitempty"`
	ErrorKind intake.Kind `json:"errorKind,omitempty" msgpack:"errorKind,omitempty"`

	ReadStartedAt time.Time `json:"-" msgpack:"-"`
	FinishedAt    time.Time `json:"-" msgpack:"-"`
}

// Busy reports whether the intake control should be disabled.
func (s State) Busy() bool {
	return s.Phase == PhaseValidating || s.Phase == PhaseReading
}

// Output is the text for the output region.
func (s State) Output() string {
	if s.Content == "" {
		return Placeholder
	}
	return s.Content
}

// Event drives a State transition.
type Event interface {
	attempt() string
}

// Selected starts a new attempt. It supersedes whatever attempt was current.
type Selected struct {
	AttemptID string
	File      models.FileInfo
}

// Rejected reports a validation failure.
type Rejected struct {
	AttemptID string
	Err       error
}

// Accepted reports that validation passed and reading began.
type Accepted struct {
	AttemptID string
	At        time.Time
}

// Loaded carries the text of a successful read.
type Loaded struct {
	AttemptID string
	Text      string
	At        time.Time
}

// ReadFailed reports a read failure.
type ReadFailed struct {
	AttemptID string
	Err       error
	At        time.Time
}

// Cleared resets the slot to idle and drops the displayed text.
type Cleared struct{}

func (e Selected) attempt() string   { return e.AttemptID }
func (e Rejected) attempt() string   { return e.AttemptID }
func (e Accepted) attempt() string   { return e.AttemptID }
func (e Loaded) attempt() string     { return e.AttemptID }
func (e ReadFailed) attempt() string { return e.AttemptID }
func (e Cleared) attempt() string    { return "" }

// Apply returns the state that follows s after e. Events for another attempt
// and events that are not valid in the current phase return s unchanged.
func (s State) Apply(e Event) State {
	switch ev := e.(type) {
	case Selected:
		if ev.AttemptID == "" {
			return s
		}
		f := ev.File
		return State{
			Phase:     PhaseValidating,
			AttemptID: ev.AttemptID,
			File:      &f,
			Content:   s.Content,
		}
	case Cleared:
		return State{Phase: PhaseIdle}
	}

	if e == nil || e.attempt() != s.AttemptID {
		return s
	}

	next := s
	switch ev := e.(type) {
	case Rejected:
		if s.Phase != PhaseValidating {
			return s
		}
		next.Phase = PhaseFailed
		next.Error, next.ErrorKind = describe(ev.Err)
	case Accepted:
		if s.Phase != PhaseValidating {
			return s
		}
		next.Phase = PhaseReading
		next.ReadStartedAt = ev.At
	case Loaded:
		if s.Phase != PhaseReading {
			return s
		}
		next.Phase = PhaseDisplayed
		next.Content = ev.Text
		next.FinishedAt = ev.At
	case ReadFailed:
		if s.Phase != PhaseReading {
			return s
		}
		next.Phase = PhaseFailed
		next.Error, next.ErrorKind = describe(ev.Err)
		next.FinishedAt = ev.At
	default:
		return s
	}
	return next
}

func describe(err error) (string, intake.Kind) {
	if err == nil {
		return "Error reading file", intake.KindRead
	}
	kind := intake.KindOf(err)
	if kind == "" {
		kind = intake.KindRead
	}
	return err.Error(), kind
}
