package upload

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/models"
	"github.com/whenitworks/backend/internal/testutil"
)

func selected(id string) Selected {
	return Selected{AttemptID: id, File: models.FileInfo{Name: "a.ics", Size: 3}}
}

func TestState_HappyPath(t *testing.T) {
	s := State{Phase: PhaseIdle}
	assert.False(t, s.Busy())
	assert.Equal(t, Placeholder, s.Output())

	s = s.Apply(selected("a1"))
	assert.Equal(t, PhaseValidating, s.Phase)
	assert.True(t, s.Busy())
	assert.Equal(t, "a.ics", s.File.Name)

	now := time.Now()
	s = s.Apply(Accepted{AttemptID: "a1", At: now})
	assert.Equal(t, PhaseReading, s.Phase)
	assert.True(t, s.Busy())
	assert.Equal(t, now, s.ReadStartedAt)

	s = s.Apply(Loaded{AttemptID: "a1", Text: "BEGIN:VCALENDAR", At: now})
	assert.Equal(t, PhaseDisplayed, s.Phase)
	assert.False(t, s.Busy())
	assert.Equal(t, "BEGIN:VCALENDAR", s.Output())
	assert.Empty(t, s.Error)
}

func TestState_Rejected(t *testing.T) {
	verr := intake.Validate(testutil.NewSizedFile("a.txt", 1), []string{"ics"}, 10)

	s := State{Phase: PhaseIdle}.Apply(selected("a1")).Apply(Rejected{AttemptID: "a1", Err: verr})
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, intake.KindInvalidType, s.ErrorKind)
	assert.Contains(t, s.Error, "Invalid file type")
	assert.Equal(t, Placeholder, s.Output())
}

func TestState_ReadFailedKeepsPreviousContent(t *testing.T) {
	s := State{Phase: PhaseIdle}.
		Apply(selected("a1")).
		Apply(Accepted{AttemptID: "a1"}).
		Apply(Loaded{AttemptID: "a1", Text: "first"})

	s = s.Apply(selected("a2"))
	assert.Equal(t, "first", s.Content, "new selection keeps the display slot")
	assert.Empty(t, s.Error)

	s = s.Apply(Accepted{AttemptID: "a2"}).
		Apply(ReadFailed{AttemptID: "a2", Err: &intake.ReadError{Err: errors.New("io")}})
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, intake.KindRead, s.ErrorKind)
	assert.Equal(t, "Error reading file", s.Error)
	assert.Equal(t, "first", s.Output())
}

func TestState_IgnoresStaleAndInvalidEvents(t *testing.T) {
	reading := State{Phase: PhaseIdle}.Apply(selected("a1")).Apply(Accepted{AttemptID: "a1"})

	tests := []struct {
		name  string
		start State
		event Event
	}{
		{"loaded for other attempt", reading, Loaded{AttemptID: "old", Text: "x"}},
		{"read failed for other attempt", reading, ReadFailed{AttemptID: "old"}},
		{"accepted twice", reading, Accepted{AttemptID: "a1"}},
		{"rejected while reading", reading, Rejected{AttemptID: "a1", Err: intake.ErrInvalidType}},
		{"loaded while validating", State{Phase: PhaseIdle}.Apply(selected("a1")), Loaded{AttemptID: "a1"}},
		{"selected without attempt", reading, Selected{}},
		{"nil event", reading, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.start, tt.start.Apply(tt.event))
		})
	}
}

func TestState_Cleared(t *testing.T) {
	s := State{Phase: PhaseIdle}.
		Apply(selected("a1")).
		Apply(Accepted{AttemptID: "a1"}).
		Apply(Loaded{AttemptID: "a1", Text: "content"}).
		Apply(Cleared{})

	assert.Equal(t, State{Phase: PhaseIdle}, s)
	assert.Equal(t, Placeholder, s.Output())
}
