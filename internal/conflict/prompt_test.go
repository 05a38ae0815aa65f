package conflict

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolePrompter_Ask(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		retries int
		want    Action
		wantErr string
	}{
		{"first answer", "s\n", 3, ActionSkip, ""},
		{"case insensitive", "  I \n", 3, ActionIgnore, ""},
		{"retries until valid", "x\nr\na\n", 3, ActionAbort, ""},
		{"answer without newline", "i", 3, ActionIgnore, ""},
		{"exhausted", "x\ny\nz\nq\n", 3, 0, "no valid answer after 3 attempts"},
		{"end of input", "x\n", 3, 0, "no valid answer before end of input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewConsolePrompter(strings.NewReader(tt.input), &out, tt.retries)

			got, err := p.Ask(context.Background(), DefaultQuestion, []Action{ActionAbort, ActionSkip, ActionIgnore})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsolePrompter_Output(t *testing.T) {
	var out bytes.Buffer
	p := NewConsolePrompter(strings.NewReader("x\ns\n"), &out, 0)

	_, err := p.Ask(context.Background(), "Proceed?", []Action{ActionAbort, ActionSkip})
	require.NoError(t, err)

	options := "[abort (a), skip/remove candidate (s)] "
	assert.Equal(t, "Proceed? "+options+options, out.String())
}

func TestConsolePrompter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewConsolePrompter(strings.NewReader("s\n"), &bytes.Buffer{}, 3)
	_, err := p.Ask(ctx, DefaultQuestion, []Action{ActionSkip})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"interactive": Interactive,
		"IGNORE":      IgnoreAllConflicts,
		" reject ":    RejectOnConflict,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("replace")
	assert.Error(t, err)
}

func TestParseWarning(t *testing.T) {
	for _, w := range AllWarnings() {
		got, err := ParseWarning(w.Name())
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	got, err := ParseWarning("Missing Landing Time")
	require.NoError(t, err)
	assert.Equal(t, MissingLandingTime, got)

	_, err = ParseWarning("missing-towplane")
	assert.Error(t, err)
}

func TestWarningSet(t *testing.T) {
	s := NewWarningSet(MissingPlane, MissingDepartureTime, MissingPilot)
	assert.Equal(t, []Warning{MissingDepartureTime, MissingPilot, MissingPlane}, s.Sorted())
	assert.Equal(t, []string{"missing departure time", "missing pilot", "missing plane"}, s.Messages())

	both := s.Intersect(NewWarningSet(MissingPilot, MissingLandingTime))
	assert.Equal(t, NewWarningSet(MissingPilot), both)
	assert.Equal(t, "missing-departure-location", MissingDepartureLocation.Name())
}
