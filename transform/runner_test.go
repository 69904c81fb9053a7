package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPumpStderr_DispatchesStateLines(t *testing.T) {
	var states []string
	req := Request{OnState: func(message string) { states = append(states, message) }}

	r := &Runner{}
	r.pumpStderr(strings.NewReader("STATE: +job-transforming\nSTATE: -job-transforming\n"), req)

	assert.Equal(t, []string{"+job-transforming", "-job-transforming"}, states)
}

func TestPumpStderr_DispatchesAttrLines(t *testing.T) {
	type pair struct{ name, value string }
	var got []pair
	req := Request{OnAttr: func(name, value string) { got = append(got, pair{name, value}) }}

	r := &Runner{}
	r.pumpStderr(strings.NewReader("ATTR: marker-levels=42 marker-colors=black\n"), req)

	assert.Equal(t, []pair{{"marker-levels", "42"}, {"marker-colors", "black"}}, got)
}

func TestPumpStderr_DispatchesCounterLines(t *testing.T) {
	type update struct {
		name  string
		value int
	}
	var got []update
	req := Request{OnCounter: func(name string, value int) { got = append(got, update{name, value}) }}

	r := &Runner{}
	r.pumpStderr(strings.NewReader("job-impressions-completed=3\njob-media-sheets-completed=6\n"), req)

	assert.Equal(t, []update{{"job-impressions-completed", 3}, {"job-media-sheets-completed", 6}}, got)
}

func TestPumpStderr_UnrecognizedLinesAreIgnoredNotFatal(t *testing.T) {
	req := Request{}
	r := &Runner{}
	assert.NotPanics(t, func() {
		r.pumpStderr(strings.NewReader("some unrelated diagnostic output\n"), req)
	})
}

func TestPumpStderr_NilCallbacksAreSafe(t *testing.T) {
	r := &Runner{}
	assert.NotPanics(t, func() {
		r.pumpStderr(strings.NewReader("STATE: +job-transforming\nATTR: x=y\njob-impressions-completed=1\n"), Request{})
	})
}

func TestParseAttrLine_IgnoresFieldsWithoutEquals(t *testing.T) {
	var got [][2]string
	parseAttrLine("valid=1 malformed anothervalid=2", func(name, value string) {
		got = append(got, [2]string{name, value})
	})
	assert.Equal(t, [][2]string{{"valid", "1"}, {"anothervalid", "2"}}, got)
}

func TestParseAttrLine_EmptyMessageIsNoOp(t *testing.T) {
	called := false
	parseAttrLine("", func(name, value string) { called = true })
	assert.False(t, called)
}
