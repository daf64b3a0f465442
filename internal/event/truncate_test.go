package event_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ThomasRohde/ariadne/internal/event"
)

func TestTruncateString_Boundaries(t *testing.T) {
	exact := strings.Repeat("a", event.MaxNameBytes)
	assert.Equal(t, exact, event.TruncateString(exact, event.MaxNameBytes))

	over := strings.Repeat("a", event.MaxNameBytes+1)
	got := event.TruncateString(over, event.MaxNameBytes)
	assert.Len(t, got, event.MaxNameBytes+len(event.TruncationSuffix))
	assert.True(t, strings.HasSuffix(got, event.TruncationSuffix))
	assert.Equal(t, over[:event.MaxNameBytes], got[:event.MaxNameBytes])
}

func TestTruncateString_Idempotent(t *testing.T) {
	over := strings.Repeat("x", 5000)
	once := event.TruncateString(over, event.MaxNameBytes)
	twice := event.TruncateString(once, event.MaxNameBytes)
	assert.Equal(t, once, twice)
}

func TestTruncate_Name(t *testing.T) {
	e := &event.Event{Type: event.TypeTrace, TraceID: "t1", Name: strings.Repeat("n", 2048)}
	event.Truncate(e)
	assert.Len(t, e.Name, event.MaxNameBytes+len(event.TruncationSuffix))

	// Other fields are untouched.
	assert.Equal(t, "t1", e.TraceID)
	assert.Equal(t, event.TypeTrace, e.Type)
}

func TestTruncate_DataStrings(t *testing.T) {
	long := strings.Repeat("d", event.MaxDataStringBytes+10)
	e := &event.Event{
		Type:    event.TypeSpan,
		TraceID: "t1",
		SpanID:  "s1",
		Data: map[string]any{
			"short":  "fits",
			"long":   long,
			"number": float64(42),
			"flag":   true,
			"null":   nil,
			"nested": map[string]any{"inner": long},
			"list":   []any{long, float64(1)},
		},
	}
	event.Truncate(e)

	assert.Equal(t, "fits", e.Data["short"])
	assert.Len(t, e.Data["long"], event.MaxDataStringBytes+len(event.TruncationSuffix))
	assert.Equal(t, float64(42), e.Data["number"])
	assert.Equal(t, true, e.Data["flag"])
	assert.Nil(t, e.Data["null"])

	nested := e.Data["nested"].(map[string]any)
	assert.Len(t, nested["inner"], event.MaxDataStringBytes+len(event.TruncationSuffix))

	// Array elements are not individually truncated.
	list := e.Data["list"].([]any)
	assert.Len(t, list[0], len(long))
}

func TestTruncate_Idempotent(t *testing.T) {
	e := &event.Event{
		Type:    event.TypeSpan,
		TraceID: "t1",
		SpanID:  "s1",
		Name:    strings.Repeat("n", 4096),
		Data:    map[string]any{"v": strings.Repeat("d", event.MaxDataStringBytes*2)},
	}
	event.Truncate(e)
	name, val := e.Name, e.Data["v"]
	event.Truncate(e)
	assert.Equal(t, name, e.Name)
	assert.Equal(t, val, e.Data["v"])
}
