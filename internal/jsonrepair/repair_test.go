package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "clean object",
			in:   `{"a": 1, "b": "two"}`,
			want: map[string]any{"a": float64(1), "b": "two"},
		},
		{
			name: "fenced json block",
			in:   "```json\n{\"a\": true}\n```",
			want: map[string]any{"a": true},
		},
		{
			name: "fence without language tag",
			in:   "```\n{\"a\": null}\n```",
			want: map[string]any{"a": nil},
		},
		{
			name: "prose around the object",
			in:   "Here is the mapping you asked for:\n{\"x\": 2}\nLet me know if you need anything else.",
			want: map[string]any{"x": float64(2)},
		},
		{
			name: "trailing comma recovered",
			in:   `{"a": 1, "b": 2,}`,
			want: map[string]any{"a": float64(1), "b": float64(2)},
		},
		{
			name: "line comment recovered",
			in:   "{\n  // copied from the rent roll\n  \"a\": 1\n}",
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "bare grouped number quoted",
			in:   "```json\n{\"Net Rentals SF\": 111,625,\n\"Floors\": 4}\n```",
			want: map[string]any{"Net Rentals SF": "111,625", "Floors": float64(4)},
		},
		{
			name: "negative grouped number with decimals",
			in:   `{"Adjustment": -1,234.56}`,
			want: map[string]any{"Adjustment": "-1,234.56"},
		},
		{
			name: "grouped number closes the object",
			in:   `{"Total SF": 1,234,567}`,
			want: map[string]any{"Total SF": "1,234,567"},
		},
		{
			name: "no object at all",
			in:   "I could not find any figures in the document.",
			want: map[string]any{},
		},
		{
			name: "empty input",
			in:   "",
			want: map[string]any{},
		},
		{
			name: "unclosed brace",
			in:   `{"a": 1`,
			want: map[string]any{},
		},
		{
			name: "top-level array rejected",
			in:   `[1, 2, 3]`,
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lenient(tt.in)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFence(`  {"a":1}  `))
	// A fence inside the payload is left alone; only the outer wrapper goes.
	assert.Equal(t, "{\"a\":\"``` inline\"}", StripFence("{\"a\":\"``` inline\"}"))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("  short  ", 20))
	assert.Equal(t, "abcde...", Snippet("abcdefghij", 5))
}
