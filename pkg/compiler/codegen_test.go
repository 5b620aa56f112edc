package compiler

import (
	"reflect"
	"testing"
)

func TestPyRepr(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "''"},
		{"plain", "'plain'"},
		{"it's", `'it\'s'`},
		{`back\slash`, `'back\\slash'`},
		{"line\nbreak", `'line\nbreak'`},
		{"tab\there", `'tab\there'`},
		{"cr\rhere", `'cr\rhere'`},
		{"bell\x07", `'bell\x07'`},
		{"unicode \u00e9\u00fc", "'unicode \u00e9\u00fc'"},
		{`<a href="x">`, `'<a href="x">'`},
	}

	for _, tt := range tests {
		if got := pyRepr(tt.input); got != tt.want {
			t.Errorf("pyRepr(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestStaticCodeLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single line",
			input: "x = 1",
			want:  []string{"x = 1"},
		},
		{
			name:  "common indentation is dropped",
			input: "\n    x = 1\n    if x:\n        x += 1\n",
			want:  []string{"x = 1", "if x:", "    x += 1"},
		},
		{
			name:  "blank edges are trimmed",
			input: "\n\nx = 1\n\n",
			want:  []string{"x = 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := staticCodeLines(tt.input, 2)
			got := make([]string, len(lines))
			for i, line := range lines {
				if line.depth != 2 {
					t.Errorf("line %d depth = %d, want 2", i, line.depth)
				}
				got[i] = line.code
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("staticCodeLines(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestReduceBlankLines(t *testing.T) {
	lines := []codeLine{
		{0, "a"},
		{0, ""},
		{0, ""},
		{0, ""},
		{0, "b"},
		{0, ""},
	}
	reduced := reduceBlankLines(lines)
	want := []codeLine{
		{0, "a"},
		{0, ""},
		{0, "b"},
		{0, ""},
	}
	if !reflect.DeepEqual(reduced, want) {
		t.Errorf("reduceBlankLines = %+v, want %+v", reduced, want)
	}
}

func TestGeneratorIndentation(t *testing.T) {
	code := compileSource(t, `<p xmlns:py="http://genshi.edgewall.org/" py:if="c">x</p>`,
		"c", func(c *Config) { c.Indentation = "\t" })

	want := "def render(c):\n" +
		"\t_x_markup_fragments = []\n" +
		"\t_x_append_markup = _x_markup_fragments.append\n" +
		"\n" +
		"\tif c:\n" +
		"\t\t_x_append_markup('<p>x</p>')\n" +
		"\n" +
		"\treturn ''.join(_x_markup_fragments)"
	got := extractFunction(t, code, "render")
	if got != want {
		t.Errorf("render routine = %q, want %q", got, want)
	}
}
