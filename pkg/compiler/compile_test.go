package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const pyNamespaceDecl = ` xmlns:py="http://genshi.edgewall.org/"`

// compileSource compiles a template with a fresh default configuration,
// failing the test on any error.
func compileSource(t *testing.T, source, arguments string, mutate func(*Config)) string {
	t.Helper()
	config := DefaultConfig()
	config.LogLevel = "off"
	if mutate != nil {
		mutate(config)
	}
	c := NewWithConfig(config)
	if err := c.Load(source, LoadOptions{Identifier: "test_template"}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	code, err := c.Compile(arguments)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return code
}

// extractFunction returns the full text of one generated routine,
// trailing blank lines removed.
func extractFunction(t *testing.T, code, name string) string {
	t.Helper()
	lines := strings.Split(code, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "def "+name+"(") {
			start = i
			break
		}
	}
	if start < 0 {
		t.Fatalf("function %s not found in generated code:\n%s", name, code)
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if lines[i] != "" && !strings.HasPrefix(lines[i], " ") && !strings.HasPrefix(lines[i], "\t") {
			end = i
			break
		}
	}
	block := lines[start:end]
	for len(block) > 0 && strings.TrimSpace(block[len(block)-1]) == "" {
		block = block[:len(block)-1]
	}
	return strings.Join(block, "\n")
}

// wantFunction builds the expected text of a generated routine from its
// signature and body lines. Body lines carry only their extra nesting;
// the base function indentation is added here.
func wantFunction(signature string, body ...string) string {
	if len(body) == 0 {
		return "def " + signature + ":\n    return ''"
	}
	lines := []string{
		"def " + signature + ":",
		"    _x_markup_fragments = []",
		"    _x_append_markup = _x_markup_fragments.append",
		"",
	}
	for _, line := range body {
		lines = append(lines, "    "+line)
	}
	lines = append(lines, "", "    return ''.join(_x_markup_fragments)")
	return strings.Join(lines, "\n")
}

func TestCompileRender(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		arguments string
		config    func(*Config)
		wantBody  []string
	}{
		{
			name:   "static markup",
			source: `<html>x</html>`,
			wantBody: []string{
				`_x_append_markup('<html>x</html>')`,
			},
		},
		{
			name:      "text expression",
			source:    `<p>Hello, ${name}!</p>`,
			arguments: "name",
			wantBody: []string{
				`_x_append_markup('<p>Hello, ')`,
				`_x_append_markup(_x_escape_text(_x_to_text(name)))`,
				`_x_append_markup('!</p>')`,
			},
		},
		{
			name:      "attribute expression",
			source:    `<a href="${url}" title="Home page">x</a>`,
			arguments: "url",
			wantBody: []string{
				`_x_append_markup('<a href="')`,
				`_x_append_markup(_x_escape_attribute(_x_to_text(url)))`,
				`_x_append_markup('" title="Home page">x</a>')`,
			},
		},
		{
			name: "nested loops",
			source: `<tr` + pyNamespaceDecl + ` py:for="y in range(a,b)">` +
				`<td py:for="x in range(16)" py:content="fn(16*y+x)"/></tr>`,
			arguments: "a, b, fn",
			wantBody: []string{
				`for y in range(a,b):`,
				`    _x_append_markup('<tr>')`,
				`    for x in range(16):`,
				`        _x_append_markup('<td>')`,
				`        _x_append_markup(_x_escape_text(_x_to_text(fn(16*y+x))))`,
				`        _x_append_markup('</td>')`,
				`    _x_append_markup('</tr>')`,
			},
		},
		{
			name:      "conditional",
			source:    `<p` + pyNamespaceDecl + ` py:if="visible">shown</p>`,
			arguments: "visible",
			wantBody: []string{
				`if visible:`,
				`    _x_append_markup('<p>shown</p>')`,
			},
		},
		{
			name:   "statically true condition",
			source: `<p` + pyNamespaceDecl + ` py:if="true">shown</p>`,
			wantBody: []string{
				`_x_append_markup('<p>shown</p>')`,
			},
		},
		{
			name:   "statically false condition",
			source: `<div` + pyNamespaceDecl + `><p py:if="false">hidden</p>kept</div>`,
			wantBody: []string{
				`_x_append_markup('<div>kept</div>')`,
			},
		},
		{
			name:   "unconditional strip",
			source: `<div` + pyNamespaceDecl + `><b py:strip="">kept</b></div>`,
			wantBody: []string{
				`_x_append_markup('<div>kept</div>')`,
			},
		},
		{
			name:      "runtime strip",
			source:    `<div` + pyNamespaceDecl + ` py:strip="compact">body</div>`,
			arguments: "compact",
			wantBody: []string{
				`_x_keep_0 = not (compact)`,
				`if _x_keep_0:`,
				`    _x_append_markup('<div>')`,
				`_x_append_markup('body')`,
				`if _x_keep_0:`,
				`    _x_append_markup('</div>')`,
			},
		},
		{
			name:      "replace",
			source:    `<div` + pyNamespaceDecl + `><p py:replace="value">placeholder</p></div>`,
			arguments: "value",
			wantBody: []string{
				`_x_append_markup('<div>')`,
				`_x_append_markup(_x_escape_text(_x_to_text(value)))`,
				`_x_append_markup('</div>')`,
			},
		},
		{
			name:      "with bindings and invariant hoisting",
			source:    `<div` + pyNamespaceDecl + ` py:with="n = total + 1">${n}</div>`,
			arguments: "total",
			wantBody: []string{
				`_x_append_markup('<div>')`,
				`def _x_with_0():`,
				`    n = total + 1`,
				`    _x_append_markup(_x_escape_text(_x_to_text(n)))`,
				`_x_with_0()`,
				`_x_append_markup('</div>')`,
			},
		},
		{
			name: "choose with test expression",
			source: `<div` + pyNamespaceDecl + ` py:choose="x">` +
				`<b py:when="1">one</b><b py:when="2">two</b>` +
				`<b py:otherwise="">many</b></div>`,
			arguments: "x",
			wantBody: []string{
				`_x_append_markup('<div>')`,
				`_x_switch_0 = x`,
				`if _x_switch_0 == (1):`,
				`    _x_append_markup('<b>one</b>')`,
				`elif _x_switch_0 == (2):`,
				`    _x_append_markup('<b>two</b>')`,
				`else:`,
				`    _x_append_markup('<b>many</b>')`,
				`_x_append_markup('</div>')`,
			},
		},
		{
			name: "choose without test expression",
			source: `<div` + pyNamespaceDecl + ` py:choose="">` +
				`<b py:when="a == 1">one</b><b py:otherwise="">other</b></div>`,
			arguments: "a",
			wantBody: []string{
				`_x_append_markup('<div>')`,
				`if a == 1:`,
				`    _x_append_markup('<b>one</b>')`,
				`else:`,
				`    _x_append_markup('<b>other</b>')`,
				`_x_append_markup('</div>')`,
			},
		},
		{
			name:      "dynamic attributes",
			source:    `<td` + pyNamespaceDecl + ` py:attrs="cell_attrs">x</td>`,
			arguments: "cell_attrs",
			wantBody: []string{
				`_x_append_markup('<td')`,
				`_x_format_attributes(_x_append_markup, cell_attrs)`,
				`_x_append_markup('>x</td>')`,
			},
		},
		{
			name:   "childless element shortens",
			source: `<div><br/></div>`,
			wantBody: []string{
				`_x_append_markup('<div><br /></div>')`,
			},
		},
		{
			name:      "markup expression is not escaped",
			source:    `<div>${Markup(raw)}</div>`,
			arguments: "raw",
			wantBody: []string{
				`_x_append_markup('<div>')`,
				`_x_append_markup(raw)`,
				`_x_append_markup('</div>')`,
			},
		},
		{
			name:   "none expression renders nothing",
			source: `<div>${None}</div>`,
			wantBody: []string{
				`_x_append_markup('<div></div>')`,
			},
		},
		{
			name: "namespace declarations",
			source: `<html xmlns="http://www.w3.org/1999/xhtml"` +
				pyNamespaceDecl + `>x</html>`,
			wantBody: []string{
				`_x_append_markup('<html xmlns="http://www.w3.org/1999/xhtml">x</html>')`,
			},
		},
		{
			name:   "comments",
			source: `<div><!-- note --><!--! template comment --></div>`,
			wantBody: []string{
				`_x_append_markup('<div><!-- note --></div>')`,
			},
		},
		{
			name:   "removed comments",
			source: `<div><!-- note -->x</div>`,
			config: func(c *Config) { c.RemoveComments = true },
			wantBody: []string{
				`_x_append_markup('<div>x</div>')`,
			},
		},
		{
			name:      "processed comments",
			source:    `<div><!-- ${x} --></div>`,
			arguments: "x",
			config:    func(c *Config) { c.ProcessComments = true },
			wantBody: []string{
				`_x_append_markup('<div><!-- ')`,
				`_x_append_markup(_x_escape_text(_x_to_text(x)))`,
				`_x_append_markup(' --></div>')`,
			},
		},
		{
			name:   "embedded code",
			source: `<div><?python counter = base * 2?>${counter}</div>`,
			wantBody: []string{
				`_x_append_markup('<div>')`,
				`counter = base * 2`,
				`_x_append_markup(_x_escape_text(_x_to_text(counter)))`,
				`_x_append_markup('</div>')`,
			},
		},
		{
			name:   "constant text is escaped at compile time",
			source: `<p>a &lt; b &amp; c</p>`,
			wantBody: []string{
				`_x_append_markup('<p>a &lt; b &amp; c</p>')`,
			},
		},
		{
			name: "whitespace reduction",
			source: "<ul" + pyNamespaceDecl + ">\n" +
				"    <li py:for=\"item in items\">${item}</li>\n</ul>",
			arguments: "items",
			config:    func(c *Config) { c.ReduceWhitespace = true },
			wantBody: []string{
				`_x_append_markup('<ul>\n')`,
				`for item in items:`,
				`    _x_append_markup('<li>')`,
				`    _x_append_markup(_x_escape_text(_x_to_text(item)))`,
				`    _x_append_markup('</li>')`,
				`_x_append_markup('\n</ul>')`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := compileSource(t, tt.source, tt.arguments, tt.config)
			signature := "render(" + tt.arguments + ")"
			want := wantFunction(signature, tt.wantBody...)
			got := extractFunction(t, code, "render")
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("render routine mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileWithoutOptimization(t *testing.T) {
	code := compileSource(t, `<p>x</p>`, "", func(c *Config) {
		c.OptimizeGeneratedCode = false
	})
	want := wantFunction("render()",
		`_x_append_markup('<p')`,
		`_x_append_markup('>')`,
		`_x_append_markup('x')`,
		`_x_append_markup('</p>')`,
	)
	got := extractFunction(t, code, "render")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render routine mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileConstantAttributeWithoutOptimization(t *testing.T) {
	source := `<p class="big &amp; bold" id="${key}">x</p>`
	code := compileSource(t, source, "key", func(c *Config) {
		c.OptimizeGeneratedCode = false
	})
	want := wantFunction("render(key)",
		`_x_append_markup('<p')`,
		`_x_append_markup(' class="big &amp; bold"')`,
		`_x_append_markup(' id="')`,
		`_x_append_markup(_x_escape_attribute(_x_to_text(key)))`,
		`_x_append_markup('"')`,
		`_x_append_markup('>')`,
		`_x_append_markup('x')`,
		`_x_append_markup('</p>')`,
	)
	got := extractFunction(t, code, "render")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render routine mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileXHTMLShortElements(t *testing.T) {
	config := DefaultConfig()
	config.LogLevel = "off"
	c := NewWithConfig(config)
	source := `<html><br/><div/><img src="x"/></html>`
	if err := c.Load(source, LoadOptions{Standard: StandardXHTML}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	code, err := c.Compile("")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	want := wantFunction("render()",
		`_x_append_markup('<html><br /><div></div><img src="x" /></html>')`,
	)
	got := extractFunction(t, code, "render")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render routine mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileTemplateFunctions(t *testing.T) {
	source := `<div` + pyNamespaceDecl + `><p py:def="para">text</p>${para()}</div>`

	t.Run("definition renders in place", func(t *testing.T) {
		code := compileSource(t, source, "", nil)

		wantRender := wantFunction("render()",
			`_x_append_markup('<div><p>text</p>')`,
			`_x_append_markup(para())`,
			`_x_append_markup('</div>')`,
		)
		if diff := cmp.Diff(wantRender, extractFunction(t, code, "render")); diff != "" {
			t.Errorf("render routine mismatch (-want +got):\n%s", diff)
		}

		wantPara := wantFunction("para()",
			`_x_append_markup('<p>text</p>')`,
		)
		if diff := cmp.Diff(wantPara, extractFunction(t, code, "para")); diff != "" {
			t.Errorf("para routine mismatch (-want +got):\n%s", diff)
		}

		if strings.Index(code, "def para(") > strings.Index(code, "def render(") {
			t.Error("template functions should be defined before the render routine")
		}
	})

	t.Run("strict mode skips the definition site", func(t *testing.T) {
		code := compileSource(t, source, "", func(c *Config) {
			c.DefRendersInPlace = false
		})

		wantRender := wantFunction("render()",
			`_x_append_markup('<div>')`,
			`_x_append_markup(para())`,
			`_x_append_markup('</div>')`,
		)
		if diff := cmp.Diff(wantRender, extractFunction(t, code, "render")); diff != "" {
			t.Errorf("render routine mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCompileFunctionSignature(t *testing.T) {
	// A def without a parameter list gets an empty one appended.
	source := `<p` + pyNamespaceDecl + ` py:def="footer">f</p>`
	code := compileSource(t, source, "", nil)
	if !strings.Contains(code, "def footer():") {
		t.Errorf("expected def footer(): in generated code:\n%s", code)
	}

	source = `<p` + pyNamespaceDecl + ` py:def="greet(name='World')">Hello, ${name}!</p>`
	code = compileSource(t, source, "", nil)
	if !strings.Contains(code, "def greet(name='World'):") {
		t.Errorf("expected def greet(name='World'): in generated code:\n%s", code)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		wantKind DirectiveErrorKind
	}{
		{
			name:     "orphan when",
			source:   `<div` + pyNamespaceDecl + `><b py:when="1">x</b></div>`,
			wantKind: ErrOrphanWhen,
		},
		{
			name:     "orphan otherwise",
			source:   `<div` + pyNamespaceDecl + `><b py:otherwise="">x</b></div>`,
			wantKind: ErrOrphanWhen,
		},
		{
			name: "second otherwise in one choose",
			source: `<div` + pyNamespaceDecl + ` py:choose="x">` +
				`<b py:otherwise="">a</b><b py:otherwise="">b</b></div>`,
			wantKind: ErrOrphanWhen,
		},
		{
			name: "duplicate function name",
			source: `<div` + pyNamespaceDecl + `>` +
				`<p py:def="f()">a</p><p py:def="f()">b</p></div>`,
			wantKind: ErrDuplicateFunctionName,
		},
		{
			name:     "function name clashes with the entry point",
			source:   `<p` + pyNamespaceDecl + ` py:def="render()">x</p>`,
			wantKind: ErrDuplicateFunctionName,
		},
		{
			name:     "unterminated expression",
			source:   `<p>${broken</p>`,
			wantKind: ErrUnbalancedExpressionDelimiter,
		},
		{
			name:     "empty for directive",
			source:   `<p` + pyNamespaceDecl + ` py:for="">x</p>`,
			wantKind: ErrMissingParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.LogLevel = "off"
			c := NewWithConfig(config)
			if err := c.Load(tt.source, LoadOptions{}); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			_, err := c.Compile("")
			if err == nil {
				t.Fatal("Compile should have failed")
			}
			var directiveErr *DirectiveError
			if !errors.As(err, &directiveErr) {
				t.Fatalf("expected a DirectiveError, got %T: %v", err, err)
			}
			if directiveErr.Kind != tt.wantKind {
				t.Errorf("error kind = %v, want %v (%v)", directiveErr.Kind, tt.wantKind, err)
			}
		})
	}
}

func TestCompileModuleHeader(t *testing.T) {
	config := DefaultConfig()
	config.LogLevel = "off"
	c := NewWithConfig(config)
	if err := c.Load(`<html/>`, LoadOptions{Filename: "pages/home.xml"}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	code, err := c.Compile("")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !strings.HasPrefix(code, "#!/usr/bin/python3\n") {
		t.Error("generated module should start with the interpreter line")
	}
	if !strings.Contains(code, "pages/home.xml") {
		t.Error("generated module header should name the template file")
	}
	for _, helper := range []string{
		"_x_escape_text", "_x_escape_attribute",
		"_x_format_attributes", "_x_gettext",
	} {
		if !strings.Contains(code, helper) {
			t.Errorf("generated module should define %s", helper)
		}
	}
	if strings.HasSuffix(code, "\n\n") || !strings.HasSuffix(code, "\n") {
		t.Error("generated module should end with exactly one newline")
	}
}
