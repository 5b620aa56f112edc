package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseTemplate(t *testing.T) {
	source := `<html xmlns:py="http://genshi.edgewall.org/">
<body class="main">
text <b>bold</b>
</body>
</html>`

	result, err := parseTemplate(source, StandardXML)
	if err != nil {
		t.Fatalf("parseTemplate failed: %v", err)
	}

	root := result.root
	if root.Name.Local != "html" {
		t.Errorf("root element = %q, want html", root.Name.Local)
	}
	if root.Line != 1 {
		t.Errorf("root line = %d, want 1", root.Line)
	}

	var body *Element
	for _, child := range root.Children {
		if el, ok := child.(*Element); ok {
			body = el
			break
		}
	}
	if body == nil {
		t.Fatal("body element not found")
	}
	if body.Name.Local != "body" || body.Line != 2 {
		t.Errorf("body element = %q at line %d, want body at line 2", body.Name.Local, body.Line)
	}
	if value, ok := body.attr("", "class"); !ok || value != "main" {
		t.Errorf("class attribute = %q, %v, want main, true", value, ok)
	}
}

func TestParseTemplateNamespaceMap(t *testing.T) {
	source := `<html xmlns="http://www.w3.org/1999/xhtml"` +
		` xmlns:py="http://genshi.edgewall.org/"` +
		` xmlns:i18n="http://genshi.edgewall.org/i18n"` +
		` xmlns:svg="http://www.w3.org/2000/svg"/>`

	result, err := parseTemplate(source, StandardXML)
	if err != nil {
		t.Fatalf("parseTemplate failed: %v", err)
	}

	// The directive namespaces never reach the output.
	want := map[string]string{
		"http://www.w3.org/1999/xhtml": "",
		"http://www.w3.org/2000/svg":   "svg",
	}
	if len(result.nsmap) != len(want) {
		t.Fatalf("nsmap = %v, want %v", result.nsmap, want)
	}
	for url, prefix := range want {
		if result.nsmap[url] != prefix {
			t.Errorf("nsmap[%q] = %q, want %q", url, result.nsmap[url], prefix)
		}
	}
}

func TestParseTemplateNestedNamespaceWarning(t *testing.T) {
	var buf bytes.Buffer
	previous := GetLogger()
	SetLogger(NewLogger(&buf, LogWarn))
	defer SetLogger(previous)

	source := `<html><svg xmlns="http://www.w3.org/2000/svg"/></html>`
	result, err := parseTemplate(source, StandardXML)
	if err != nil {
		t.Fatalf("parseTemplate failed: %v", err)
	}

	// Only root declarations populate the namespace map.
	if len(result.nsmap) != 0 {
		t.Errorf("nsmap = %v, want empty", result.nsmap)
	}
	logged := buf.String()
	if !strings.Contains(logged, "[WARN]") ||
		!strings.Contains(logged, "http://www.w3.org/2000/svg") {
		t.Errorf("expected a dropped namespace warning, got %q", logged)
	}
}

func TestParseTemplateDirectiveAttributes(t *testing.T) {
	source := `<div xmlns:py="http://genshi.edgewall.org/" py:if="visible" class="x"/>`

	result, err := parseTemplate(source, StandardXML)
	if err != nil {
		t.Fatalf("parseTemplate failed: %v", err)
	}

	value, ok := result.root.attr(genshiNamespace, "if")
	if !ok || value != "visible" {
		t.Errorf("py:if attribute = %q, %v, want visible, true", value, ok)
	}
}

func TestParseTemplateXHTMLEntities(t *testing.T) {
	source := `<p>&nbsp;&copy;</p>`

	if _, err := parseTemplate(source, StandardXML); err == nil {
		t.Error("HTML entities should not resolve in xml mode")
	}
	result, err := parseTemplate(source, StandardXHTML)
	if err != nil {
		t.Fatalf("parseTemplate failed in xhtml mode: %v", err)
	}
	text, ok := result.root.Children[0].(*Text)
	if !ok {
		t.Fatalf("expected a text child, got %T", result.root.Children[0])
	}
	if text.Value != " ©" {
		t.Errorf("entity text = %q, want %q", text.Value, " ©")
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		standard string
		wantLine int
	}{
		{
			name:     "malformed markup",
			source:   "<html><p></html>",
			standard: StandardXML,
			wantLine: 1,
		},
		{
			name:     "unclosed root",
			source:   "<html>",
			standard: StandardXML,
			wantLine: 1,
		},
		{
			name:     "text outside the root",
			source:   "<html/>\njunk",
			standard: StandardXML,
			wantLine: 1,
		},
		{
			name:     "second root element",
			source:   "<a/><b/>",
			standard: StandardXML,
			wantLine: 1,
		},
		{
			name:     "empty document",
			source:   "   ",
			standard: StandardXML,
			wantLine: 1,
		},
		{
			name:     "doctype in xhtml mode",
			source:   "<!DOCTYPE html>\n<html/>",
			standard: StandardXHTML,
			wantLine: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTemplate(tt.source, tt.standard)
			if err == nil {
				t.Fatal("parseTemplate should have failed")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected a ParseError, got %T: %v", err, err)
			}
			if parseErr.Line != tt.wantLine {
				t.Errorf("error line = %d, want %d (%v)", parseErr.Line, tt.wantLine, err)
			}
		})
	}
}

func TestPrefixedName(t *testing.T) {
	nsmap := map[string]string{
		"http://www.w3.org/1999/xhtml": "",
		"http://www.w3.org/2000/svg":   "svg",
	}
	tests := []struct {
		name Name
		want string
	}{
		{Name{Local: "div"}, "div"},
		{Name{Space: "http://www.w3.org/1999/xhtml", Local: "div"}, "div"},
		{Name{Space: "http://www.w3.org/2000/svg", Local: "rect"}, "svg:rect"},
		{Name{Space: "xml", Local: "lang"}, "xml:lang"},
	}

	for _, tt := range tests {
		if got := prefixedName(nsmap, tt.name); got != tt.want {
			t.Errorf("prefixedName(%v) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseTemplateKeepsWhitespaceText(t *testing.T) {
	source := "<div>  spaced\ttext  </div>"
	result, err := parseTemplate(source, StandardXML)
	if err != nil {
		t.Fatalf("parseTemplate failed: %v", err)
	}
	text, ok := result.root.Children[0].(*Text)
	if !ok {
		t.Fatalf("expected a text child, got %T", result.root.Children[0])
	}
	if !strings.Contains(text.Value, "  spaced\ttext  ") {
		t.Errorf("text content = %q, whitespace should survive parsing", text.Value)
	}
}
