package compiler

import (
	"strings"
)

// The escaping rules are a correctness contract shared with the helpers in
// the generated module preamble: compile-time escaping of constants must
// produce exactly what the render-time helpers would.

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var attributeEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// escapeText escapes a value for text content position. Quote characters
// are never escaped in text content.
func escapeText(value string) string {
	return textEscaper.Replace(value)
}

// escapeAttribute escapes a value for a double quoted attribute position.
// Single quotes are left alone; attributes are always emitted double
// quoted, so only the double quote needs escaping.
func escapeAttribute(value string) string {
	return attributeEscaper.Replace(value)
}
