package compiler

import (
	"fmt"
	"strings"
)

// codeLine is one generated source line at an indentation depth.
type codeLine struct {
	depth int
	code  string
}

// Header of the generated Python modules. The escaping and attribute
// formatting helpers are a correctness contract shared with the compile
// time escaping of constants; the header comment and its regenerate
// warning are part of the output format.
const moduleHeaderTemplate = `#!/usr/bin/python3
# -*- coding: utf-8 -*-

""" Generated template rendering code

WARNING: This is automatically generated source code!
WARNING: Do NOT modify this file by hand or YOUR CHANGES WILL BE LOST!

Modify the following XML template file instead:

%(template_filename)s

Then don't forget to regenerate this module.

"""

import xml.sax.saxutils

# Translator installed by the caller; None renders untranslated
gettext_translator = None

# Converts any object to text
_x_to_text = str

# XML escaping for text content
_x_escape_text = xml.sax.saxutils.escape

def _x_escape_attribute(value, quoteattr=xml.sax.saxutils.quoteattr):
    """ Escapes an XML attribute value
    """
    return quoteattr("'" + value)[2:-1]

def _x_format_attributes(_x_append_markup, attributes):
    """ Emits dynamic attributes at runtime
    """
    for attribute_name, attribute_value in attributes.items():
        if attribute_value is not None:
            _x_append_markup(' %s="%s"' % (
                attribute_name, _x_escape_attribute(_x_to_text(attribute_value))))

def _x_gettext(message):
    """ Translates a message if a translator is installed
    """
    if gettext_translator is None:
        return message
    return gettext_translator.gettext(message)
`

// generator renders the optimized instruction tree into module source
// text. The numbered helper variables it introduces are counted per
// module, so regenerating a template is deterministic.
type generator struct {
	config      *Config
	filename    string
	switchCount int
	withCount   int
	keepCount   int
}

func newGenerator(config *Config, filename string) *generator {
	return &generator{config: config, filename: filename}
}

func (g *generator) generate(module *ModuleBlock) string {
	header := strings.ReplaceAll(moduleHeaderTemplate, "%(template_filename)s", g.filename)

	var lines []codeLine
	for _, line := range strings.Split(header, "\n") {
		lines = append(lines, codeLine{0, line})
	}

	for _, child := range module.Children() {
		lines = append(lines, codeLine{0, ""})
		lines = append(lines, g.formatBlock(child, 0)...)
	}

	lines = reduceBlankLines(lines)

	var sb strings.Builder
	for _, line := range lines {
		if line.code != "" {
			sb.WriteString(strings.Repeat(g.config.Indentation, line.depth))
			sb.WriteString(line.code)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func (g *generator) formatBlock(b Block, depth int) []codeLine {
	switch block := b.(type) {

	case *LiteralBlock:
		return []codeLine{{depth, "_x_append_markup(" + pyRepr(block.Markup) + ")"}}

	case *TextExprBlock:
		return []codeLine{{depth, "_x_append_markup(_x_escape_text(_x_to_text(" + block.Expr + ")))"}}

	case *AttrExprBlock:
		return []codeLine{{depth, "_x_append_markup(_x_escape_attribute(_x_to_text(" + block.Expr + ")))"}}

	case *MarkupExprBlock:
		return []codeLine{{depth, "_x_append_markup(" + block.Expr + ")"}}

	case *DynamicAttrsBlock:
		return []codeLine{{depth, "_x_format_attributes(_x_append_markup, " + block.Expr + ")"}}

	case *StaticCodeBlock:
		return staticCodeLines(block.Code, depth)

	case *MessageBlock:
		return []codeLine{{depth, g.formatMessage(block)}}

	case *FunctionBlock:
		return g.formatFunction(block, depth)

	case *LoopBlock:
		lines := []codeLine{{depth, "for " + block.Each + ":"}}
		return append(lines, g.formatBody(block, depth+1)...)

	case *CondBlock:
		lines := []codeLine{{depth, "if " + block.Test + ":"}}
		return append(lines, g.formatBody(block, depth+1)...)

	case *WithBlock:
		name := fmt.Sprintf("_x_with_%d", g.withCount)
		g.withCount++
		lines := []codeLine{
			{depth, "def " + name + "():"},
			{depth + 1, block.Vars},
		}
		lines = append(lines, g.formatChildren(block, depth+1)...)
		return append(lines, codeLine{depth, name + "()"})

	case *SwitchBlock:
		return g.formatSwitch(block, depth)

	case *ElementBlock:
		return g.formatStrippableElement(block, depth)

	default:
		return g.formatChildren(b, depth)
	}
}

func (g *generator) formatChildren(b Block, depth int) []codeLine {
	var lines []codeLine
	for _, child := range b.Children() {
		lines = append(lines, g.formatBlock(child, depth)...)
	}
	return lines
}

// formatBody formats a suite that must not be empty in the generated
// language.
func (g *generator) formatBody(b Block, depth int) []codeLine {
	lines := g.formatChildren(b, depth)
	if len(lines) == 0 {
		return []codeLine{{depth, "pass"}}
	}
	return lines
}

func (g *generator) formatFunction(fn *FunctionBlock, depth int) []codeLine {
	body := g.formatChildren(fn, depth+1)
	if len(body) == 0 {
		return []codeLine{
			{depth, "def " + fn.Signature + ":"},
			{depth + 1, "return ''"},
		}
	}

	lines := []codeLine{
		{depth, "def " + fn.Signature + ":"},
		{depth + 1, "_x_markup_fragments = []"},
		{depth + 1, "_x_append_markup = _x_markup_fragments.append"},
		{depth + 1, ""},
	}
	lines = append(lines, body...)
	lines = append(lines,
		codeLine{depth + 1, ""},
		codeLine{depth + 1, "return ''.join(_x_markup_fragments)"})
	return lines
}

// formatSwitch renders a choose scope as an if/elif/else chain. The case
// and otherwise branches are collected from the live subtree; content
// between them never renders, matching the source language.
func (g *generator) formatSwitch(sw *SwitchBlock, depth int) []codeLine {
	cases, otherwise := collectCases(sw)

	if len(cases) == 0 {
		if otherwise != nil {
			return g.formatChildren(otherwise, depth)
		}
		return nil
	}

	var lines []codeLine
	variable := ""
	if strings.TrimSpace(sw.Test) != "" {
		variable = fmt.Sprintf("_x_switch_%d", g.switchCount)
		g.switchCount++
		lines = append(lines, codeLine{depth, variable + " = " + strings.TrimSpace(sw.Test)})
	}

	for i, c := range cases {
		statement := "if"
		if i > 0 {
			statement = "elif"
		}
		condition := c.Test
		if variable != "" {
			condition = variable + " == (" + c.Test + ")"
		}
		lines = append(lines, codeLine{depth, statement + " " + condition + ":"})
		lines = append(lines, g.formatBody(c, depth+1)...)
	}

	if otherwise != nil {
		lines = append(lines, codeLine{depth, "else:"})
		lines = append(lines, g.formatBody(otherwise, depth+1)...)
	}
	return lines
}

// collectCases gathers the case and otherwise blocks belonging to a
// switch from its subtree, in document order, without descending into
// nested switch scopes.
func collectCases(sw *SwitchBlock) (cases []*CaseBlock, otherwise *OtherwiseBlock) {
	var walk func(blocks []Block)
	walk = func(blocks []Block) {
		for _, b := range blocks {
			switch block := b.(type) {
			case *SwitchBlock:
				// Nested scope owns its own cases.
			case *CaseBlock:
				cases = append(cases, block)
			case *OtherwiseBlock:
				if otherwise == nil {
					otherwise = block
				}
			case *ElementBlock:
				if block.OpenTag != nil {
					walk(block.OpenTag.Children())
				}
				walk(block.Children())
				if block.CloseTag != nil {
					walk(block.CloseTag.Children())
				}
			default:
				walk(b.Children())
			}
		}
	}
	walk(sw.Children())
	return cases, otherwise
}

// formatStrippableElement renders an element whose tags are conditioned
// on a runtime strip expression. The children render unconditionally.
func (g *generator) formatStrippableElement(el *ElementBlock, depth int) []codeLine {
	if el.StripExpr == "" {
		var lines []codeLine
		if el.OpenTag != nil {
			lines = append(lines, g.formatChildren(el.OpenTag, depth)...)
		}
		lines = append(lines, g.formatChildren(el, depth)...)
		if el.CloseTag != nil {
			lines = append(lines, g.formatChildren(el.CloseTag, depth)...)
		}
		return lines
	}

	variable := fmt.Sprintf("_x_keep_%d", g.keepCount)
	g.keepCount++

	lines := []codeLine{{depth, variable + " = not (" + el.StripExpr + ")"}}

	if el.OpenTag != nil {
		lines = append(lines, codeLine{depth, "if " + variable + ":"})
		lines = append(lines, g.formatBody(el.OpenTag, depth+1)...)
	}
	lines = append(lines, g.formatChildren(el, depth)...)
	if el.CloseTag != nil {
		lines = append(lines, codeLine{depth, "if " + variable + ":"})
		lines = append(lines, g.formatBody(el.CloseTag, depth+1)...)
	}
	return lines
}

// formatMessage renders a translatable message call site: the format
// string goes through the translator hook, then the placeholder values
// are substituted and the result is escaped as text content.
func (g *generator) formatMessage(message *MessageBlock) string {
	expr := "_x_gettext(" + pyRepr(message.Format) + ")"

	if len(message.Values) > 0 {
		if len(message.Params) > 0 {
			pairs := make([]string, len(message.Values))
			for i, value := range message.Values {
				pairs[i] = pyRepr(message.Params[i]) + ": _x_to_text(" + value + ")"
			}
			expr += " % {" + strings.Join(pairs, ", ") + "}"
		} else {
			converted := make([]string, len(message.Values))
			for i, value := range message.Values {
				converted[i] = "_x_to_text(" + value + ")"
			}
			tuple := strings.Join(converted, ", ")
			if len(converted) == 1 {
				tuple += ","
			}
			expr += " % (" + tuple + ")"
		}
	}

	return "_x_append_markup(_x_escape_text(" + expr + "))"
}

// staticCodeLines splits embedded code from a processing instruction into
// lines, dropping the common leading indentation.
func staticCodeLines(code string, depth int) []codeLine {
	raw := strings.Split(code, "\n")

	common := -1
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || indent < common {
			common = indent
		}
	}
	if common < 0 {
		common = 0
	}

	var lines []codeLine
	for _, line := range raw {
		line = strings.TrimRight(line, " \t\r")
		if len(line) >= common {
			line = line[common:]
		} else {
			line = strings.TrimLeft(line, " \t")
		}
		lines = append(lines, codeLine{depth, line})
	}

	// Trim blank lines at both ends of the embedded code.
	for len(lines) > 0 && lines[0].code == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1].code == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// reduceBlankLines collapses runs of blank lines into single ones.
func reduceBlankLines(lines []codeLine) []codeLine {
	if len(lines) < 2 {
		return lines
	}
	reduced := lines[:1]
	for _, line := range lines[1:] {
		if strings.TrimSpace(line.code) == "" &&
			strings.TrimSpace(reduced[len(reduced)-1].code) == "" {
			continue
		}
		reduced = append(reduced, line)
	}
	return reduced
}

// pyRepr formats a string as a Python single quoted literal.
func pyRepr(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\x%02x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
