package compiler

import (
	"fmt"
	"strings"
)

// directiveKind enumerates the supported directives. The declaration order
// is the fixed application order, outermost first: whenever several
// directives appear on one element they nest in this order regardless of
// how the attributes were written in the source.
type directiveKind int

const (
	dirDef directiveKind = iota
	dirFor
	dirChoose
	dirWhen
	dirOtherwise
	dirIf
	dirWith
	dirReplace
	dirContent
	dirAttrs
	dirStrip
	dirI18nMsg
)

func (k directiveKind) String() string {
	switch k {
	case dirDef:
		return "py:def"
	case dirFor:
		return "py:for"
	case dirChoose:
		return "py:choose"
	case dirWhen:
		return "py:when"
	case dirOtherwise:
		return "py:otherwise"
	case dirIf:
		return "py:if"
	case dirWith:
		return "py:with"
	case dirReplace:
		return "py:replace"
	case dirContent:
		return "py:content"
	case dirAttrs:
		return "py:attrs"
	case dirStrip:
		return "py:strip"
	case dirI18nMsg:
		return "i18n:msg"
	default:
		return "unknown"
	}
}

// directive is one recognized directive with its raw, unevaluated
// parameter text.
type directive struct {
	Kind  directiveKind
	Value string
	Line  int
}

var directiveAttributes = map[string]directiveKind{
	"def":       dirDef,
	"for":       dirFor,
	"choose":    dirChoose,
	"when":      dirWhen,
	"otherwise": dirOtherwise,
	"if":        dirIf,
	"with":      dirWith,
	"replace":   dirReplace,
	"content":   dirContent,
	"attrs":     dirAttrs,
	"strip":     dirStrip,
}

// elementDirectives maps the element form of a directive to the attribute
// carrying its parameter text. Directives without parameters map to the
// empty string.
var elementDirectives = map[string]string{
	"def":       "function",
	"for":       "each",
	"if":        "test",
	"choose":    "test",
	"when":      "test",
	"otherwise": "",
	"with":      "vars",
}

// recognizeDirectives partitions an element's attributes into recognized
// directives and ordinary output attributes. The directive list comes back
// sorted into application order, outermost first. Parameter text is
// extracted unevaluated. For the element form of a directive the element's
// own tag contributes the directive and the element emits no tags of its
// own; isDirectiveElement reports that case.
func recognizeDirectives(el *Element) (directives []directive, plain []Attr, isDirectiveElement bool, err error) {
	switch el.Name.Space {
	case genshiNamespace:
		kind, ok := directiveAttributes[el.Name.Local]
		paramAttr, elementForm := elementDirectives[el.Name.Local]
		if !ok || !elementForm {
			return nil, nil, false, NewDirectiveError(
				ErrUnsupportedDirective,
				fmt.Sprintf("<py:%s> is not supported", el.Name.Local), el.Line)
		}
		value := ""
		if paramAttr != "" {
			v, found := el.attr("", paramAttr)
			if !found {
				return nil, nil, false, NewDirectiveError(
					ErrMissingParameter,
					fmt.Sprintf("missing %s attribute of <py:%s>", paramAttr, el.Name.Local),
					el.Line)
			}
			value = strings.TrimSpace(v)
		}
		directives = append(directives, directive{Kind: kind, Value: value, Line: el.Line})
		isDirectiveElement = true

	case xincludeNamespace:
		return nil, nil, false, NewDirectiveError(
			ErrUnsupportedDirective,
			fmt.Sprintf("<xi:%s> is not supported", el.Name.Local), el.Line)
	}

	seen := make(map[directiveKind]bool, len(directives))
	for _, d := range directives {
		seen[d.Kind] = true
	}

	for _, attr := range el.Attrs {
		switch attr.Name.Space {
		case genshiNamespace:
			kind, ok := directiveAttributes[attr.Name.Local]
			if !ok {
				if attr.Name.Local == "match" {
					return nil, nil, false, NewDirectiveError(
						ErrUnsupportedDirective, "py:match is not supported", el.Line)
				}
				return nil, nil, false, NewDirectiveError(
					ErrUnknownDirective,
					fmt.Sprintf("unknown directive py:%s", attr.Name.Local), el.Line)
			}
			if seen[kind] {
				return nil, nil, false, NewDirectiveError(
					ErrDuplicateDirective,
					fmt.Sprintf("duplicate directive %s", kind), el.Line)
			}
			seen[kind] = true
			directives = append(directives, directive{
				Kind:  kind,
				Value: strings.TrimSpace(attr.Value),
				Line:  el.Line,
			})

		case i18nNamespace:
			if attr.Name.Local != "msg" {
				return nil, nil, false, NewDirectiveError(
					ErrUnknownDirective,
					fmt.Sprintf("unknown directive i18n:%s", attr.Name.Local), el.Line)
			}
			if seen[dirI18nMsg] {
				return nil, nil, false, NewDirectiveError(
					ErrDuplicateDirective, "duplicate directive i18n:msg", el.Line)
			}
			seen[dirI18nMsg] = true
			directives = append(directives, directive{
				Kind:  dirI18nMsg,
				Value: strings.TrimSpace(attr.Value),
				Line:  el.Line,
			})

		case xincludeNamespace:
			return nil, nil, false, NewDirectiveError(
				ErrUnsupportedDirective,
				fmt.Sprintf("xi:%s is not supported", attr.Name.Local), el.Line)

		default:
			if isDirectiveElement {
				// Parameter attributes of the element form carry no output.
				continue
			}
			plain = append(plain, attr)
		}
	}

	sortDirectives(directives)
	return directives, plain, isDirectiveElement, nil
}

// sortDirectives orders directives into the fixed application order. The
// list is tiny, so a stable insertion sort keeps it simple.
func sortDirectives(directives []directive) {
	for i := 1; i < len(directives); i++ {
		for j := i; j > 0 && directives[j].Kind < directives[j-1].Kind; j-- {
			directives[j], directives[j-1] = directives[j-1], directives[j]
		}
	}
}
