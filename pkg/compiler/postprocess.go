package compiler

import (
	"strings"
)

// Elements of the XHTML vocabulary that may be written in short form
// without a closing tag. See http://www.w3.org/TR/xhtml1/#guidelines
var shortHTMLElements = map[string]bool{
	"base":     true,
	"meta":     true,
	"link":     true,
	"hr":       true,
	"br":       true,
	"param":    true,
	"img":      true,
	"area":     true,
	"input":    true,
	"col":      true,
	"basefont": true,
	"isindex":  true,
	"frame":    true,
}

// postprocessor finalizes the instruction tree after building: it
// validates the switch structure, re-types expressions that return
// pre-escaped markup, and closes or shortens start tags according to the
// output standard.
type postprocessor struct {
	outputStandard string
	functionNames  map[string]bool
	otherwiseSeen  map[*SwitchBlock]bool
}

func postprocess(module *ModuleBlock, outputStandard string, functionNames map[string]bool) error {
	p := &postprocessor{
		outputStandard: outputStandard,
		functionNames:  functionNames,
		otherwiseSeen:  make(map[*SwitchBlock]bool),
	}
	return transformChildren(module, func(b Block) ([]Block, error) {
		return p.walk(b, nil)
	})
}

func (p *postprocessor) walk(b Block, sw *SwitchBlock) ([]Block, error) {
	switch block := b.(type) {

	case *SwitchBlock:
		sw = block

	case *CaseBlock:
		if sw == nil {
			return nil, NewDirectiveError(
				ErrOrphanWhen, "py:when directive without an enclosing py:choose", block.Pos())
		}

	case *OtherwiseBlock:
		if sw == nil {
			return nil, NewDirectiveError(
				ErrOrphanWhen, "py:otherwise directive without an enclosing py:choose", block.Pos())
		}
		if p.otherwiseSeen[sw] {
			return nil, NewDirectiveError(
				ErrOrphanWhen, "only one py:otherwise directive is allowed inside a py:choose", block.Pos())
		}
		p.otherwiseSeen[sw] = true

	case *TextExprBlock:
		if replacement, remove := p.retypeExpression(block.Expr, block.Pos()); remove {
			return nil, nil
		} else if replacement != nil {
			return []Block{replacement}, nil
		}

	case *AttrExprBlock:
		if replacement, remove := p.retypeExpression(block.Expr, block.Pos()); remove {
			return nil, nil
		} else if replacement != nil {
			return []Block{replacement}, nil
		}

	case *ElementBlock:
		p.closeStartTag(block)
	}

	err := transformChildren(b, func(child Block) ([]Block, error) {
		return p.walk(child, sw)
	})
	if err != nil {
		return nil, err
	}
	return []Block{b}, nil
}

// retypeExpression decides whether an output expression needs no escaping
// at render time: Markup() wrappers and calls to template functions
// defined in this module return markup, never plain text. A literal None
// expression collapses to no output, the way the source language renders
// None values.
func (p *postprocessor) retypeExpression(expr string, line int) (replacement Block, remove bool) {
	expr = strings.TrimSpace(expr)

	if expr == "None" {
		return nil, true
	}

	if !strings.HasSuffix(expr, ")") {
		return nil, false
	}
	open := strings.Index(expr, "(")
	if open < 0 {
		return nil, false
	}
	functionName := strings.TrimSpace(expr[:open])

	if functionName == "Markup" {
		inner := strings.TrimSpace(expr[len("Markup(") : len(expr)-1])
		return &MarkupExprBlock{leafBlock{line}, inner}, false
	}
	if p.functionNames[functionName] {
		return &MarkupExprBlock{leafBlock{line}, expr}, false
	}
	return nil, false
}

// closeStartTag finishes the start tag left open by the builder. Childless
// elements shorten to a self-closing tag, except XHTML elements outside
// the short form set, which need their explicit closing tag for browser
// compatibility.
func (p *postprocessor) closeStartTag(el *ElementBlock) {
	if el.OpenTag == nil {
		return
	}

	mustClose := len(el.Children()) > 0 ||
		(p.outputStandard == StandardXHTML &&
			!strings.Contains(el.Tag, ":") &&
			!shortHTMLElements[el.Tag])

	children := el.OpenTag.Children()
	if mustClose {
		el.OpenTag.SetChildren(append(children, newLiteralBlock(el.Pos(), ">")))
	} else {
		el.OpenTag.SetChildren(append(children, newLiteralBlock(el.Pos(), " />")))
		el.CloseTag = nil
	}
}
