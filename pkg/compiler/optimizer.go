package compiler

import (
	"strings"
)

// The optimizer is a pure tree transform run after postprocessing. Its
// main job is the static merge: any maximal run of adjacent compile-time
// constant emissions collapses into a single literal, so the generated
// code performs one append per constant run instead of one per markup
// token. It also flattens element containers whose tags cannot be
// stripped at runtime, hoists invariant markup out of binding scopes and
// drops blocks that cannot produce output.

func optimizeModule(module *ModuleBlock, config *Config) {
	// The transform cannot fail; the error slot exists for the shared
	// transformation plumbing.
	_ = transformChildren(module, func(b Block) ([]Block, error) {
		return optimizeBlock(b, config), nil
	})
}

func optimizeBlock(b Block, config *Config) []Block {
	// Children first: every rule below sees fully optimized subtrees.
	_ = transformChildren(b, func(child Block) ([]Block, error) {
		return optimizeBlock(child, config), nil
	})

	if with, ok := b.(*WithBlock); ok {
		b = optimizeWith(with)
	}

	if literal, ok := b.(*LiteralBlock); ok && config.ReduceWhitespace {
		reduceLiteralWhitespace(literal)
	}

	// Elements whose tags render unconditionally dissolve into their
	// emission sequence, which lets the tags merge with neighboring
	// static markup.
	if element, ok := b.(*ElementBlock); ok && element.StripExpr == "" {
		var children []Block
		if element.OpenTag != nil {
			children = append(children, element.OpenTag.Children()...)
		}
		children = append(children, element.Children()...)
		if element.CloseTag != nil {
			children = append(children, element.CloseTag.Children()...)
		}
		b = newGroupBlock(element.Pos(), children...)
	}

	mergeLiterals(b)

	if group, ok := b.(*GroupBlock); ok {
		return group.Children()
	}
	if isEmptyBlock(b) {
		return nil
	}
	return []Block{b}
}

// optimizeWith pulls invariant leading and trailing children out of the
// binding scope so they can merge with surrounding markup, and collapses
// a directly nested with into a single combined assignment list.
func optimizeWith(with *WithBlock) Block {
	children := with.Children()

	var leading []Block
	for len(children) > 0 && isInvariantBlock(children[0]) {
		leading = append(leading, children[0])
		children = children[1:]
	}
	var trailing []Block
	for len(children) > 0 && isInvariantBlock(children[len(children)-1]) {
		trailing = append([]Block{children[len(children)-1]}, trailing...)
		children = children[:len(children)-1]
	}
	with.SetChildren(children)

	if len(children) == 1 {
		if inner, ok := children[0].(*WithBlock); ok {
			with.Vars = strings.TrimRight(with.Vars, ";") + "; " + inner.Vars
			with.SetChildren(inner.Children())
		}
	}

	if len(leading) == 0 && len(trailing) == 0 {
		return with
	}

	grouped := leading
	if !isEmptyBlock(with) {
		grouped = append(grouped, with)
	}
	grouped = append(grouped, trailing...)
	return newGroupBlock(with.Pos(), grouped...)
}

// mergeLiterals collides adjacent literal children into single blocks.
func mergeLiterals(b Block) {
	children := b.Children()
	if len(children) < 2 {
		return
	}

	merged := children[:1]
	for _, child := range children[1:] {
		last, lastOk := merged[len(merged)-1].(*LiteralBlock)
		next, nextOk := child.(*LiteralBlock)
		if lastOk && nextOk {
			last.Markup += next.Markup
			continue
		}
		merged = append(merged, child)
	}
	b.SetChildren(merged)
}

func reduceLiteralWhitespace(literal *LiteralBlock) {
	if literal.Markup == "" {
		return
	}
	if strings.TrimSpace(literal.Markup) == "" {
		literal.Markup = reduceWhitespaceRun(literal.Markup)
		return
	}
	head, text, tail := separateWhitespace(literal.Markup)
	literal.Markup = reduceWhitespaceRun(head) + text + reduceWhitespaceRun(tail)
}

// reduceWhitespaceRun reduces a whitespace run to a single newline if it
// contains one, or a single space otherwise.
func reduceWhitespaceRun(whitespace string) string {
	if whitespace == "" {
		return whitespace
	}
	if strings.Contains(whitespace, "\n") {
		return "\n"
	}
	return " "
}

// separateWhitespace splits text into its leading whitespace, core text
// and trailing whitespace.
func separateWhitespace(text string) (head, core, tail string) {
	core = strings.TrimLeft(text, " \t\n\r")
	head = text[:len(text)-len(core)]
	trimmed := strings.TrimRight(core, " \t\n\r")
	tail = core[len(trimmed):]
	return head, trimmed, tail
}
