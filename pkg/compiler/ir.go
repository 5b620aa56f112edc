package compiler

// The instruction representation is a tree of blocks. Directive resolution
// builds it bottom-up from the node tree; the postprocess and optimize
// passes transform it; the code generator formats it into source lines.
// Each block is exclusively owned by its parent.

// Block is a single node of the instruction tree.
type Block interface {
	// Pos returns the template source line the block was compiled from.
	Pos() int
	// Children returns the block's child list, nil for leaf blocks.
	Children() []Block
	// SetChildren replaces the block's child list.
	SetChildren([]Block)
	// Clone returns a deep copy of the block.
	Clone() Block
}

type baseBlock struct {
	line     int
	children []Block
}

func (b *baseBlock) Pos() int                { return b.line }
func (b *baseBlock) Children() []Block       { return b.children }
func (b *baseBlock) SetChildren(blocks []Block) { b.children = blocks }

func (b *baseBlock) cloneChildren() []Block {
	if b.children == nil {
		return nil
	}
	children := make([]Block, len(b.children))
	for i, child := range b.children {
		children[i] = child.Clone()
	}
	return children
}

type leafBlock struct {
	line int
}

func (b *leafBlock) Pos() int              { return b.line }
func (b *leafBlock) Children() []Block     { return nil }
func (b *leafBlock) SetChildren([]Block)   {}

// GroupBlock groups other blocks without any semantics of its own. The
// optimizer splices its children into the parent.
type GroupBlock struct {
	baseBlock
}

func newGroupBlock(line int, children ...Block) *GroupBlock {
	return &GroupBlock{baseBlock{line: line, children: children}}
}

func (b *GroupBlock) Clone() Block {
	return &GroupBlock{baseBlock{line: b.line, children: b.cloneChildren()}}
}

// ModuleBlock represents the whole generated module. Its children are the
// function definitions in discovery order, the entry point last.
type ModuleBlock struct {
	baseBlock
}

func (b *ModuleBlock) Clone() Block {
	return &ModuleBlock{baseBlock{line: b.line, children: b.cloneChildren()}}
}

// FunctionBlock represents one generated routine. The signature is raw
// source text of the form name(parameters).
type FunctionBlock struct {
	baseBlock
	Name      string
	Signature string
}

func (b *FunctionBlock) Clone() Block {
	return &FunctionBlock{
		baseBlock: baseBlock{line: b.line, children: b.cloneChildren()},
		Name:      b.Name,
		Signature: b.Signature,
	}
}

// LoopBlock repeats its body for each iteration of the raw loop expression
// (`binding in iterable` form). The binding is scoped to the body.
type LoopBlock struct {
	baseBlock
	Each string
}

func (b *LoopBlock) Clone() Block {
	return &LoopBlock{baseBlock{line: b.line, children: b.cloneChildren()}, b.Each}
}

// CondBlock renders its body only when the raw condition evaluates true.
type CondBlock struct {
	baseBlock
	Test string
}

func (b *CondBlock) Clone() Block {
	return &CondBlock{baseBlock{line: b.line, children: b.cloneChildren()}, b.Test}
}

// SwitchBlock is the scope established by a choose directive. An empty
// Test means the enclosed cases carry truth-valued conditions; otherwise
// each case is compared against the evaluated discriminant. The case and
// otherwise blocks live in the subtree and are collected when formatting.
type SwitchBlock struct {
	baseBlock
	Test string
}

func (b *SwitchBlock) Clone() Block {
	return &SwitchBlock{baseBlock{line: b.line, children: b.cloneChildren()}, b.Test}
}

// CaseBlock is one branch of an enclosing switch.
type CaseBlock struct {
	baseBlock
	Test string
}

func (b *CaseBlock) Clone() Block {
	return &CaseBlock{baseBlock{line: b.line, children: b.cloneChildren()}, b.Test}
}

// OtherwiseBlock is the fallback branch of an enclosing switch.
type OtherwiseBlock struct {
	baseBlock
}

func (b *OtherwiseBlock) Clone() Block {
	return &OtherwiseBlock{baseBlock{line: b.line, children: b.cloneChildren()}}
}

// WithBlock introduces local variable bindings around its body. Vars is
// the raw, semicolon separated assignment list.
type WithBlock struct {
	baseBlock
	Vars string
}

func (b *WithBlock) Clone() Block {
	return &WithBlock{baseBlock{line: b.line, children: b.cloneChildren()}, b.Vars}
}

// TagBlock holds the emission sequence of one start or end tag.
type TagBlock struct {
	baseBlock
}

func newTagBlock(line int, children ...Block) *TagBlock {
	return &TagBlock{baseBlock{line: line, children: children}}
}

func (b *TagBlock) Clone() Block {
	return &TagBlock{baseBlock{line: b.line, children: b.cloneChildren()}}
}

// ElementBlock represents a markup element of the output. A nil OpenTag or
// CloseTag means the tag was stripped at compile time; a non-empty
// StripExpr conditions both tags on a runtime expression while the
// children render unconditionally.
type ElementBlock struct {
	baseBlock
	Tag       string
	OpenTag   *TagBlock
	CloseTag  *TagBlock
	StripExpr string
}

func (b *ElementBlock) Clone() Block {
	clone := &ElementBlock{
		baseBlock: baseBlock{line: b.line, children: b.cloneChildren()},
		Tag:       b.Tag,
		StripExpr: b.StripExpr,
	}
	if b.OpenTag != nil {
		clone.OpenTag = b.OpenTag.Clone().(*TagBlock)
	}
	if b.CloseTag != nil {
		clone.CloseTag = b.CloseTag.Clone().(*TagBlock)
	}
	return clone
}

// LiteralBlock emits compile-time constant markup. Escaping of constants
// is resolved at compile time, so the text is emitted verbatim.
type LiteralBlock struct {
	leafBlock
	Markup string
}

func newLiteralBlock(line int, markup string) *LiteralBlock {
	return &LiteralBlock{leafBlock{line: line}, markup}
}

func (b *LiteralBlock) Clone() Block {
	return &LiteralBlock{leafBlock{line: b.line}, b.Markup}
}

// TextExprBlock emits the runtime value of a raw expression, converted to
// text and escaped for text content.
type TextExprBlock struct {
	leafBlock
	Expr string
}

func (b *TextExprBlock) Clone() Block {
	return &TextExprBlock{leafBlock{line: b.line}, b.Expr}
}

// AttrExprBlock emits the runtime value of a raw expression, converted to
// text and escaped for a double quoted attribute.
type AttrExprBlock struct {
	leafBlock
	Expr string
}

func (b *AttrExprBlock) Clone() Block {
	return &AttrExprBlock{leafBlock{line: b.line}, b.Expr}
}

// MarkupExprBlock emits the runtime value of a raw expression without any
// escaping, reserved for pre-escaped markup (Markup() wrappers and calls
// to template functions).
type MarkupExprBlock struct {
	leafBlock
	Expr string
}

func (b *MarkupExprBlock) Clone() Block {
	return &MarkupExprBlock{leafBlock{line: b.line}, b.Expr}
}

// DynamicAttrsBlock merges runtime-computed attributes into a start tag.
// Render-time values win over static attributes on name collision; the
// merge cannot be resolved at compile time.
type DynamicAttrsBlock struct {
	leafBlock
	Expr string
}

func (b *DynamicAttrsBlock) Clone() Block {
	return &DynamicAttrsBlock{leafBlock{line: b.line}, b.Expr}
}

// StaticCodeBlock passes code from a processing instruction through into
// the generated routine body.
type StaticCodeBlock struct {
	leafBlock
	Code string
}

func (b *StaticCodeBlock) Clone() Block {
	return &StaticCodeBlock{leafBlock{line: b.line}, b.Code}
}

// MessageBlock emits a translatable message: a format string with numbered
// placeholders plus the raw expressions supplying the values. Params holds
// the optional placeholder names from the directive parameter list.
type MessageBlock struct {
	leafBlock
	Format string
	Values []string
	Params []string
}

func (b *MessageBlock) Clone() Block {
	clone := &MessageBlock{leafBlock{line: b.line}, b.Format, nil, nil}
	clone.Values = append(clone.Values, b.Values...)
	clone.Params = append(clone.Params, b.Params...)
	return clone
}

// isEmptyBlock reports whether the block cannot contribute any output and
// is not needed for the structure of the generated code.
func isEmptyBlock(b Block) bool {
	switch block := b.(type) {
	case *LiteralBlock:
		return block.Markup == ""
	case *TextExprBlock, *AttrExprBlock, *MarkupExprBlock,
		*DynamicAttrsBlock, *StaticCodeBlock, *MessageBlock:
		return false
	case *ModuleBlock, *FunctionBlock:
		return false
	case *ElementBlock:
		if block.OpenTag != nil && !isEmptyBlock(block.OpenTag) {
			return false
		}
		if block.CloseTag != nil && !isEmptyBlock(block.CloseTag) {
			return false
		}
		return len(block.Children()) == 0
	default:
		return len(b.Children()) == 0
	}
}

// isInvariantBlock reports whether the block provably uses no template
// variables, making it safe to hoist out of binding scopes.
func isInvariantBlock(b Block) bool {
	switch b.(type) {
	case *LiteralBlock, *StaticCodeBlock:
		return true
	}
	return false
}

// blockTransform rewrites one block into its replacement list. Returning
// an empty list removes the block.
type blockTransform func(Block) ([]Block, error)

// transformChildren applies a transformation to every child of a block,
// including the start and end tag subtrees of element blocks.
func transformChildren(b Block, transform blockTransform) error {
	if element, ok := b.(*ElementBlock); ok {
		if element.OpenTag != nil {
			replaced, err := transformTag(element.OpenTag, transform)
			if err != nil {
				return err
			}
			element.OpenTag = replaced
		}
		if element.CloseTag != nil {
			replaced, err := transformTag(element.CloseTag, transform)
			if err != nil {
				return err
			}
			element.CloseTag = replaced
		}
	}

	children := b.Children()
	if len(children) == 0 {
		return nil
	}
	replaced := make([]Block, 0, len(children))
	for _, child := range children {
		blocks, err := transform(child)
		if err != nil {
			return err
		}
		replaced = append(replaced, blocks...)
	}
	b.SetChildren(replaced)
	return nil
}

func transformTag(tag *TagBlock, transform blockTransform) (*TagBlock, error) {
	blocks, err := transform(tag)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	if replaced, ok := blocks[0].(*TagBlock); ok && len(blocks) == 1 {
		return replaced, nil
	}
	// A transformation substituted the tag block itself; keep the results
	// under a fresh tag container.
	return newTagBlock(tag.Pos(), blocks...), nil
}
