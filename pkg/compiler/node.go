package compiler

// Name is a namespace-qualified element or attribute name. Space holds the
// resolved namespace URL, empty for names without a namespace.
type Name struct {
	Space string
	Local string
}

// Node is a typed node of the parsed template tree. The tree is built once
// by the parser and consumed read-only by the instruction builder.
type Node interface {
	SourceLine() int
}

// Attr is a single attribute with its raw, unparsed value. Raw values may
// contain embedded ${expr} spans, kept opaque until lowering.
type Attr struct {
	Name  Name
	Value string
}

// Element is a markup element with its ordered attribute list and children.
// Attribute order is preserved exactly as written in the template, since it
// determines emission order in the generated code.
type Element struct {
	Name     Name
	Attrs    []Attr
	Children []Node
	Line     int
}

func (e *Element) SourceLine() int { return e.Line }

// attr returns the raw value of the named attribute, and whether it exists.
func (e *Element) attr(space, local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Text is a run of character data. The value is unescaped text; entity
// references were already resolved by the parser.
type Text struct {
	Value string
	Line  int
}

func (t *Text) SourceLine() int { return t.Line }

// Comment is an XML comment without the surrounding markers.
type Comment struct {
	Value string
	Line  int
}

func (c *Comment) SourceLine() int { return c.Line }

// ProcInst is a processing instruction.
type ProcInst struct {
	Target string
	Value  string
	Line   int
}

func (p *ProcInst) SourceLine() int { return p.Line }
