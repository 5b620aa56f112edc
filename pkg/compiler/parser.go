package compiler

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// XML namespace identifiers recognized by the compiler.
const (
	genshiNamespace   = "http://genshi.edgewall.org/"
	i18nNamespace     = "http://genshi.edgewall.org/i18n"
	xincludeNamespace = "http://www.w3.org/2001/XInclude"
	xmlNamespace      = "xml"
)

// Template standards accepted by Load.
const (
	StandardXML   = "xml"
	StandardXHTML = "xhtml"
)

// parseResult carries the parsed node tree together with the namespace
// prefix map captured from the root element. The map goes from namespace
// URL to declared prefix and excludes the directive, translation and
// XInclude vocabularies, which never appear in the output.
type parseResult struct {
	root  *Element
	nsmap map[string]string
}

// parseTemplate parses template source text into a node tree. The parse is
// a pure function of the input text: it has no side effects and leaves no
// state behind on failure.
func parseTemplate(source, standard string) (*parseResult, error) {
	p := &templateParser{
		source:   source,
		standard: standard,
	}
	p.indexLines()
	return p.parse()
}

type templateParser struct {
	source   string
	standard string

	// Byte offsets of line starts, for mapping decoder offsets to
	// line/column pairs in diagnostics.
	lineStarts []int
}

func (p *templateParser) indexLines() {
	p.lineStarts = append(p.lineStarts, 0)
	for i := 0; i < len(p.source); i++ {
		if p.source[i] == '\n' {
			p.lineStarts = append(p.lineStarts, i+1)
		}
	}
}

// position maps a byte offset into the source to a 1-based line/column pair.
func (p *templateParser) position(offset int64) (line, column int) {
	off := int(offset)
	if off > len(p.source) {
		off = len(p.source)
	}
	i := sort.Search(len(p.lineStarts), func(i int) bool {
		return p.lineStarts[i] > off
	}) - 1
	return i + 1, off - p.lineStarts[i] + 1
}

func (p *templateParser) parse() (*parseResult, error) {
	decoder := xml.NewDecoder(strings.NewReader(p.source))
	decoder.CharsetReader = charsetReader
	if p.standard == StandardXHTML {
		// The XHTML standard brings the Latin-1 and symbol entities along
		// with the base XML set.
		decoder.Entity = xml.HTMLEntity
	}

	var root *Element
	var stack []*Element
	nsmap := make(map[string]string)

	for {
		offset := decoder.InputOffset()
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, p.wrapSyntaxError(err, decoder.InputOffset())
		}
		line, column := p.position(offset)

		switch t := token.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, NewParseError("junk after document element", line, column)
			}
			element := &Element{
				Name: Name{Space: t.Name.Space, Local: t.Name.Local},
				Line: line,
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					// Namespace declarations are collected from the root
					// element only and re-emitted by the code generator.
					switch a.Value {
					case genshiNamespace, i18nNamespace, xincludeNamespace:
					default:
						if root == nil && len(stack) == 0 {
							prefix := a.Name.Local
							if a.Name.Local == "xmlns" {
								prefix = ""
							}
							nsmap[a.Value] = prefix
						} else {
							GetLogger().WithFields(Fields{
								"line":      line,
								"namespace": a.Value,
							}).Warn("namespace declared below the document element is dropped from the output")
						}
					}
					continue
				}
				element.Attrs = append(element.Attrs, Attr{
					Name:  Name{Space: a.Name.Space, Local: a.Name.Local},
					Value: a.Value,
				})
			}
			if len(stack) == 0 {
				root = element
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, element)
			}
			stack = append(stack, element)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, NewParseError(
					fmt.Sprintf("unexpected closing tag </%s>", t.Name.Local), line, column)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, NewParseError("text outside of the document element", line, column)
				}
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Text{Value: string(t), Line: line})

		case xml.Comment:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Comment{Value: string(t), Line: line})

		case xml.ProcInst:
			if len(stack) == 0 {
				// The XML declaration and other prolog instructions carry
				// no output.
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &ProcInst{
				Target: t.Target,
				Value:  string(t.Inst),
				Line:   line,
			})

		case xml.Directive:
			if p.standard == StandardXHTML {
				return nil, NewParseError(
					"remove the <!DOCTYPE> definition or set the template standard to \"xml\"",
					line, column)
			}
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, NewParseError(
			fmt.Sprintf("unclosed element <%s>", open.Name.Local), open.Line, 0)
	}
	if root == nil {
		return nil, NewParseError("no document element found", 1, 1)
	}

	return &parseResult{root: root, nsmap: nsmap}, nil
}

// wrapSyntaxError converts a decoder error to a ParseError with position
// information.
func (p *templateParser) wrapSyntaxError(err error, offset int64) error {
	line, column := p.position(offset)
	if syntaxError, ok := err.(*xml.SyntaxError); ok {
		reason := syntaxError.Msg
		if syntaxError.Line > 0 {
			line = syntaxError.Line
		}
		return NewParseError(reason, line, column)
	}
	return NewParseError(err.Error(), line, column)
}

// charsetReader accepts only encodings the compiler can pass through
// unchanged.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "utf-8", "us-ascii", "ascii":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported template encoding %q", charset)
}

// prefixedName maps a namespace-qualified name back to its prefixed source
// form using the template's namespace declarations. Names from undeclared
// namespaces fall back to the bare local name.
func prefixedName(nsmap map[string]string, name Name) string {
	if name.Space == "" {
		return name.Local
	}
	if name.Space == xmlNamespace {
		return "xml:" + name.Local
	}
	if prefix, ok := nsmap[name.Space]; ok && prefix != "" {
		return prefix + ":" + name.Local
	}
	return name.Local
}
