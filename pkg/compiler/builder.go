package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// builder lowers the parsed node tree into the instruction tree, applying
// the fixed directive application order. One builder serves one compile
// call; the function registry it accumulates becomes part of the module.
type builder struct {
	config        *Config
	nsmap         map[string]string
	module        *ModuleBlock
	functionNames map[string]bool
}

func newBuilder(config *Config, nsmap map[string]string) *builder {
	return &builder{
		config:        config,
		nsmap:         nsmap,
		module:        &ModuleBlock{baseBlock{line: 1}},
		functionNames: make(map[string]bool),
	}
}

// buildModule compiles the template into a module block. The entry point
// routine is registered last, after every function discovered in the tree,
// under the name render with the given raw parameter list.
func (b *builder) buildModule(root *Element, arguments string) (*ModuleBlock, error) {
	main, err := b.compileElement(root, b.nsmap)
	if err != nil {
		return nil, err
	}
	if _, err := b.registerFunction("render("+arguments+")", main, root.Line); err != nil {
		return nil, err
	}
	return b.module, nil
}

// compileElement lowers one element and its subtree (recursive). The
// namespace map is non-nil only for the root element and for children of
// directive elements, which must carry the declarations themselves since
// their parent produces no tag.
func (b *builder) compileElement(el *Element, nsmap map[string]string) (Block, error) {
	directives, plain, isDirectiveElement, err := recognizeDirectives(el)
	if err != nil {
		return nil, err
	}

	var block Block
	var elemBlock *ElementBlock
	childNsmap := map[string]string(nil)

	if isDirectiveElement {
		block = newGroupBlock(el.Line)
		childNsmap = nsmap
	} else {
		elemBlock, err = b.compileForeignElement(el, plain, nsmap)
		if err != nil {
			return nil, err
		}
		block = elemBlock
	}

	// The container the element's content lives in; content, choose and
	// message directives operate on it even after outer wrapping.
	container := block

	children, err := b.compileChildren(el, childNsmap)
	if err != nil {
		return nil, err
	}
	container.SetChildren(children)

	// Apply the directives innermost first: the instruction tree is built
	// from the deepest structure up to the outermost wrapper.
	for i := len(directives) - 1; i >= 0; i-- {
		block, err = b.applyDirective(directives[i], block, elemBlock, container, el)
		if err != nil {
			return nil, err
		}
	}

	return block, nil
}

func (b *builder) compileChildren(el *Element, nsmap map[string]string) ([]Block, error) {
	var blocks []Block
	for _, child := range el.Children {
		switch node := child.(type) {
		case *Text:
			spans, err := b.compileText(node.Value, node.Line, false)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, spans...)
		case *Element:
			compiled, err := b.compileElement(node, nsmap)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, compiled)
		case *Comment:
			compiled, err := b.compileComment(node)
			if err != nil {
				return nil, err
			}
			if compiled != nil {
				blocks = append(blocks, compiled)
			}
		case *ProcInst:
			if node.Target == "python" {
				blocks = append(blocks, &StaticCodeBlock{leafBlock{node.Line}, node.Value})
			} else {
				blocks = append(blocks, newLiteralBlock(
					node.Line, "<?"+node.Target+" "+node.Value+"?>"))
			}
		}
	}
	return blocks, nil
}

// compileForeignElement compiles a non-directive element into an element
// block with its start and end tag emission sequences. The start tag is
// left unclosed; the postprocess pass closes it or shortens the element.
func (b *builder) compileForeignElement(el *Element, plain []Attr, nsmap map[string]string) (*ElementBlock, error) {
	tagName := prefixedName(b.nsmap, el.Name)
	line := el.Line

	openTag := newTagBlock(line, newLiteralBlock(line, "<"+tagName))

	// Namespace declarations, at the root or below a directive element.
	if nsmap != nil {
		urls := make([]string, 0, len(nsmap))
		for url := range nsmap {
			urls = append(urls, url)
		}
		sort.Strings(urls)
		for _, url := range urls {
			prefix := nsmap[url]
			name := "xmlns"
			if prefix != "" {
				name = "xmlns:" + prefix
			}
			markup := " " + name + "=\"" + escapeAttribute(url) + "\""
			openTag.SetChildren(append(openTag.Children(), newLiteralBlock(line, markup)))
		}
	}

	// Attributes in template order.
	for _, attr := range plain {
		name := prefixedName(b.nsmap, attr.Name)
		spans, err := b.compileText(attr.Value, line, true)
		if err != nil {
			return nil, err
		}
		children := openTag.Children()
		if containsExpression(attr.Value) {
			children = append(children, newLiteralBlock(line, " "+name+"=\""))
			children = append(children, spans...)
			children = append(children, newLiteralBlock(line, "\""))
		} else {
			// A constant attribute emits a single markup fragment even when
			// the optimizer is disabled.
			var markup strings.Builder
			markup.WriteString(" " + name + "=\"")
			for _, span := range spans {
				markup.WriteString(span.(*LiteralBlock).Markup)
			}
			markup.WriteString("\"")
			children = append(children, newLiteralBlock(line, markup.String()))
		}
		openTag.SetChildren(children)
	}

	closeTag := newTagBlock(line, newLiteralBlock(line, "</"+tagName+">"))

	return &ElementBlock{
		baseBlock: baseBlock{line: line},
		Tag:       strings.ToLower(tagName),
		OpenTag:   openTag,
		CloseTag:  closeTag,
	}, nil
}

// compileText lowers a raw text run into literal and expression blocks,
// escaping the constant fragments at compile time for their context.
func (b *builder) compileText(text string, line int, attribute bool) ([]Block, error) {
	if text == "" {
		return nil, nil
	}
	spans, err := splitExpressions(text, line)
	if err != nil {
		return nil, err
	}

	escape := escapeText
	if attribute {
		escape = escapeAttribute
	}

	blocks := make([]Block, 0, len(spans))
	for _, span := range spans {
		if !span.Expr {
			blocks = append(blocks, newLiteralBlock(span.Line, escape(span.Text)))
			continue
		}
		if attribute {
			blocks = append(blocks, &AttrExprBlock{leafBlock{span.Line}, span.Text})
		} else {
			blocks = append(blocks, &TextExprBlock{leafBlock{span.Line}, span.Text})
		}
	}
	return blocks, nil
}

func (b *builder) compileComment(node *Comment) (Block, error) {
	if b.config.RemoveComments {
		return nil, nil
	}
	// Comments opening with ! are template comments and never reach the
	// output.
	if strings.HasPrefix(strings.TrimLeft(node.Value, " \t\n\r"), "!") {
		return nil, nil
	}

	if b.config.ProcessComments {
		spans, err := b.compileText(node.Value, node.Line, false)
		if err != nil {
			return nil, err
		}
		children := make([]Block, 0, len(spans)+2)
		children = append(children, newLiteralBlock(node.Line, "<!--"))
		children = append(children, spans...)
		children = append(children, newLiteralBlock(node.Line, "-->"))
		return newGroupBlock(node.Line, children...), nil
	}

	return newLiteralBlock(node.Line, "<!--"+escapeText(node.Value)+"-->"), nil
}

// applyDirective wraps or rewrites the block compiled so far according to
// one directive. elemBlock is the markup element the directives apply to,
// nil for directive elements; container is the block holding the
// element's content.
func (b *builder) applyDirective(d directive, block Block, elemBlock *ElementBlock, container Block, el *Element) (Block, error) {
	switch d.Kind {

	case dirI18nMsg:
		message, err := b.buildMessage(el, d)
		if err != nil {
			return nil, err
		}
		container.SetChildren([]Block{message})
		return block, nil

	case dirStrip:
		if elemBlock == nil {
			return nil, NewDirectiveError(
				ErrMisplacedDirective, "py:strip requires a markup element to apply to", d.Line)
		}
		verdict, expr := parseBooleanExpression(d.Value, 1)
		switch verdict {
		case 1:
			elemBlock.OpenTag = nil
			elemBlock.CloseTag = nil
		case 0:
			// Always kept.
		default:
			elemBlock.StripExpr = expr
		}
		return block, nil

	case dirAttrs:
		if elemBlock == nil {
			return nil, NewDirectiveError(
				ErrMisplacedDirective, "py:attrs requires a markup element to apply to", d.Line)
		}
		if d.Value == "" {
			return nil, NewDirectiveError(ErrMissingParameter, "empty py:attrs directive", d.Line)
		}
		// A start tag already stripped out cannot take dynamic attributes;
		// ignore them along with the removed tag.
		if elemBlock.OpenTag == nil {
			return block, nil
		}
		elemBlock.OpenTag.SetChildren(append(
			elemBlock.OpenTag.Children(),
			&DynamicAttrsBlock{leafBlock{d.Line}, d.Value}))
		return block, nil

	case dirContent:
		if d.Value == "" {
			container.SetChildren(nil)
			return block, nil
		}
		container.SetChildren([]Block{&TextExprBlock{leafBlock{d.Line}, d.Value}})
		return block, nil

	case dirReplace:
		if d.Value == "" {
			return newGroupBlock(d.Line), nil
		}
		return &TextExprBlock{leafBlock{d.Line}, d.Value}, nil

	case dirWith:
		if d.Value == "" {
			return nil, NewDirectiveError(ErrMissingParameter, "empty py:with directive", d.Line)
		}
		with := &WithBlock{baseBlock{line: d.Line}, d.Value}
		with.SetChildren([]Block{block})
		return with, nil

	case dirIf:
		if d.Value == "" {
			return nil, NewDirectiveError(ErrMissingParameter, "empty py:if directive", d.Line)
		}
		verdict, expr := parseBooleanExpression(d.Value, -1)
		switch verdict {
		case 1:
			// Always true, the element stays unconditionally.
			return block, nil
		case 0:
			// Always false, the element vanishes.
			return newGroupBlock(d.Line), nil
		}
		cond := &CondBlock{baseBlock{line: d.Line}, expr}
		cond.SetChildren([]Block{block})
		return cond, nil

	case dirOtherwise:
		otherwise := &OtherwiseBlock{baseBlock{line: d.Line}}
		otherwise.SetChildren([]Block{block})
		return otherwise, nil

	case dirWhen:
		if d.Value == "" {
			return nil, NewDirectiveError(ErrMissingParameter, "empty py:when directive", d.Line)
		}
		when := &CaseBlock{baseBlock{line: d.Line}, d.Value}
		when.SetChildren([]Block{block})
		return when, nil

	case dirChoose:
		// The switch scope goes below the element so its tags render
		// outside while the cases compete inside.
		sw := &SwitchBlock{baseBlock{line: d.Line}, d.Value}
		sw.SetChildren(container.Children())
		container.SetChildren([]Block{sw})
		return block, nil

	case dirFor:
		if d.Value == "" {
			return nil, NewDirectiveError(ErrMissingParameter, "empty py:for directive", d.Line)
		}
		loop := &LoopBlock{baseBlock{line: d.Line}, d.Value}
		loop.SetChildren([]Block{block})
		return loop, nil

	case dirDef:
		return b.compileDef(block, d)
	}

	return block, nil
}

// compileDef registers a template function at module scope. Depending on
// configuration the definition site also renders in place as ordinary
// content, in which case the function body is compiled from a copy.
func (b *builder) compileDef(block Block, d directive) (Block, error) {
	signature := d.Value
	if signature == "" {
		return nil, NewDirectiveError(ErrMissingParameter, "empty py:def directive", d.Line)
	}
	if !strings.Contains(signature, "(") {
		signature += "()"
	}

	body := block
	result := Block(newGroupBlock(d.Line))
	if b.config.DefRendersInPlace {
		body = block.Clone()
		result = block
	}
	if _, err := b.registerFunction(signature, body, d.Line); err != nil {
		return nil, err
	}
	return result, nil
}

// registerFunction appends a function definition to the module. Template
// functions return markup, so their call sites are emitted unescaped; the
// name registry drives that decision in the postprocess pass.
func (b *builder) registerFunction(signature string, body Block, line int) (*FunctionBlock, error) {
	name := strings.TrimSpace(signature[:strings.Index(signature, "(")])
	if b.functionNames[name] {
		return nil, NewDirectiveError(
			ErrDuplicateFunctionName,
			fmt.Sprintf("duplicate template function %s", name), line)
	}
	b.functionNames[name] = true

	fn := &FunctionBlock{
		baseBlock: baseBlock{line: line},
		Name:      name,
		Signature: signature,
	}
	fn.SetChildren([]Block{body})
	b.module.SetChildren(append(b.module.Children(), fn))
	return fn, nil
}

// buildMessage extracts a translatable message from the element's
// children: literal text concatenates into the format string and each
// embedded expression becomes a numbered placeholder. Child elements
// cannot be represented in the format string and are rejected.
func (b *builder) buildMessage(el *Element, d directive) (*MessageBlock, error) {
	var params []string
	if d.Value != "" {
		for _, param := range strings.Split(d.Value, ",") {
			param = strings.TrimSpace(param)
			if param != "" {
				params = append(params, param)
			}
		}
	}

	var spans []textSpan
	hasExpressions := false
	for _, child := range el.Children {
		switch node := child.(type) {
		case *Text:
			split, err := splitExpressions(node.Value, node.Line)
			if err != nil {
				return nil, err
			}
			for _, span := range split {
				if span.Expr {
					hasExpressions = true
				}
			}
			spans = append(spans, split...)
		case *Comment:
			// Comments carry no translatable content.
		case *Element:
			return nil, NewDirectiveError(
				ErrMarkupInMessage,
				"child elements are not supported inside a translatable message", node.Line)
		}
	}

	var format strings.Builder
	var values []string

	for _, span := range spans {
		if !span.Expr {
			text := span.Text
			// A percent sign only needs doubling when the call site applies
			// the % formatting step, which happens only with placeholders.
			if hasExpressions {
				text = strings.ReplaceAll(text, "%", "%%")
			}
			format.WriteString(text)
			continue
		}
		if len(params) > 0 {
			if len(values) >= len(params) {
				return nil, NewDirectiveError(
					ErrMissingParameter,
					fmt.Sprintf("i18n:msg names %d parameters but the message has more expressions", len(params)),
					d.Line)
			}
			fmt.Fprintf(&format, "%%(%s)s", params[len(values)])
		} else {
			format.WriteString("%s")
		}
		values = append(values, span.Text)
	}

	if len(params) > 0 && len(values) != len(params) {
		return nil, NewDirectiveError(
			ErrMissingParameter,
			fmt.Sprintf("i18n:msg names %d parameters but the message has %d expressions",
				len(params), len(values)),
			d.Line)
	}

	return &MessageBlock{
		leafBlock: leafBlock{d.Line},
		Format:    format.String(),
		Values:    values,
		Params:    params,
	}, nil
}
