// Package compiler translates Genshi XML templates into standalone
// module source code with no runtime template engine dependency.
//
// Genshi templates are valid XML documents annotated with py:* directive
// attributes and ${...} expression substitutions. The compiler parses a
// template once and emits ordinary source code: one render routine for
// the whole template plus one routine per py:def template function. The
// generated module depends only on the target language's standard
// library and renders by appending markup fragments to a list, which is
// orders of magnitude faster than interpreting the template at runtime.
//
// # Quick Start
//
//	code, err := compiler.CompileTemplate(templateSource, "hello_world", "name")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("hello_world.py", []byte(code), 0644)
//
// Or with explicit control over configuration and loading:
//
//	c := compiler.NewWithConfig(&compiler.Config{
//	    Indentation:           "    ",
//	    OptimizeGeneratedCode: true,
//	})
//	err := c.LoadFile("page.html", compiler.LoadOptions{
//	    Standard: compiler.StandardXHTML,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	code, err := c.Compile("lang, user_count")
//
// # Supported Directives
//
// The directive attributes below are recognized in the
// http://genshi.edgewall.org/ namespace, conventionally bound to the
// py: prefix. Element forms such as <py:for each="..."> work as well.
//
//	py:def="fn(args)"     - Define a template function
//	py:for="item in seq"  - Repeat the element for each item
//	py:if="test"          - Render the element conditionally
//	py:choose / py:when / py:otherwise - Exclusive alternatives
//	py:with="x = expr"    - Bind local variables
//	py:replace="expr"     - Replace the element with a value
//	py:content="expr"     - Replace the element's children
//	py:attrs="mapping"    - Add attributes computed at runtime
//	py:strip="test"       - Omit the element's tags, keep children
//
// Translatable content is marked with i18n:msg in the
// http://genshi.edgewall.org/i18n namespace. py:match and XInclude
// directives are not supported and are rejected at compile time.
//
// Namespace declarations are read from the document element only. The
// compiler vocabularies above never reach the output; any other
// namespace declared on the root is re-emitted on the output's root
// tag. Declarations on nested elements are dropped with a warning, and
// names in a namespace the root does not declare fall back to their
// bare local name.
//
// # Pipeline
//
// Compilation runs in fixed stages: parse the XML into a node tree,
// recognize directives, lower the tree into an instruction tree, then
// postprocess (close start tags, resolve choose scopes, retype Markup()
// expressions), optimize (merge constant markup runs, hoist invariants
// out of variable scopes) and finally generate source text. The
// optimizer typically merges most of a template into a handful of
// constant strings, so the generated routines are mostly sequential
// appends.
//
// # Escaping
//
// Constant markup is escaped at compile time; expression values are
// escaped at render time, as text content or as a double-quoted
// attribute value depending on where the expression appears. Wrapping
// an expression in Markup() inserts its value without escaping; calls
// to template functions defined with py:def are inserted unescaped as
// well, since their output is already markup.
//
// # Error Handling
//
// Failures are reported as *ParseError for malformed XML and
// *DirectiveError for directive misuse, both carrying the source line.
// Check error types using errors.As().
//
// # Thread Safety
//
// A Compiler instance serves one template at a time and is not safe for
// concurrent use. Distinct instances are independent; use one per
// goroutine.
package compiler
