package compiler

import "strings"

// Minimize reduces leading and trailing whitespace of every text run in
// an XML or XHTML document. Whitespace-only runs collapse to a single
// newline when they contain one, otherwise to a single space. Comments,
// processing instructions and CDATA sections are kept intact, and empty
// elements are written in self-closing form.
//
// The input must be well-formed markup with a single root element.
func Minimize(source string) (string, error) {
	m := &minimizer{source: source}
	if err := m.run(); err != nil {
		return "", err
	}
	return strings.Join(m.segments, ""), nil
}

type minimizer struct {
	source   string
	pos      int
	depth    int
	segments []string

	// Index into segments of the most recent open tag, valid only while
	// nothing has been emitted after it. Used to collapse empty elements.
	openIndex int
	openName  string
}

func (m *minimizer) run() error {
	m.openIndex = -1
	seenRoot := false

	for m.pos < len(m.source) {
		start := strings.IndexByte(m.source[m.pos:], '<')
		if start < 0 {
			if err := m.text(m.source[m.pos:]); err != nil {
				return err
			}
			break
		}
		if start > 0 {
			if err := m.text(m.source[m.pos : m.pos+start]); err != nil {
				return err
			}
		}

		rest := m.source[m.pos:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			if err := m.copyUntil("-->", "comment"); err != nil {
				return err
			}
		case strings.HasPrefix(rest, "<![CDATA["):
			if err := m.copyUntil("]]>", "CDATA section"); err != nil {
				return err
			}
		case strings.HasPrefix(rest, "<!"):
			if err := m.copyUntil(">", "declaration"); err != nil {
				return err
			}
		case strings.HasPrefix(rest, "<?"):
			if err := m.copyUntil("?>", "processing instruction"); err != nil {
				return err
			}
		case strings.HasPrefix(rest, "</"):
			if err := m.closeTag(); err != nil {
				return err
			}
		default:
			if m.depth == 0 && seenRoot {
				return NewParseError("markup after the root element", m.line(), 0)
			}
			seenRoot = true
			if err := m.openTag(); err != nil {
				return err
			}
		}
	}

	if m.depth != 0 {
		return NewParseError("unexpected end of document inside an element", m.line(), 0)
	}
	return nil
}

func (m *minimizer) emit(segment string) {
	m.segments = append(m.segments, segment)
	m.openIndex = -1
}

func (m *minimizer) text(text string) error {
	if m.depth == 0 {
		if strings.TrimSpace(text) != "" {
			return NewParseError("text content outside the root element", m.line(), 0)
		}
		m.pos += len(text)
		return nil
	}
	m.emit(minimizeText(text))
	m.pos += len(text)
	return nil
}

func (m *minimizer) copyUntil(terminator, what string) error {
	end := strings.Index(m.source[m.pos:], terminator)
	if end < 0 {
		return NewParseError("unterminated "+what, m.line(), 0)
	}
	end += len(terminator)
	m.emit(m.source[m.pos : m.pos+end])
	m.pos += end
	return nil
}

func (m *minimizer) openTag() error {
	end, selfClosing, err := m.scanTag()
	if err != nil {
		return err
	}
	tag := m.source[m.pos : m.pos+end]
	if selfClosing {
		tag = strings.TrimRight(tag[:len(tag)-2], " \t\n\r") + "/>"
	}
	m.emit(tag)
	m.pos += end
	if !selfClosing {
		m.depth++
		m.openIndex = len(m.segments) - 1
		m.openName = tagName(tag[1:])
	}
	return nil
}

func (m *minimizer) closeTag() error {
	end, _, err := m.scanTag()
	if err != nil {
		return err
	}
	if m.depth == 0 {
		return NewParseError("unbalanced closing tag", m.line(), 0)
	}
	tag := m.source[m.pos : m.pos+end]
	m.pos += end
	m.depth--

	// An open tag directly followed by its closing tag becomes a
	// self-closing tag.
	if m.openIndex >= 0 && tagName(tag[2:]) == m.openName {
		open := m.segments[m.openIndex]
		m.segments[m.openIndex] = open[:len(open)-1] + "/>"
		m.openIndex = -1
		return nil
	}
	m.emit(tag)
	return nil
}

// scanTag returns the length of the tag starting at the current position
// and whether it is self-closing. Quoted attribute values may contain
// angle brackets.
func (m *minimizer) scanTag() (int, bool, error) {
	quote := byte(0)
	for i := m.pos + 1; i < len(m.source); i++ {
		c := m.source[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i + 1 - m.pos, m.source[i-1] == '/', nil
		}
	}
	return 0, false, NewParseError("unterminated tag", m.line(), 0)
}

func (m *minimizer) line() int {
	return 1 + strings.Count(m.source[:m.pos], "\n")
}

// minimizeText trims runs of whitespace at both ends of a text chunk to
// a single space. Whitespace-only chunks become a newline if they span
// lines, a single space otherwise.
func minimizeText(text string) string {
	if text == "" {
		return text
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		if strings.Contains(text, "\n") {
			return "\n"
		}
		return " "
	}
	result := trimmed
	if text != strings.TrimLeft(text, " \t\n\r") {
		result = " " + result
	}
	if text != strings.TrimRight(text, " \t\n\r") {
		result += " "
	}
	return result
}

func tagName(s string) string {
	end := strings.IndexAny(s, " \t\n\r/>")
	if end < 0 {
		return s
	}
	return s[:end]
}
