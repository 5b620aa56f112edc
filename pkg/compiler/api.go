package compiler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Compiler turns one XML template into module source code implementing
// standalone render routines. Use New() to create an instance, Load to
// parse a template, then Compile as many times as needed with different
// render arguments.
type Compiler struct {
	config *Config

	filename   string
	identifier string
	standard   string
	parsed     *parseResult
}

// New creates a compiler with the global configuration.
func New() *Compiler {
	return NewWithConfig(GetGlobalConfig())
}

// NewWithConfig creates a compiler with a custom configuration.
func NewWithConfig(config *Config) *Compiler {
	return &Compiler{config: config}
}

// LoadOptions control how a template is loaded. All fields are optional.
type LoadOptions struct {
	// Filename appears in diagnostics and in the header of the
	// generated module. Defaults to the identifier with an .xml suffix.
	Filename string

	// Identifier names the template. It must be usable as a code
	// identifier. Defaults to the filename base or unnamed_template.
	Identifier string

	// Standard selects the template dialect, StandardXML or
	// StandardXHTML. Defaults to StandardXML.
	Standard string
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load parses template source text. It replaces any previously loaded
// template; on failure the compiler keeps its previous template.
func (c *Compiler) Load(source string, opts LoadOptions) error {
	filename, identifier, err := resolveTemplateName(opts.Filename, opts.Identifier)
	if err != nil {
		return err
	}

	standard := opts.Standard
	if standard == "" {
		standard = StandardXML
	}
	if standard != StandardXML && standard != StandardXHTML {
		return fmt.Errorf("unknown template standard: %q", standard)
	}

	logger := GetLogger().WithField("template", identifier)
	logger.Debug("parsing template")

	parsed, err := parseTemplate(source, standard)
	if err != nil {
		logger.WithField("error", err.Error()).Debug("template parsing failed")
		return err
	}

	c.filename = filename
	c.identifier = identifier
	c.standard = standard
	c.parsed = parsed
	return nil
}

// LoadFile reads and parses a template file. The identifier defaults to
// the file's base name.
func (c *Compiler) LoadFile(path string, opts LoadOptions) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template file: %w", err)
	}
	if opts.Filename == "" {
		opts.Filename = path
	}
	return c.Load(string(source), opts)
}

// Compile generates module source code from the loaded template. The
// arguments string is the raw parameter list of the render entry point,
// for example "lang, user_count".
func (c *Compiler) Compile(arguments string) (string, error) {
	if c.parsed == nil {
		return "", fmt.Errorf("no template loaded")
	}

	logger := GetLogger().WithField("template", c.identifier)
	logger.Debug("compiling template")

	b := newBuilder(c.config, c.parsed.nsmap)
	module, err := b.buildModule(c.parsed.root, arguments)
	if err != nil {
		return "", err
	}

	if err := postprocess(module, c.standard, b.functionNames); err != nil {
		return "", err
	}

	if c.config.OptimizeGeneratedCode {
		optimizeModule(module, c.config)
	}

	code := newGenerator(c.config, c.filename).generate(module)
	logger.WithField("bytes", len(code)).Debug("template compiled")
	return code, nil
}

// CompileOutput generates module source code and writes it to w.
func (c *Compiler) CompileOutput(w io.Writer, arguments string) error {
	code, err := c.Compile(arguments)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, code)
	return err
}

// Identifier returns the loaded template's identifier, or an empty
// string before the first successful Load.
func (c *Compiler) Identifier() string {
	return c.identifier
}

// Config returns the compiler's configuration.
func (c *Compiler) Config() *Config {
	return c.config
}

// CompileTemplate compiles template source in one call using the global
// configuration. The identifier may be empty.
func CompileTemplate(source, identifier, arguments string) (string, error) {
	c := New()
	if err := c.Load(source, LoadOptions{Identifier: identifier}); err != nil {
		return "", err
	}
	return c.Compile(arguments)
}

// resolveTemplateName fills in the filename and identifier defaults and
// validates the identifier.
func resolveTemplateName(filename, identifier string) (string, string, error) {
	if identifier == "" {
		if filename == "" {
			identifier = "unnamed_template"
		} else {
			base := filepath.Base(filename)
			base = strings.TrimSuffix(base, filepath.Ext(base))
			identifier = strings.Map(func(r rune) rune {
				switch {
				case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
					r >= '0' && r <= '9', r == '_':
					return r
				}
				return '_'
			}, base)
			if identifier == "" || identifier[0] >= '0' && identifier[0] <= '9' {
				identifier = "_" + identifier
			}
		}
	}
	if !identifierPattern.MatchString(identifier) {
		return "", "", fmt.Errorf("invalid template identifier: %q", identifier)
	}
	if filename == "" {
		filename = identifier + ".xml"
	}
	return filename, identifier, nil
}
