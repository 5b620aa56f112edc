package compiler

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// Config contains all configuration options for the template compiler.
type Config struct {
	// Indentation is one level of indentation in the generated source code.
	Indentation string
	// OptimizeGeneratedCode enables the static merge optimization pass over
	// the compiled instruction tree. It does not change the rendered output,
	// only makes the generated code smaller and faster to execute.
	OptimizeGeneratedCode bool
	// ReduceWhitespace removes duplicate whitespace (including newlines)
	// from markup statically embedded into the generated source code. It
	// does not touch whitespace coming from template variables. Disabled by
	// default for Genshi compatibility.
	ReduceWhitespace bool
	// ProcessComments enables template variable substitution inside XML
	// comments. Disabled by default for Genshi compatibility.
	ProcessComments bool
	// RemoveComments drops XML comments from the output entirely.
	RemoveComments bool
	// DefRendersInPlace makes an element carrying a function definition
	// directive also render in place as ordinary content, in addition to
	// being callable as its own named routine. Set it to false for strict
	// Genshi behavior, where the definition site emits no output.
	DefRendersInPlace bool
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off).
	LogLevel string
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Indentation:           "    ",
		OptimizeGeneratedCode: true,
		ReduceWhitespace:      false,
		ProcessComments:       false,
		RemoveComments:        false,
		DefRendersInPlace:     true,
		LogLevel:              "info",
	}
}

// ConfigFromEnvironment creates a configuration from environment variables.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	// GENSHIC_OPTIMIZE
	if val := os.Getenv("GENSHIC_OPTIMIZE"); val != "" {
		config.OptimizeGeneratedCode = parseBool(val)
	}

	// GENSHIC_REDUCE_WHITESPACE
	if val := os.Getenv("GENSHIC_REDUCE_WHITESPACE"); val != "" {
		config.ReduceWhitespace = parseBool(val)
	}

	// GENSHIC_DEF_RENDERS_IN_PLACE
	if val := os.Getenv("GENSHIC_DEF_RENDERS_IN_PLACE"); val != "" {
		config.DefRendersInPlace = parseBool(val)
	}

	// GENSHIC_LOG_LEVEL
	if val := os.Getenv("GENSHIC_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Indentation == "" {
		return errors.New("indentation cannot be empty")
	}
	if strings.TrimSpace(c.Indentation) != "" {
		return errors.New("indentation must consist of whitespace")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	return nil
}

// GetGlobalConfig returns the global configuration.
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	// Return a copy to prevent modification
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration.
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
