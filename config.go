package blade

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ContextBehavior selects which variables a fill can see when it is rendered
// inside a component.
type ContextBehavior string

const (
	// ContextBehaviorInherited gives fills the component's full context,
	// including the data the component loaded for itself.
	ContextBehaviorInherited ContextBehavior = "inherited"
	// ContextBehaviorIsolated gives fills only the scope that existed before
	// the component pushed its own data.
	ContextBehaviorIsolated ContextBehavior = "isolated"
)

// UnmarshalText accepts "inherited" (alias "django") and "isolated".
func (b *ContextBehavior) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "", string(ContextBehaviorInherited), "django":
		*b = ContextBehaviorInherited
	case string(ContextBehaviorIsolated):
		*b = ContextBehaviorIsolated
	default:
		return fmt.Errorf("%w: unknown context behavior %q", ErrConfiguration, v)
	}
	return nil
}

func (b ContextBehavior) orDefault(def ContextBehavior) ContextBehavior {
	if b == "" {
		if def == "" {
			return ContextBehaviorInherited
		}
		return def
	}
	return b
}

// OutputPolicy decides how values returned by slot callables become HTML.
type OutputPolicy string

const (
	// OutputEscape HTML-escapes everything that is not already template.HTML.
	OutputEscape OutputPolicy = "escape"
	// OutputSanitize keeps markup allowed by a bluemonday UGC policy.
	OutputSanitize OutputPolicy = "sanitize"
)

func (p *OutputPolicy) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "", string(OutputEscape):
		*p = OutputEscape
	case string(OutputSanitize):
		*p = OutputSanitize
	default:
		return fmt.Errorf("%w: unknown output policy %q", ErrConfiguration, v)
	}
	return nil
}

// Config holds process-wide engine defaults.
type Config struct {
	ContextBehavior ContextBehavior `env:"BLADE_CONTEXT_BEHAVIOR" envDefault:"inherited"`
	OutputPolicy    OutputPolicy    `env:"BLADE_OUTPUT_POLICY" envDefault:"escape"`
	Extensions      []string        `env:"BLADE_EXTENSIONS" envSeparator:","`
}

// DefaultConfig returns the configuration used when none is loaded.
func DefaultConfig() Config {
	return Config{
		ContextBehavior: ContextBehaviorInherited,
		OutputPolicy:    OutputEscape,
		Extensions:      slices.Clone(ValidFileExtensions),
	}
}

// LoadConfig reads the configuration from BLADE_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = slices.Clone(ValidFileExtensions)
	}
	for i, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extensions[i] = ext
	}
	return cfg, nil
}
