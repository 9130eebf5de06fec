package chunker

import (
	"fmt"
	"math"
	"regexp"
)

// ReMode selects where a regex split_flag match produces a boundary.
type ReMode int

const (
	SplitBefore ReMode = 0 // boundary at match start
	SplitAfter  ReMode = 1 // boundary at match end
	SplitAround ReMode = 2 // boundaries at both ends
)

// Config controls chunking behavior. Sizes are counted in runes.
type Config struct {
	ChunkSize int      `json:"chunk_size" yaml:"chunk_size"`
	IndexSize int      `json:"index_size" yaml:"index_size"`
	Overlap   float64  `json:"overlap" yaml:"overlap"`
	SplitFlag []string `json:"split_flag" yaml:"split_flag"`
	Filters   []string `json:"filters" yaml:"filters"`
	ReFlags   bool     `json:"re_flags" yaml:"re_flags"`
	ReMode    ReMode   `json:"re_mode" yaml:"re_mode"`
}

// DefaultConfig returns the system-wide defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 500,
		Overlap:   0.1,
		SplitFlag: []string{"\n#", "\n\n"},
	}
}

// IndexEnabled reports whether a secondary index sequence is requested.
func (c Config) IndexEnabled() bool {
	return c.IndexSize > 0 && c.IndexSize != c.ChunkSize
}

// OverlapChars is the number of kept characters repeated between chunks of the given size.
func (c Config) OverlapChars(size int) int {
	n := int(math.Round(float64(size) * c.Overlap))
	if n >= size {
		n = size - 1
	}
	if n < 0 {
		n = 0
	}
	return n
}

// ConfigError reports an invalid chunking parameter.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunk config: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("chunk config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validate checks every field, including that all patterns compile.
func (c Config) Validate() error {
	_, err := c.compile(c.ChunkSize)
	if err != nil {
		return err
	}
	if c.IndexSize < 0 {
		return &ConfigError{Field: "index_size", Reason: "must be >= 0"}
	}
	return nil
}

// plan is a validated Config with its patterns compiled.
type plan struct {
	size    int
	overlap int
	flags   []string
	flagRe  []*regexp.Regexp
	mode    ReMode
	filters []*regexp.Regexp
}

func (c Config) compile(size int) (*plan, error) {
	if size <= 0 {
		return nil, &ConfigError{Field: "chunk_size", Reason: "must be > 0"}
	}
	if math.IsNaN(c.Overlap) || c.Overlap < 0 || c.Overlap >= 1 {
		return nil, &ConfigError{Field: "overlap", Reason: fmt.Sprintf("%v not in [0,1)", c.Overlap)}
	}

	p := &plan{size: size, overlap: c.OverlapChars(size), mode: c.ReMode}

	for i, f := range c.Filters {
		re, err := regexp.Compile(f)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("filters[%d]", i), Reason: "invalid pattern", Err: err}
		}
		p.filters = append(p.filters, re)
	}

	if c.ReFlags {
		switch c.ReMode {
		case SplitBefore, SplitAfter, SplitAround:
		default:
			return nil, &ConfigError{Field: "re_mode", Reason: fmt.Sprintf("unknown mode %d", c.ReMode)}
		}
	}
	for i, f := range c.SplitFlag {
		if f == "" {
			return nil, &ConfigError{Field: fmt.Sprintf("split_flag[%d]", i), Reason: "empty delimiter"}
		}
		if !c.ReFlags {
			p.flags = append(p.flags, f)
			continue
		}
		re, err := regexp.Compile(f)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("split_flag[%d]", i), Reason: "invalid pattern", Err: err}
		}
		p.flagRe = append(p.flagRe, re)
	}
	return p, nil
}
