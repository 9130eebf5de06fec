package chunker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the wire form of a chunking policy as submitted by callers.
// Nil fields are unset.
type Policy struct {
	ChunkSize *int     `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	IndexSize *int     `json:"index_size,omitempty" yaml:"index_size,omitempty"`
	Overlap   *float64 `json:"overlap,omitempty" yaml:"overlap,omitempty"`
	SplitFlag []string `json:"split_flag,omitempty" yaml:"split_flag,omitempty"`
	Filters   []string `json:"filters,omitempty" yaml:"filters,omitempty"`
	ReFlags   *bool    `json:"re_flags,omitempty" yaml:"re_flags,omitempty"`
	ReMode    *int     `json:"re_mode,omitempty" yaml:"re_mode,omitempty"`
	Default   *bool    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Resolve turns the policy into a validated Config. With Default unset or
// true, every unset field takes its value from defaults. With Default false,
// unset fields stay at their zero value.
func (p Policy) Resolve(defaults Config) (Config, error) {
	var cfg Config
	if p.Default == nil || *p.Default {
		cfg = defaults
		cfg.SplitFlag = append([]string(nil), defaults.SplitFlag...)
		cfg.Filters = append([]string(nil), defaults.Filters...)
	}
	if p.ChunkSize != nil {
		cfg.ChunkSize = *p.ChunkSize
	}
	if p.IndexSize != nil {
		cfg.IndexSize = *p.IndexSize
	}
	if p.Overlap != nil {
		cfg.Overlap = *p.Overlap
	}
	if p.SplitFlag != nil {
		cfg.SplitFlag = p.SplitFlag
	}
	if p.Filters != nil {
		cfg.Filters = p.Filters
	}
	if p.ReFlags != nil {
		cfg.ReFlags = *p.ReFlags
	}
	if p.ReMode != nil {
		cfg.ReMode = ReMode(*p.ReMode)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParsePolicyJSON decodes a JSON policy, rejecting unknown fields.
func ParsePolicyJSON(data []byte) (Policy, error) {
	var p Policy
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Policy{}, &ConfigError{Field: "policy", Reason: "decode json", Err: err}
	}
	return p, nil
}

// ParsePolicyYAML decodes a YAML policy, rejecting unknown fields.
func ParsePolicyYAML(data []byte) (Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Policy{}, nil
		}
		return Policy{}, &ConfigError{Field: "policy", Reason: "decode yaml", Err: err}
	}
	return p, nil
}

// LoadPolicyFile reads a policy from disk. The extension picks the format:
// .yaml and .yml are YAML, everything else is JSON.
func LoadPolicyFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParsePolicyYAML(data)
	default:
		return ParsePolicyJSON(data)
	}
}
