// Package parameters loads the function's external configuration blob from a
// parameter store, memoizes it for the life of the process, and resolves
// per-region database profiles out of it.
package parameters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

const DatabasesKey = "databases"

var ErrNoSource = errors.New("no parameter source configured")

// Parameters is the decoded parameter blob: a JSON object whose entries are
// kept raw until a caller asks for a typed view.
type Parameters struct {
	entries map[string]json.RawMessage
}

func Parse(data []byte) (*Parameters, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if entries == nil {
		return nil, fmt.Errorf("decode parameters: %w", errors.New("parameter value is not a JSON object"))
	}
	return &Parameters{entries: entries}, nil
}

func (p *Parameters) Keys() []string {
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environment flattens the entries into environment-style strings. Strings
// are unquoted, null is empty, everything else keeps its JSON text.
func (p *Parameters) Environment() map[string]string {
	out := make(map[string]string, len(p.entries))
	for k, raw := range p.entries {
		out[k] = envValue(raw)
	}
	return out
}

// Export copies every entry into the process environment.
func (p *Parameters) Export() error {
	for k, v := range p.Environment() {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("export %s: %w", k, err)
		}
	}
	return nil
}

func envValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case 'n':
		return ""
	}
	return string(trimmed)
}
