package ir

import (
	"encoding/json"

	"github.com/wippyai/jsbind/errors"
)

// ParseJSON decodes a Program from the front end's JSON form and validates
// declaration-level consistency (name uniqueness, resolvable references).
func ParseJSON(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Load("parse IR JSON", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// MarshalJSON-side helper for tooling that round-trips programs.
func (p *Program) EncodeJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Validate checks declaration-level invariants. Type-level checks (recursion,
// representability) belong to the resolver.
func (p *Program) Validate() error {
	seen := make(map[string]bool)
	for _, s := range p.Structs {
		if s.Name == "" {
			return errors.InvalidInput(errors.PhaseLoad, "struct with empty name")
		}
		if seen[s.Name] {
			return errors.InvalidData(errors.PhaseLoad, []string{s.Name}, "duplicate type name")
		}
		seen[s.Name] = true
	}
	for _, e := range p.Enums {
		if e.Name == "" {
			return errors.InvalidInput(errors.PhaseLoad, "enum with empty name")
		}
		if seen[e.Name] {
			return errors.InvalidData(errors.PhaseLoad, []string{e.Name}, "duplicate type name")
		}
		seen[e.Name] = true
		if e.IsString() && len(e.Variants) > 0 {
			return errors.InvalidData(errors.PhaseLoad, []string{e.Name}, "enum cannot be both numeric and string-valued")
		}
		disc := make(map[int64]bool, len(e.Variants))
		for _, v := range e.Variants {
			if disc[v.Value] {
				return errors.InvalidData(errors.PhaseLoad, []string{e.Name, v.Name}, "duplicate discriminant")
			}
			disc[v.Value] = true
		}
	}
	for _, f := range p.Functions {
		if f.Name == "" {
			return errors.InvalidInput(errors.PhaseLoad, "function with empty name")
		}
		if f.Receiver != "" {
			if _, ok := p.StructByName(f.Receiver); !ok {
				return errors.NotFound(errors.PhaseLoad, "receiver struct", f.Receiver)
			}
		}
	}
	return nil
}
