package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// SessionVariables is the read-only configuration of one diagnosis run.
type SessionVariables map[string]any

// Clone returns a shallow copy.
func (v SessionVariables) Clone() SessionVariables {
	out := make(SessionVariables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Lookup returns the variable and whether it is set.
func (v SessionVariables) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// Merge returns a copy of v overlaid with the values of other.
func (v SessionVariables) Merge(other SessionVariables) SessionVariables {
	out := v.Clone()
	for k, val := range other {
		out[k] = val
	}
	return out
}

// Decode converts the named variable into target.
// Numeric strings and loose numeric types are accepted.
func (v SessionVariables) Decode(name string, target any) error {
	val, ok := v[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	return decode(val, target)
}

// DecodeAll maps the variables onto a struct using `mapstructure` tags.
func (v SessionVariables) DecodeAll(target any) error {
	return decode(map[string]any(v), target)
}

func decode(input, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("failed to decode session variable: %w", err)
	}
	return nil
}
