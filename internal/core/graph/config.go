package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Configurable nodes expose their settings as a flat map so definitions can
// describe and rebuild them. Configure applies a partial map through the
// node's setters; keys that are absent keep their value.
type Configurable interface {
	Config() map[string]any
	Configure(cfg map[string]any) error
}

func checkKeys(kind string, cfg map[string]any, allowed ...string) error {
	for k := range cfg {
		if !slices.Contains(allowed, k) {
			return fmt.Errorf("%w: %s: unknown key %q", ErrInvalidConfig, kind, k)
		}
	}
	return nil
}

func cfgString(cfg map[string]any, key string) (string, bool, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidConfig, key, raw)
	}
	return s, true, nil
}

func cfgFloat(cfg map[string]any, key string) (float64, bool, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case uint64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidConfig, key, raw)
	}
}

func cfgInt(cfg map[string]any, key string) (int, bool, error) {
	f, ok, err := cfgFloat(cfg, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidConfig, key, f)
	}
	return int(f), true, nil
}

func cfgBool(cfg map[string]any, key string) (bool, bool, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return false, false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidConfig, key, raw)
	}
	return b, true, nil
}
