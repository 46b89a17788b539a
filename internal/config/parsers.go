// Package config loads rapidreset settings from flags and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// fileSettings is one level of a decoded config file. Keys are folded by
// settingKey so connect_timeout, connect-timeout and connectTimeout all match.
type fileSettings map[string]interface{}

func settingKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

func newFileSettings(value interface{}) (fileSettings, error) {
	if value == nil {
		return fileSettings{}, nil
	}
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected a table, got %T", value)
	}
	out := make(fileSettings, len(m))
	for k, v := range m {
		out[settingKey(k)] = v
	}
	return out, nil
}

// find returns the first of keys present. The first key names the setting in errors.
func (s fileSettings) find(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := s[settingKey(k)]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s fileSettings) readString(dst *string, keys ...string) error {
	raw, ok := s.find(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = strings.TrimSpace(v)
	return nil
}

// readInt accepts whole numbers written as numbers or quoted strings.
func (s fileSettings) readInt(dst *int, keys ...string) error {
	raw, ok := s.find(keys...)
	if !ok {
		return nil
	}
	v, err := toInt(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s fileSettings) readFloat(dst *float64, keys ...string) error {
	raw, ok := s.find(keys...)
	if !ok {
		return nil
	}
	if str, isStr := raw.(string); isStr {
		raw = strings.TrimSpace(str)
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s fileSettings) readBool(dst *bool, keys ...string) error {
	raw, ok := s.find(keys...)
	if !ok {
		return nil
	}
	if str, isStr := raw.(string); isStr {
		raw = strings.TrimSpace(str)
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

// readDuration takes a Go duration string, or a bare number of seconds.
func (s fileSettings) readDuration(dst *time.Duration, keys ...string) error {
	raw, ok := s.find(keys...)
	if !ok {
		return nil
	}
	v, err := toDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

// readStrings keeps a lone string as a single entry; threshold expressions contain spaces.
func (s fileSettings) readStrings(dst *[]string, keys ...string) error {
	raw, ok := s.find(keys...)
	if !ok {
		return nil
	}
	if str, isStr := raw.(string); isStr {
		*dst = []string{str}
		return nil
	}
	v, err := cast.ToStringSliceE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func toInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		raw = v
	case bool:
		return 0, fmt.Errorf("want a number, got %v", v)
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("want a number, got %v", raw)
	}
	return n, nil
}

func toDuration(raw interface{}) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		raw = v
	}
	secs, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("want a duration like 3s, got %v", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
