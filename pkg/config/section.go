package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Section is one [name] block. Every getter records the option as read so
// leftovers can be reported as unknown.
type Section struct {
	name    string
	options map[string]string

	mu   sync.RWMutex
	read map[string]bool
}

func newSection(name string, options map[string]string) *Section {
	s := &Section{
		name:    name,
		options: make(map[string]string, len(options)),
		read:    make(map[string]bool),
	}
	for k, v := range options {
		s.options[strings.ToLower(k)] = v
	}
	return s
}

// GetName returns the section name.
func (s *Section) GetName() string {
	return s.name
}

func (s *Section) markAccessed(option string) {
	s.mu.Lock()
	s.read[strings.ToLower(option)] = true
	s.mu.Unlock()
}

// lookup returns the raw value. The option counts as read when present or
// when the caller has a fallback for it.
func (s *Section) lookup(option string, hasFallback bool) (string, bool) {
	v, ok := s.options[strings.ToLower(option)]
	if ok || hasFallback {
		s.markAccessed(option)
	}
	return v, ok
}

// GetUnusedOptions returns the options no getter asked for, sorted.
func (s *Section) GetUnusedOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var unused []string
	for opt := range s.options {
		if !s.read[opt] {
			unused = append(unused, opt)
		}
	}
	sort.Strings(unused)
	return unused
}

// HasOption reports whether option is set, without marking it read.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// getTyped reads option through parse. kind names the expected type in
// error messages.
func getTyped[T any](s *Section, option, kind string, parse func(string) (T, bool), fallback []T) (T, error) {
	var zero T
	raw, ok := s.lookup(option, len(fallback) > 0)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return zero, ErrMissingOption(s.name, option)
	}
	v, ok := parse(strings.TrimSpace(raw))
	if !ok {
		return zero, ErrInvalidValue(s.name, option, raw, kind)
	}
	return v, nil
}

// Get returns a string option value, the fallback if the option is absent,
// or an error when neither exists.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	return getTyped(s, option, "string", func(v string) (string, bool) { return v, true }, fallback)
}

// GetInt returns an integer option value.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	return getTyped(s, option, "integer", func(v string) (int, bool) {
		i, err := strconv.Atoi(v)
		return i, err == nil
	}, fallback)
}

// GetIntWithBounds is GetInt with inclusive limits; nil means unbounded.
func (s *Section) GetIntWithBounds(option string, minVal, maxVal *int, fallback ...int) (int, error) {
	v, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	b := FloatBounds{}
	if minVal != nil {
		b.MinVal = Float(float64(*minVal))
	}
	if maxVal != nil {
		b.MaxVal = Float(float64(*maxVal))
	}
	if err := b.check(s.name, option, float64(v)); err != nil {
		return 0, err
	}
	return v, nil
}

// GetFloat returns a float64 option value.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	return getTyped(s, option, "float", func(v string) (float64, bool) {
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}, fallback)
}

// FloatBounds limits a numeric option. Nil fields are not checked.
type FloatBounds struct {
	MinVal *float64 // >=
	MaxVal *float64 // <=
	Above  *float64 // >
	Below  *float64 // <
}

// Float returns a pointer to v, for building FloatBounds.
func Float(v float64) *float64 { return &v }

func (b FloatBounds) check(section, option string, v float64) error {
	limits := []struct {
		bound *float64
		fails func(v, b float64) bool
		text  string
	}{
		{b.MinVal, func(v, b float64) bool { return v < b }, "must have minimum of "},
		{b.MaxVal, func(v, b float64) bool { return v > b }, "must have maximum of "},
		{b.Above, func(v, b float64) bool { return v <= b }, "must be above "},
		{b.Below, func(v, b float64) bool { return v >= b }, "must be below "},
	}
	for _, l := range limits {
		if l.bound != nil && l.fails(v, *l.bound) {
			return ErrOutOfRange(section, option, v, l.text+strconv.FormatFloat(*l.bound, 'f', -1, 64))
		}
	}
	return nil
}

// GetFloatWithBounds is GetFloat with limits applied to the result,
// including a fallback.
func (s *Section) GetFloatWithBounds(option string, bounds FloatBounds, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	if err := bounds.check(s.name, option, v); err != nil {
		return 0, err
	}
	return v, nil
}

// GetBool accepts 1/0, true/false, yes/no and on/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	return getTyped(s, option, "boolean (true/false/yes/no/on/off/1/0)", func(v string) (bool, bool) {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off":
			return false, true
		}
		return false, false
	}, fallback)
}

// GetChoice returns the canonical spelling of one of choices, matched
// case-insensitively.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// RawOptions returns a copy of the option map with lower-cased keys.
func (s *Section) RawOptions() map[string]string {
	out := make(map[string]string, len(s.options))
	for k, v := range s.options {
		out[k] = v
	}
	return out
}
