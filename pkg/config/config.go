package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// autosavePrefix marks lines written by SaveKinematics. They are parsed as
// ordinary config after the prefix is stripped.
const autosavePrefix = "#*#"

// Config provides access to a configuration file with access tracking.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string

	accessedSections map[string]struct{}
}

// New creates a new empty Config.
func New() *Config {
	return &Config{
		sections:         make(map[string]*Section),
		accessedSections: make(map[string]struct{}),
	}
}

// Load reads a configuration file. [include <glob>] headers pull in other
// files relative to the including file.
func Load(path string) (*Config, error) {
	c := New()
	p := &parser{cfg: c, visited: make(map[string]bool)}
	if err := p.parseFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses a configuration from a string. Include directives are
// rejected since there is no directory to resolve them against.
func LoadString(data string) (*Config, error) {
	c := New()
	p := &parser{cfg: c}
	if err := p.parse(strings.NewReader(data), "", ""); err != nil {
		return nil, err
	}
	return c, nil
}

type parser struct {
	cfg     *Config
	visited map[string]bool
}

func (p *parser) parseFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &ConfigError{File: path, Message: "invalid path", Cause: err}
	}
	if p.visited[abs] {
		return parseError(path, 0, "recursive include")
	}
	p.visited[abs] = true
	defer delete(p.visited, abs)

	f, err := os.Open(abs)
	if err != nil {
		return &ConfigError{File: path, Message: "unable to open: " + err.Error(), Cause: err}
	}
	defer f.Close()
	return p.parse(f, path, filepath.Dir(abs))
}

// parse reads one file. dir is where includes resolve; empty disables them.
func (p *parser) parse(r io.Reader, name, dir string) error {
	var section string
	var options map[string]string
	flush := func() {
		if section != "" {
			p.cfg.addSection(section, options)
		}
		section, options = "", nil
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == saveMarker || line == saveNotice {
			continue
		}
		if strings.HasPrefix(line, autosavePrefix) {
			line = strings.TrimSpace(line[len(autosavePrefix):])
		}
		if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return parseError(name, lineNum, "empty section header")
			}
			if pattern, ok := strings.CutPrefix(header, "include "); ok {
				if err := p.include(strings.TrimSpace(pattern), name, lineNum, dir); err != nil {
					return err
				}
				continue
			}
			section = header
			options = make(map[string]string)
			continue
		}

		if section == "" {
			return parseError(name, lineNum, "option outside of a section: %q", line)
		}

		key, value, ok := splitOption(line)
		if !ok {
			return parseError(name, lineNum, "expected 'key: value', got %q", line)
		}
		options[key] = value
	}
	flush()

	if err := scanner.Err(); err != nil {
		return &ConfigError{File: name, Message: "read error: " + err.Error(), Cause: err}
	}
	return nil
}

func (p *parser) include(pattern, name string, lineNum int, dir string) error {
	if pattern == "" {
		return parseError(name, lineNum, "empty include")
	}
	if dir == "" || p.visited == nil {
		return parseError(name, lineNum, "include not supported here")
	}
	glob := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(glob)
	if err != nil {
		return parseError(name, lineNum, "invalid include pattern %q", pattern)
	}
	if len(matches) == 0 && !strings.ContainsAny(glob, "*?[") {
		return parseError(name, lineNum, "include file does not exist: %s", glob)
	}
	sort.Strings(matches)
	for _, m := range matches {
		if err := p.parseFile(m); err != nil {
			return err
		}
	}
	return nil
}

// splitOption accepts "key: value" and "key = value", whichever separator
// comes first.
func splitOption(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, ":=")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}

// addSection adds a section, merging options into an existing one. Later
// values win.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// GetSection returns a Section by name, or error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	if sec := c.GetSectionOptional(name); sec != nil {
		return sec, nil
	}
	return nil, ErrMissingSection(name)
}

// GetSectionOptional returns a Section if it exists, or nil if not.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if ok {
		c.accessedSections[name] = struct{}{}
	}
	return sec
}

// HasSection checks if a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// GetSections returns all sections in file order. It does not count as
// access.
func (c *Config) GetSections() []*Section {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Section, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.sections[name])
	}
	return result
}

// GetSectionNames returns all section names in order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// GetUnusedSections returns a sorted list of sections that were not accessed.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []string
	for name := range c.sections {
		if _, ok := c.accessedSections[name]; !ok {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

func (c *Config) accessed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.accessedSections[name]
	return ok
}
