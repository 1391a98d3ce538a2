package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source records where a key was last set.
type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	if s.Kind != SourceFile || s.File == "" {
		return string(SourceDefault)
	}
	if s.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
	}
	return s.File
}

type LoadResult struct {
	Config *Config
	// Sources maps a dotted YAML path to the file position that set it last.
	Sources map[string]Source
	// Files lists every file applied, in application order.
	Files []string
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "steer", "config.yaml"), nil
}

// Load reads the configuration from the standard location. A missing file
// yields the defaults.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources is Load, keeping track of where each key came from.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath applies path (and anything it includes) on top of the
// defaults and validates the result. A missing file yields the defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	l := &loader{
		cfg:     DefaultConfig(),
		sources: map[string]Source{},
		applied: map[string]bool{},
	}

	if _, err := os.Stat(path); err == nil {
		if err := l.apply(path, nil); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	l.cfg.Include = nil

	if err := l.cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			if src, ok := l.sources[verr.Path]; ok {
				verr.Source = src
			}
		}
		return nil, err
	}

	return &LoadResult{Config: l.cfg, Sources: l.sources, Files: l.files}, nil
}

// loader applies a tree of config files onto one Config.
type loader struct {
	cfg     *Config
	sources map[string]Source
	applied map[string]bool
	files   []string
}

// apply decodes path onto the config. Includes are applied before the
// file itself so the including file wins. chain holds the files currently
// being applied, for cycle detection.
func (l *loader) apply(path string, chain []string) error {
	canon := canonicalPath(path)
	if slices.Contains(chain, canon) {
		return fmt.Errorf("include cycle detected: %s -> %s", strings.Join(chain, " -> "), canon)
	}
	if l.applied[canon] {
		return nil
	}
	l.applied[canon] = true

	data, err := os.ReadFile(canon)
	if err != nil {
		return fmt.Errorf("%s: failed to read: %w", canon, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
	}
	root := documentRoot(&doc)

	chain = append(chain, canon)
	for _, inc := range includeEntries(root, canon) {
		paths, err := expandInclude(canon, inc.Value)
		if err != nil {
			return fmt.Errorf("%s: include %q: %w", inc.Source, inc.Value, err)
		}
		for _, p := range paths {
			if err := l.apply(p, chain); err != nil {
				return err
			}
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(l.cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", canon, err)
	}
	recordSources(root, canon, "", l.sources)
	l.files = append(l.files, canon)
	return nil
}

func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}

// expandInclude resolves an include entry relative to the including file.
// A directory expands to its *.yaml and *.yml files in lexical order.
func expandInclude(from, include string) ([]string, error) {
	if include == "" {
		return nil, fmt.Errorf("path is empty")
	}
	path, err := expandHome(include)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(from), path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		switch strings.ToLower(filepath.Ext(ent.Name())) {
		case ".yaml", ".yml":
			if !ent.IsDir() {
				files = append(files, filepath.Join(path, ent.Name()))
			}
		}
	}
	slices.Sort(files)
	return files, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/")), nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

func nodeSource(file string, n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
}

// recordSources stores the position of every mapping value under prefix.
func recordSources(n *yaml.Node, file, prefix string, out map[string]Source) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		val := n.Content[i+1]
		out[key] = nodeSource(file, val)
		recordSources(val, file, key, out)
	}
}

type includeEntry struct {
	Value  string
	Source Source
}

// includeEntries returns the top-level include values of a document.
// Malformed values are left for the strict decode to report.
func includeEntries(root *yaml.Node, file string) []includeEntry {
	if root == nil || root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "include" {
			continue
		}
		val := root.Content[i+1]
		items := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			items = val.Content
		}
		var out []includeEntry
		for _, it := range items {
			if it.Kind == yaml.ScalarNode {
				out = append(out, includeEntry{Value: it.Value, Source: nodeSource(file, it)})
			}
		}
		return out
	}
	return nil
}
