package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the syntax of a rules document
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var (
	ErrMissingPattern = errors.New(`missing required field "pattern"`)
	ErrMissingGroups  = errors.New(`missing required field "groups"`)
	ErrEmptyPattern   = errors.New("pattern must not be empty")
	ErrGroupCount     = errors.New("group names do not match capture groups")
	ErrDuplicateKind  = errors.New("duplicate event kind")
)

// ruleSpec is one rule as written in the document. Pointers tell a missing
// field apart from an empty one.
type ruleSpec struct {
	Pattern *string   `json:"pattern" yaml:"pattern"`
	Groups  *[]string `json:"groups" yaml:"groups"`
}

type namedSpec struct {
	kind string
	spec ruleSpec
	err  error
}

// FormatFromPath picks the document format from the file extension.
// Anything that is not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and compiles the rules document at path
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to read rules file: %w", err)}
	}
	return parse(path, data, FormatFromPath(path))
}

// Parse compiles a rules document held in memory
func Parse(data []byte, format Format) (*RuleSet, error) {
	return parse("", data, format)
}

func parse(path string, data []byte, format Format) (*RuleSet, error) {
	var (
		specs []namedSpec
		err   error
	)
	switch format {
	case FormatYAML:
		specs, err = decodeYAML(data)
	default:
		specs, err = decodeJSON(data)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	seen := make(map[string]struct{}, len(specs))
	compiled := make([]Rule, 0, len(specs))
	for _, s := range specs {
		if _, dup := seen[s.kind]; dup {
			return nil, &ConfigError{Path: path, Kind: s.kind, Err: ErrDuplicateKind}
		}
		seen[s.kind] = struct{}{}

		if s.err != nil {
			return nil, &ConfigError{Path: path, Kind: s.kind, Err: s.err}
		}

		rule, err := compileRule(s.kind, s.spec)
		if err != nil {
			return nil, &ConfigError{Path: path, Kind: s.kind, Err: err}
		}
		compiled = append(compiled, rule)
	}

	return NewRuleSet(compiled...), nil
}

func compileRule(kind string, spec ruleSpec) (Rule, error) {
	if kind == "" {
		return Rule{}, errors.New("event kind must not be empty")
	}
	if spec.Pattern == nil {
		return Rule{}, ErrMissingPattern
	}
	if spec.Groups == nil {
		return Rule{}, ErrMissingGroups
	}
	if *spec.Pattern == "" {
		return Rule{}, ErrEmptyPattern
	}

	re, err := regexp.Compile(*spec.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid pattern: %w", err)
	}

	groups := *spec.Groups
	if re.NumSubexp() != len(groups) {
		return Rule{}, fmt.Errorf("%w: pattern has %d, groups lists %d",
			ErrGroupCount, re.NumSubexp(), len(groups))
	}

	names := make(map[string]struct{}, len(groups))
	for i, name := range groups {
		if name == "" {
			return Rule{}, fmt.Errorf("group %d has an empty name", i+1)
		}
		if _, dup := names[name]; dup {
			return Rule{}, fmt.Errorf("group name %q is used more than once", name)
		}
		names[name] = struct{}{}
	}

	return Rule{
		Kind:    kind,
		Pattern: re,
		Groups:  append([]string(nil), groups...),
	}, nil
}

// decodeJSON walks the top-level object token by token so rule order survives
func decodeJSON(data []byte) ([]namedSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("top level must be an object of rules")
	}

	var specs []namedSpec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		kind, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}

		s := namedSpec{kind: kind}
		if err := json.Unmarshal(raw, &s.spec); err != nil {
			s.err = fmt.Errorf("rule must be an object with pattern and groups: %w", err)
		}
		specs = append(specs, s)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected content after rules object")
	}

	return specs, nil
}

// decodeYAML reads the document into a node tree, which keeps mapping order
func decodeYAML(data []byte) ([]namedSpec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("rules document is empty")
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping of rules")
	}

	specs := make([]namedSpec, 0, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: event kind must be a string", key.Line)
		}

		s := namedSpec{kind: key.Value}
		if value.Kind != yaml.MappingNode && !(value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null") {
			s.err = fmt.Errorf("line %d: rule must be a mapping with pattern and groups", value.Line)
		} else if err := value.Decode(&s.spec); err != nil {
			s.err = fmt.Errorf("line %d: %w", value.Line, err)
		}
		specs = append(specs, s)
	}

	return specs, nil
}
