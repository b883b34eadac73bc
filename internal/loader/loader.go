// Package loader reads quest content files (YAML) and builds the immutable
// condition and objective trees the engine runs. All validation happens
// here at load time: a document that loads never fails structurally at
// evaluation time.
package loader

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/quest-engine/pkg/condition"
	"github.com/jwebster45206/quest-engine/pkg/objective"
)

//go:embed schema.json
var schemaJSON string

var contentSchema = jsonschema.MustCompileString("schema.json", schemaJSON)

// Content is the parsed result of one or more content files.
type Content struct {
	Objectives []objective.Objective
	Conditions map[string]condition.Condition
}

type document struct {
	Objectives []objectiveDoc `yaml:"objectives"`
	Conditions []conditionDoc `yaml:"conditions"`
}

type objectiveDoc struct {
	ID        string         `yaml:"id"`
	EventType string         `yaml:"event_type"`
	Target    int            `yaml:"target"`
	Match     map[string]any `yaml:"match"`
	Metadata  map[string]any `yaml:"metadata"`
}

type conditionDoc struct {
	ID   string          `yaml:"id"`
	Root *condition.Node `yaml:"root"`
}

// LoadDir loads every *.yaml and *.yml file in dir. IDs must be unique
// across the whole directory.
func LoadDir(reg *condition.Registry, dir string) (*Content, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read content dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	// Deterministic load order regardless of directory listing order.
	sort.Strings(files)

	content := &Content{Conditions: make(map[string]condition.Condition)}
	seenObjectives := make(map[string]string)

	for _, file := range files {
		doc, err := LoadFile(reg, file)
		if err != nil {
			return nil, err
		}
		for _, obj := range doc.Objectives {
			if prev, dup := seenObjectives[obj.ID()]; dup {
				return nil, fmt.Errorf("%s: objective %q already defined in %s", file, obj.ID(), prev)
			}
			seenObjectives[obj.ID()] = file
			content.Objectives = append(content.Objectives, obj)
		}
		for id, cond := range doc.Conditions {
			if _, dup := content.Conditions[id]; dup {
				return nil, fmt.Errorf("%s: condition %q already defined", file, id)
			}
			content.Conditions[id] = cond
		}
	}

	if err := content.CheckReferences(); err != nil {
		return nil, err
	}
	return content, nil
}

// CheckReferences verifies that every objective a condition tree names is
// defined, so a typoed id fails at load rather than silently evaluating
// false. References may cross files, so this runs after merging.
func (c *Content) CheckReferences() error {
	ids := make(map[string]struct{}, len(c.Objectives))
	for _, obj := range c.Objectives {
		ids[obj.ID()] = struct{}{}
	}
	for id, cond := range c.Conditions {
		for _, ref := range referencedObjectives(cond.Node()) {
			if _, ok := ids[ref]; !ok {
				return fmt.Errorf("condition %q references unknown objective %q", id, ref)
			}
		}
	}
	return nil
}

// LoadFile loads a single content file.
func LoadFile(reg *condition.Registry, path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content, err := Parse(reg, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return content, nil
}

// Parse validates and builds a content document from YAML bytes.
func Parse(reg *condition.Registry, data []byte) (*Content, error) {
	// Structural validation against the schema first, so authors get
	// shape errors before semantic ones.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := contentSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	content := &Content{Conditions: make(map[string]condition.Condition)}

	for i, od := range doc.Objectives {
		obj, err := objective.NewCounter(od.ID, od.EventType, od.Target, od.Match, od.Metadata)
		if err != nil {
			return nil, fmt.Errorf("objectives[%d]: %w", i, err)
		}
		content.Objectives = append(content.Objectives, obj)
	}

	for i, cd := range doc.Conditions {
		cond, err := condition.Decode(reg, cd.Root)
		if err != nil {
			return nil, fmt.Errorf("conditions[%d] (%s): %w", i, cd.ID, err)
		}
		if _, dup := content.Conditions[cd.ID]; dup {
			return nil, fmt.Errorf("conditions[%d]: condition %q already defined", i, cd.ID)
		}
		content.Conditions[cd.ID] = cond
	}

	return content, nil
}

func referencedObjectives(n *condition.Node) []string {
	if n == nil {
		return nil
	}
	var ids []string
	if n.Kind == condition.KindObjectiveComplete {
		if id, ok := n.Params["objective"].(string); ok {
			ids = append(ids, id)
		}
	}
	for _, child := range n.Children {
		ids = append(ids, referencedObjectives(child)...)
	}
	return ids
}

// IsContentFile reports whether a filename looks like a content document,
// used by the validate command when walking mixed directories.
func IsContentFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
