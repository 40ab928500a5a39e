package heuristic

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/ashureev/connsolve/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// Tables is the static lookup data the generator scores against.
type Tables struct {
	Categories map[string][]string `yaml:"categories"`
	Prefixes   []string            `yaml:"prefixes"`
	Suffixes   []string            `yaml:"suffixes"`
}

// ParseTables decodes a YAML table document and normalizes its words.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode heuristic tables: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("decode heuristic tables: no categories")
	}
	for name, words := range t.Categories {
		t.Categories[name] = domain.NormalizeWords(words)
	}
	t.Prefixes = domain.NormalizeWords(t.Prefixes)
	t.Suffixes = domain.NormalizeWords(t.Suffixes)
	return &t, nil
}

var defaultTables = sync.OnceValue(func() *Tables {
	t, err := ParseTables(tablesYAML)
	if err != nil {
		panic("heuristic: embedded tables are invalid: " + err.Error())
	}
	return t
})

// DefaultTables returns the embedded tables.
func DefaultTables() *Tables {
	return defaultTables()
}

// index maps each word to the categories that contain it.
func (t *Tables) index() map[string][]string {
	idx := make(map[string][]string)
	for name, words := range t.Categories {
		for _, w := range words {
			idx[w] = append(idx[w], name)
		}
	}
	return idx
}
