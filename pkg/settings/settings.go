// Package settings reads editor settings from a settings file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Reader reads a named setting under a named section. A setting that is not
// set reads as nil with no error.
type Reader interface {
	Get(section, key string) (any, error)
}

// FileReader reads settings from a JSONC file, such as
// .vscode/settings.json, or from a .yaml/.yml file. The file is re-read on every Get so edits are seen
// without a restart.
type FileReader struct {
	path string
}

// NewFileReader returns a FileReader for path.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

// Path returns the settings file location.
func (r *FileReader) Path() string {
	return r.path
}

// Get reads section.key. A missing file reads as empty settings.
func (r *FileReader) Get(section, key string) (any, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", r.path, err)
	}

	parse := Parse
	if ext := strings.ToLower(filepath.Ext(r.path)); ext == ".yaml" || ext == ".yml" {
		parse = ParseYAML
	}
	values, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", r.path, err)
	}
	return Lookup(values, section, key), nil
}

// Parse decodes settings in the editor's JSON dialect: comments and
// trailing commas are allowed.
func Parse(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(std, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// ParseYAML decodes settings written as YAML.
func ParseYAML(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Lookup resolves section.key the way editors do: the flat dotted key
// first ("workbench.panel.background"), then nested objects.
func Lookup(values map[string]any, section, key string) any {
	full := key
	if section != "" {
		full = section + "." + key
	}
	if v, ok := values[full]; ok {
		return v
	}
	return lookupPath(values, strings.Split(full, "."))
}

func lookupPath(values map[string]any, parts []string) any {
	var cur any = values
	for i := 0; i < len(parts); i++ {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		// Try the longest dotted remainder first, e.g. {"workbench": {"panel.background": ..}}.
		found := false
		for j := len(parts); j > i; j-- {
			if v, ok := m[strings.Join(parts[i:j], ".")]; ok {
				cur = v
				i = j - 1
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return cur
}

// Static is an in-memory Reader.
type Static struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStatic returns a Reader over values, keyed like a settings file.
func NewStatic(values map[string]any) *Static {
	if values == nil {
		values = map[string]any{}
	}
	return &Static{values: values}
}

func (s *Static) Get(section, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Lookup(s.values, section, key), nil
}

// Set stores a flat dotted key.
func (s *Static) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
