package dsl

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatDSL  Format = "dsl"
)

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".dsl":
		return FormatDSL, true
	}
	return "", false
}

// envelope accepts both a bare {"models": [...]} document and a full DMMF
// document with a "datamodel" section.
type envelope struct {
	Datamodel *Description `json:"datamodel" yaml:"datamodel"`
	Models    []Model      `json:"models" yaml:"models"`
	Enums     []Enum       `json:"enums" yaml:"enums"`
}

func (e envelope) description() *Description {
	if e.Datamodel != nil {
		return e.Datamodel
	}
	return &Description{Models: e.Models, Enums: e.Enums}
}

// Parse decodes a description in the given format.
func Parse(data []byte, format Format) (*Description, error) {
	var env envelope
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode json description: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode yaml description: %w", err)
		}
	case FormatDSL:
		return ParseDSL(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unknown description format %q", format)
	}
	return env.description(), nil
}

// Load reads a description file, or walks a directory and merges every
// .json, .yaml, .yml and .dsl file in lexical order.
func Load(path string) (*Description, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := FormatOf(p); ok {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	out := &Description{}
	seen := map[string]string{}
	for _, f := range files {
		d, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range d.Models {
			if prev, ok := seen[m.Name]; ok {
				return nil, fmt.Errorf("duplicate model %q in %s (first declared in %s)", m.Name, f, prev)
			}
			seen[m.Name] = f
		}
		out.Merge(d)
	}
	return out, nil
}

func loadFile(path string) (*Description, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported description file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}
