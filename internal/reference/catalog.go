package reference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MM25Zamanian/prismate/internal/schema"
)

// LoadEnumCatalog reads every *.yaml / *.yml file of dir as an
// EnumDirectory. The catalog name comes from the file's name key, or the
// file name without extension. A missing dir yields an empty catalog.
func LoadEnumCatalog(dir string) (map[string]EnumDirectory, error) {
	result := make(map[string]EnumDirectory)
	if dir == "" {
		return result, nil
	}
	files, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		ext := filepath.Ext(file.Name())
		if file.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if enumDir.Name == "" {
			enumDir.Name = strings.TrimSuffix(file.Name(), ext)
		}
		result[enumDir.Name] = enumDir
	}
	return result, nil
}

// Catalog merges enums declared in the schema with catalogs loaded from
// files. File catalogs win for names they define.
type Catalog struct {
	dirs  map[string]EnumDirectory
	index map[string]string
}

func NewCatalog(declared map[string][]string, files map[string]EnumDirectory) *Catalog {
	c := &Catalog{dirs: map[string]EnumDirectory{}, index: map[string]string{}}
	for name, values := range declared {
		items := make([]EnumItem, len(values))
		for i, v := range values {
			items[i] = EnumItem{Code: v, Name: v, Order: i + 1}
		}
		c.add(EnumDirectory{Name: name, Items: items})
	}
	for _, d := range files {
		items := append([]EnumItem(nil), d.Items...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
		for i := range items {
			if items[i].Name == "" {
				items[i].Name = items[i].Code
			}
		}
		c.add(EnumDirectory{Name: d.Name, Items: items})
	}
	return c
}

func (c *Catalog) add(d EnumDirectory) {
	c.dirs[d.Name] = d
	c.index[schema.Normalize(d.Name)] = d.Name
}

// Get looks a catalog up by any spelling of its name.
func (c *Catalog) Get(name string) (EnumDirectory, bool) {
	if d, ok := c.dirs[name]; ok {
		return d, true
	}
	key, ok := c.index[schema.Normalize(name)]
	if !ok {
		return EnumDirectory{}, false
	}
	return c.dirs[key], true
}

// Names returns catalog names sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.dirs))
	for k := range c.dirs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
