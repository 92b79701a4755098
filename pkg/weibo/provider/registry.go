package provider

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var profilesFS embed.FS

// catalog is the built-in provider catalog.
var catalog = &Registry{}

// Registry holds the embedded profiles indexed by name.
type Registry struct {
	once    sync.Once
	byName  map[string]*Profile
	loadErr error
}

// load parses all embedded YAML profiles.
func (r *Registry) load() {
	r.once.Do(func() {
		r.byName = make(map[string]*Profile)

		entries, err := profilesFS.ReadDir("profiles")
		if err != nil {
			r.loadErr = fmt.Errorf("reading profiles dir: %w", err)
			return
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			data, err := profilesFS.ReadFile("profiles/" + entry.Name())
			if err != nil {
				r.loadErr = fmt.Errorf("reading %s: %w", entry.Name(), err)
				return
			}

			p, err := Parse(data)
			if err != nil {
				r.loadErr = fmt.Errorf("%s: %w", entry.Name(), err)
				return
			}
			r.byName[p.Name] = p
		}
	})
}

// Lookup returns a copy of the built-in profile with the given name.
func Lookup(name string) (*Profile, error) {
	catalog.load()
	if catalog.loadErr != nil {
		return nil, catalog.loadErr
	}
	p, ok := catalog.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", name, Names())
	}
	return p.Clone(), nil
}

// Names returns the built-in provider names, sorted.
func Names() []string {
	catalog.load()
	names := make([]string, 0, len(catalog.byName))
	for name := range catalog.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns copies of every built-in profile, sorted by name.
func All() []*Profile {
	names := Names()
	out := make([]*Profile, 0, len(names))
	for _, name := range names {
		out = append(out, catalog.byName[name].Clone())
	}
	return out
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	p := new(Profile)
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile reads a profile from a YAML file outside the built-in catalog.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading provider file: %w", err)
	}
	return Parse(data)
}
