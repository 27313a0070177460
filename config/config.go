// Package config reads the accesslog YAML configuration file.
//
//	schedule: "@daily"
//	sets:
//	  set1:
//	    uidfield: eduPersonPrincipalName
//	    servicefield: entityid
//	    table: lastaccess
//	    removeafter: 3 # months
//	    mapping: {ip: ip, browser: browser, os: os}
//	    store:
//	      class: sql
//	      dsn: "pgsql:host=db;dbname=idp"
//	      username: idp
//	      password: ${ACCESSLOG_DB_PASSWORD}
//
// Set and mapping order is preserved. Store values undergo ${VAR} expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PaulFidika/accesslog/core"
	"gopkg.in/yaml.v3"
)

// File is a parsed configuration file.
type File struct {
	// Schedule is the cron expression used by the scheduler; empty means the default.
	Schedule string
	Sets     []core.SetConfig
}

type fileDoc struct {
	Schedule string    `yaml:"schedule"`
	Sets     yaml.Node `yaml:"sets"`
}

type setDoc struct {
	UIDField     string         `yaml:"uidfield"`
	ServiceField string         `yaml:"servicefield"`
	Table        string         `yaml:"table"`
	RemoveAfter  int            `yaml:"removeafter"`
	Mapping      *orderedMap    `yaml:"mapping"`
	Store        map[string]any `yaml:"store"`
}

type orderedMap struct {
	entries core.Mapping
}

func (m *orderedMap) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: mapping must be a map of column: attribute", n.Line)
	}
	m.entries = make(core.Mapping, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping value for %q must be a string", v.Line, k.Value)
		}
		m.entries = append(m.entries, core.MappingEntry{Column: k.Value, Source: v.Value})
	}
	return nil
}

// Load reads and parses path.
func Load(path string) (File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return File{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("config file %q: %w", absPath, err)
	}
	return f, nil
}

// Parse decodes a configuration document.
func Parse(data []byte) (File, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return File{}, fmt.Errorf("failed to decode YAML: %w", err)
	}
	out := File{Schedule: strings.TrimSpace(doc.Schedule)}
	if doc.Sets.Kind == 0 {
		return out, nil
	}
	if doc.Sets.Kind != yaml.MappingNode {
		return File{}, fmt.Errorf("line %d: sets must be a map of name: set", doc.Sets.Line)
	}
	for i := 0; i+1 < len(doc.Sets.Content); i += 2 {
		name, body := doc.Sets.Content[i].Value, doc.Sets.Content[i+1]
		var sd setDoc
		if err := body.Decode(&sd); err != nil {
			return File{}, fmt.Errorf("set %q: %w", name, err)
		}
		cfg := core.SetConfig{
			Name:         name,
			UIDField:     sd.UIDField,
			ServiceField: sd.ServiceField,
			Table:        sd.Table,
			RemoveAfter:  sd.RemoveAfter,
			Store:        storeConfig(sd.Store),
		}
		if sd.Mapping != nil {
			cfg.Mapping = sd.Mapping.entries
		}
		out.Sets = append(out.Sets, cfg)
	}
	return out, nil
}

// storeConfig splits the backend kind ("class" or "kind") from its parameters.
func storeConfig(raw map[string]any) core.StoreConfig {
	sc := core.StoreConfig{Params: make(map[string]string, len(raw))}
	for k, v := range raw {
		s := ""
		if v != nil {
			s = os.ExpandEnv(fmt.Sprint(v))
		}
		switch k {
		case "class", "kind":
			sc.Kind = strings.TrimSpace(s)
		default:
			sc.Params[k] = s
		}
	}
	return sc
}
