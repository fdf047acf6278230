// Package catalog reads listing definitions from a YAML file.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the top-level YAML document:
//
//	listings:
//	  - id: SHOP_001
//	    name: Shops, mixed
//	    category: SHOP
//	    file: files/shop_001.txt
//	    price_cents: 1500
type Catalog struct {
	Listings []Entry `yaml:"listings"`
}

type Entry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	// File is resolved against the catalog's directory when relative.
	File       string `yaml:"file"`
	PriceCents *int64 `yaml:"price_cents"`
	// Available defaults to true when omitted.
	Available *bool `yaml:"available"`
}

// Load parses the catalog at path and resolves relative file paths.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	dir := filepath.Dir(path)
	seen := make(map[string]bool, len(c.Listings))
	for i := range c.Listings {
		e := &c.Listings[i]
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			return nil, fmt.Errorf("listing %d: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("listing %q: duplicate id", e.ID)
		}
		seen[e.ID] = true
		if e.File == "" {
			return nil, fmt.Errorf("listing %q: file is required", e.ID)
		}
		if !filepath.IsAbs(e.File) {
			e.File = filepath.Join(dir, e.File)
		}
	}
	return &c, nil
}

// IsAvailable reports the entry's availability flag, defaulting to true.
func (e Entry) IsAvailable() bool {
	return e.Available == nil || *e.Available
}
