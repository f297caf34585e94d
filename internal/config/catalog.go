// Package config provides the package catalog: the ordered category
// lists of software this tool provisions.
//
// Categories are a presentation and ordering convenience only; every
// package installs the same way. The built-in defaults can be replaced
// wholesale by a packages.yaml under the user's XDG config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Category is a named, ordered list of package names.
type Category struct {
	Name     string   `yaml:"name"`
	Packages []string `yaml:"packages"`
}

// Catalog is the full install plan, categories in install order.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Default returns the built-in catalog. Install order is fixed: core
// tools first, then editor, terminal multiplexer, language runtimes.
func Default() *Catalog {
	return &Catalog{
		Categories: []Category{
			{Name: "core", Packages: []string{"git", "curl", "wget", "htop", "tree", "ripgrep"}},
			{Name: "editor", Packages: []string{"neovim"}},
			{Name: "multiplexer", Packages: []string{"tmux"}},
			{Name: "languages", Packages: []string{"golang", "nodejs", "python3"}},
		},
	}
}

// Path returns the user override location,
// $XDG_CONFIG_HOME/bivouac/packages.yaml.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "bivouac", "packages.yaml")
}

// Load returns the user's catalog override if one exists, falling back
// to the built-in defaults when the file is absent.
func Load() (*Catalog, error) {
	return LoadFrom(Path())
}

// LoadFrom reads a catalog from path. A missing file yields the default
// catalog without error; a present but malformed or empty file is an
// error so a typo never silently reverts the plan to the defaults.
func LoadFrom(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	if len(catalog.Categories) == 0 {
		return nil, fmt.Errorf("catalog %s declares no categories", path)
	}
	for _, c := range catalog.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("catalog %s has a category without a name", path)
		}
	}

	return &catalog, nil
}
