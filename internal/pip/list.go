package pip

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// ParseList decodes the output of `pip list --format=json`:
//
//	[{"name": "joblib", "version": "1.3.2"}, ...]
//
// Entries with an empty name are dropped. Blank output decodes to an
// empty listing, which is what pip prints for an empty environment on
// some versions.
func ParseList(data []byte) ([]model.Package, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []model.Package{}, nil
	}

	var raw []model.Package
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode pip list output: %w", err)
	}

	pkgs := make([]model.Package, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

// Filter returns the packages whose name contains any of patterns,
// sorted by name.
//
// Matching is a case-insensitive substring test because Python
// distribution names are case-insensitive ("Jinja2" and "jinja2" are the
// same package). Blank patterns are ignored, so an empty pattern list
// matches nothing rather than everything.
func Filter(pkgs []model.Package, patterns []string) []model.Package {
	needles := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			needles = append(needles, p)
		}
	}

	matched := make([]model.Package, 0)
	for _, pkg := range pkgs {
		name := strings.ToLower(pkg.Name)
		for _, needle := range needles {
			if strings.Contains(name, needle) {
				matched = append(matched, pkg)
				break
			}
		}
	}

	model.SortPackages(matched)
	return matched
}
