// Package presets holds a small table of named image-size presets for
// mkblockfs, loaded from an embedded CSV table the same way the teacher
// loads its disk-geometry catalog.
package presets

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// ImagePreset is one named, ready-to-format image configuration.
type ImagePreset struct {
	Slug              string `csv:"slug"`
	Name              string `csv:"name"`
	TotalBlocks       uint   `csv:"total_blocks"`
	InodeRegionBlocks uint   `csv:"inode_region_blocks"`
	Notes             string `csv:"notes"`
}

//go:embed presets.csv
var rawCSV string

var bySlug map[string]ImagePreset

func init() {
	bySlug = make(map[string]ImagePreset)
	var rows []ImagePreset
	if err := gocsv.UnmarshalString(rawCSV, &rows); err != nil {
		panic(fmt.Sprintf("presets: malformed embedded CSV: %v", err))
	}
	for _, row := range rows {
		if _, exists := bySlug[row.Slug]; exists {
			panic(fmt.Sprintf("presets: duplicate slug %q", row.Slug))
		}
		bySlug[row.Slug] = row
	}
}

// Get returns the named preset, or an error listing the known slugs.
func Get(slug string) (ImagePreset, error) {
	preset, ok := bySlug[slug]
	if ok {
		return preset, nil
	}
	return ImagePreset{}, fmt.Errorf("no preset named %q (known: %s)", slug, strings.Join(Slugs(), ", "))
}

// Slugs returns every known preset slug.
func Slugs() []string {
	slugs := make([]string, 0, len(bySlug))
	for slug := range bySlug {
		slugs = append(slugs, slug)
	}
	return slugs
}
