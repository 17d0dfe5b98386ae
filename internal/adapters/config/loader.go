// Package config provides the project-file loader and environment
// overrides for kiln.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Load reads a project file and returns the validated domain project.
// Relative directories resolve against the project file's directory.
func Load(path string) (*domain.Project, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read project file")
	}

	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, zerr.Wrap(err, "failed to parse project file")
	}

	base := filepath.Dir(path)
	proj := &domain.Project{
		Name: pf.Name,
		Layout: domain.Layout{
			Root:            resolveDir(base, pf.Root, "."),
			IntermediateDir: resolveDir(base, pf.IntermediateDir, "obj"),
			OutputDir:       resolveDir(base, pf.OutputDir, "bin"),
		},
		Packed:        pf.Pack.Mode != "loose",
		Compress:      pf.Pack.Compress,
		HighCompress:  pf.Pack.High,
		PackSizeLimit: pf.Pack.SizeLimit,
	}
	if proj.Name == "" {
		proj.Name = filepath.Base(base)
	}
	if proj.PackSizeLimit <= 0 {
		proj.PackSizeLimit = domain.DefaultPackSizeLimit
	}
	if pf.Pack.Mode != "" && pf.Pack.Mode != "loose" && pf.Pack.Mode != "packed" {
		return nil, zerr.With(zerr.New("invalid pack mode"), "mode", pf.Pack.Mode)
	}

	seen := make(map[string]bool, len(pf.Items))
	for _, dto := range pf.Items {
		if dto.Source == "" {
			return nil, zerr.New("item is missing a source path")
		}
		if dto.Type == "" {
			return nil, zerr.With(zerr.New("item is missing a content type"), "source", dto.Source)
		}
		name := dto.Name
		if name == "" {
			name = strings.TrimSuffix(dto.Source, filepath.Ext(dto.Source))
		}
		if seen[name] {
			return nil, zerr.With(domain.ErrDuplicateItem, "name", name)
		}
		seen[name] = true

		item := domain.ContentItem{
			Source: dto.Source,
			Name:   name,
			Type:   dto.Type,
		}
		keys := make(map[string]bool, len(dto.Params))
		for _, p := range dto.Params {
			if keys[p.Key] {
				return nil, zerr.With(zerr.With(zerr.New("duplicate parameter key"), "item", name), "key", p.Key)
			}
			keys[p.Key] = true
			item.Params = append(item.Params, domain.Parameter{Key: p.Key, Value: p.Value})
		}
		proj.Items = append(proj.Items, item)
	}

	return proj, nil
}

func resolveDir(base, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(base, dir)
}
