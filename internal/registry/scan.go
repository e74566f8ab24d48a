package registry

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// descriptorFile is the on-disk shape of core.yaml.
//
// Recognized fields:
//
//	deps:   [core names]
//	rtl:    [RTL source paths, relative to the core directory]
//	sim:    [simulation source paths, relative to the core directory]
//	prereq: [files that must exist before compilation]
//
// Unknown fields are rejected so that a typo in a descriptor fails the scan
// instead of silently dropping sources.
type descriptorFile struct {
	Deps   []string `yaml:"deps"`
	RTL    []string `yaml:"rtl"`
	Sim    []string `yaml:"sim"`
	Prereq []string `yaml:"prereq"`
}

// Scan walks the immediate subdirectories of coresDir and builds a Registry
// from every subdirectory containing a core.yaml descriptor. Subdirectories
// without a descriptor are skipped; they are not cores.
//
// Scanning order is the sorted subdirectory name order, so repeated scans of
// the same tree produce identical registries.
func Scan(coresDir string) (*Registry, error) {
	absDir, err := filepath.Abs(coresDir)
	if err != nil {
		return nil, fmt.Errorf("resolving cores dir %q: %w", coresDir, err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			// No cores directory at all: an empty registry, not an error.
			// Projects without core dependencies need not carry one.
			return newRegistry(absDir, nil), nil
		}
		return nil, fmt.Errorf("reading cores dir %q: %w", coresDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	cores := make(map[string]*Core)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		coreDir := filepath.Join(absDir, entry.Name())
		descPath := filepath.Join(coreDir, DescriptorFileName)
		if _, err := os.Stat(descPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", descPath, err)
		}

		core, err := loadCore(entry.Name(), coreDir, descPath)
		if err != nil {
			return nil, err
		}
		cores[core.Name] = core
	}

	return newRegistry(absDir, cores), nil
}

func loadCore(name, coreDir, descPath string) (*Core, error) {
	raw, err := os.ReadFile(descPath)
	if err != nil {
		return nil, &MalformedDescriptorError{Path: descPath, Err: err}
	}

	var desc descriptorFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		if err != io.EOF {
			return nil, &MalformedDescriptorError{Path: descPath, Err: err}
		}
		// An empty descriptor is a core with no sources and no deps.
		desc = descriptorFile{}
	} else if err := dec.Decode(&yaml.Node{}); err != io.EOF {
		// A descriptor is exactly one document; a second one means the
		// file is not what its author thinks it is.
		return nil, malformedf(descPath, "trailing document after descriptor")
	}

	for _, dep := range desc.Deps {
		if strings.TrimSpace(dep) == "" {
			return nil, malformedf(descPath, "empty dependency name")
		}
	}

	rtl, err := resolveSources(coreDir, descPath, desc.RTL)
	if err != nil {
		return nil, err
	}
	sim, err := resolveSources(coreDir, descPath, desc.Sim)
	if err != nil {
		return nil, err
	}
	prereq, err := resolveSources(coreDir, descPath, desc.Prereq)
	if err != nil {
		return nil, err
	}

	return &Core{
		Name:        name,
		Dir:         coreDir,
		Deps:        desc.Deps,
		RTLSources:  rtl,
		SimSources:  sim,
		Prereqs:     prereq,
		IncludeDirs: includeDirsFor(rtl),
	}, nil
}

// resolveSources turns descriptor-relative paths into absolute ones.
// Declared order is preserved. Absolute paths are rejected: a descriptor
// that reaches outside its core directory is not relocatable.
func resolveSources(coreDir, descPath string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			return nil, malformedf(descPath, "empty source path")
		}
		if filepath.IsAbs(p) {
			return nil, malformedf(descPath, "absolute source path %q", p)
		}
		out = append(out, filepath.Clean(filepath.Join(coreDir, p)))
	}
	return out, nil
}
