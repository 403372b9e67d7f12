package study

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"studyrun/internal/canon"
	"studyrun/internal/frontmatter"
)

// IndexMeta is the frontmatter of index.md.
type IndexMeta struct {
	Prefix         string `yaml:"prefix"`
	Output         string `yaml:"output"`
	Hash           string `yaml:"hash"`
	Samples        int    `yaml:"samples"`
	Specifications int    `yaml:"specifications"`
	// Digest covers every canonical flag string in enumeration order; an
	// index with the current digest needs no rewrite.
	Digest string `yaml:"digest"`
}

// IndexEntry maps one record hash to its canonical flags.
type IndexEntry struct {
	Hash  string
	Flags string
}

// Index lists every specification of the study.
func (s *Study) Index() (IndexMeta, []IndexEntry) {
	scheme := s.Scheme()
	var (
		entries []IndexEntry
		all     strings.Builder
	)
	for flags := range s.Space.All() {
		c := canon.Join(flags)
		entries = append(entries, IndexEntry{Hash: scheme.Sum(c), Flags: c})
		all.WriteString(c)
		all.WriteByte('\n')
	}
	meta := IndexMeta{
		Prefix:         s.Settings.Prefix,
		Output:         s.Settings.Output,
		Hash:           s.Settings.Hash,
		Samples:        s.Settings.Samples,
		Specifications: len(entries),
		Digest:         canon.SHA256.Sum(all.String()),
	}
	return meta, entries
}

// IndexUpToDate reports whether index.md exists and matches the study.
func (s *Study) IndexUpToDate() (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var have IndexMeta
	if _, err := frontmatter.Decode(data, &have); err != nil {
		return false, nil
	}
	want, _ := s.Index()
	return have == want, nil
}

// WriteIndex writes index.md and returns its path.
func (s *Study) WriteIndex() (string, error) {
	meta, entries := s.Index()

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", filepath.Base(s.Dir))
	fmt.Fprintf(&body, "Records are named `%s-<hash>-<sample>` in `%s/`.\n\n", meta.Prefix, s.Settings.Output)
	body.WriteString("| hash | flags |\n|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(&body, "| `%s` | `%s` |\n", e.Hash, e.Flags)
	}

	data, err := frontmatter.Encode(meta, body.String())
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, IndexFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
