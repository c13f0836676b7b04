package store

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

type EntryType string

const (
	EntryFile   EntryType = "file"
	EntryFolder EntryType = "folder"
)

// Entry is a flat node of the reconstructed tree. Parent holds the path
// segments of the containing folder, empty at the root.
type Entry struct {
	Type   EntryType `json:"type"`
	Name   string    `json:"name"`
	Parent []string  `json:"parent"`
}

func (e Entry) Path() string {
	return path.Join(append(append([]string{}, e.Parent...), e.Name)...)
}

// BuildTree lists the blobs at ref and returns every implied folder, in
// first-seen order, followed by every file in listing order. Placeholder
// markers only contribute folders. An unresolvable ref yields no entries.
func BuildTree(b backend.Backend, ref string) ([]Entry, error) {
	commitID, err := b.ResolveRef(ref)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	paths, err := b.ListBlobPaths(commitID)
	if err != nil {
		return nil, fmt.Errorf("list files at %s: %w", ref, err)
	}
	return buildEntries(paths), nil
}

func buildEntries(paths []string) []Entry {
	folders := []Entry{}
	files := []Entry{}
	seen := make(map[string]struct{})
	for _, p := range paths {
		segments := strings.Split(strings.Trim(p, "/"), "/")
		base := segments[len(segments)-1]
		parent := segments[:len(segments)-1]
		for i := range parent {
			key := strings.Join(parent[:i+1], "/")
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			folders = append(folders, Entry{
				Type:   EntryFolder,
				Name:   parent[i],
				Parent: cloneSegments(parent[:i]),
			})
		}
		if base == backend.PlaceholderName {
			continue
		}
		files = append(files, Entry{
			Type:   EntryFile,
			Name:   base,
			Parent: cloneSegments(parent),
		})
	}
	return append(folders, files...)
}

// cloneEntries copies entries and their Parent slices so callers cannot
// modify a cached tree.
func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Parent = cloneSegments(e.Parent)
		out[i] = e
	}
	return out
}

func cloneSegments(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
