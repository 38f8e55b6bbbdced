package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemSource loads markdown and plain-text documents from a directory
// tree. Document paths are slash-separated and relative to the root, so the
// same tree indexed from different machines produces the same source IDs.
type FilesystemSource struct {
	root string
}

// NewFilesystemSource creates a source over the given directory. The
// directory must exist.
func NewFilesystemSource(root string) (*FilesystemSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", root)
	}
	return &FilesystemSource{root: root}, nil
}

// List walks the tree collecting .md and .txt files, sorted.
func (s *FilesystemSource) List(_ context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return err
			}
			paths = append(paths, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Fetch loads one document. Markdown files are split into section pages;
// plain text files become a single page.
func (s *FilesystemSource) Fetch(_ context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var pages []Page
	if strings.EqualFold(filepath.Ext(path), ".md") {
		pages, err = PagesFromMarkdown(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if body := strings.TrimSpace(string(data)); body != "" {
		pages = []Page{{Text: body}}
	}

	return &Document{Path: path, Pages: pages}, nil
}
