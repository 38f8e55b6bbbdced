// Package source loads documents to index from a filesystem tree or a GitHub
// repository, presenting them as plain text split into logical pages.
package source

import "context"

// Page is one logical unit of a document's text: a markdown section, a plain
// file's whole body, or a page from any external extractor.
type Page struct {
	Title string // Section heading trail, empty for unstructured text
	Text  string
}

// Document is one loadable document with its text split into pages.
type Document struct {
	Path  string // Source identifier, stable across re-indexing
	Pages []Page
}

// Source lists and loads documents. Implementations: FilesystemSource,
// GitHubSource.
type Source interface {
	// List returns the paths of every loadable document.
	List(ctx context.Context) ([]string, error)

	// Fetch loads one document by path.
	Fetch(ctx context.Context, path string) (*Document, error)
}
