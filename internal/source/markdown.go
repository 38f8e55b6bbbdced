package source

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// mdParser is shared; goldmark parsers are safe for concurrent use.
var mdParser = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// PagesFromMarkdown splits a markdown document into logical pages at H1 and
// H2 boundaries, keeping the heading trail as each page's title. Documents
// without headings come back as a single untitled page. Chunking per section
// keeps passages from straddling unrelated parts of a document.
func PagesFromMarkdown(src []byte) ([]Page, error) {
	reader := text.NewReader(src)
	doc := mdParser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, src,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect headings: %w", err)
	}

	if len(tree.Items) == 0 {
		body := strings.TrimSpace(string(src))
		if body == "" {
			return nil, nil
		}
		return []Page{{Text: body}}, nil
	}

	var pages []Page
	collectPages(doc, src, tree.Items, nil, &pages)
	return pages, nil
}

// collectPages walks the heading tree and extracts the text between each
// heading and the next same-or-higher-level heading.
func collectPages(doc ast.Node, src []byte, items toc.Items, trail []string, pages *[]Page) {
	for i, item := range items {
		currentTrail := append(trail, string(item.Title))

		heading := headingByID(doc, string(item.ID))
		if heading == nil {
			continue
		}

		// A section's own text ends at its first subsection, its next
		// sibling, or the next same-or-higher heading in the document.
		start := heading.Lines().At(0)
		var end text.Segment
		switch {
		case len(item.Items) > 0:
			if child := headingByID(doc, string(item.Items[0].ID)); child != nil {
				end = child.Lines().At(0)
			}
		case i+1 < len(items):
			if next := headingByID(doc, string(items[i+1].ID)); next != nil {
				end = next.Lines().At(0)
			}
		default:
			end = nextBoundary(doc, heading, heading.(*ast.Heading).Level)
		}

		body := sliceBetween(src, start, end)
		if body != "" {
			*pages = append(*pages, Page{
				Title: strings.Join(currentTrail, " > "),
				Text:  body,
			})
		}

		if len(item.Items) > 0 {
			collectPages(doc, src, item.Items, currentTrail, pages)
		}
	}
}

// headingByID locates a heading node by its auto-generated ID.
func headingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			if attr, ok := n.(*ast.Heading).AttributeString("id"); ok {
				if string(attr.([]byte)) == id {
					found = n
					return ast.WalkStop, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// nextBoundary finds the first heading after current at the same or a higher
// level. A zero segment means the section runs to the end of the document.
func nextBoundary(root, current ast.Node, level int) text.Segment {
	var boundary ast.Node
	passed := false

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if !passed {
			if n == current {
				passed = true
			}
			return ast.WalkContinue, nil
		}
		if n.(*ast.Heading).Level <= level {
			boundary = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if boundary != nil {
		return boundary.Lines().At(0)
	}
	return text.Segment{}
}

// sliceBetween returns the trimmed source text between two line segments, or
// to the end of the document when end is the zero segment.
func sliceBetween(src []byte, start, end text.Segment) string {
	if end.Start == 0 && end.Stop == 0 {
		return strings.TrimSpace(string(src[start.Start:]))
	}
	return strings.TrimSpace(string(src[start.Start:end.Start]))
}
