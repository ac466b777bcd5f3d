package chunker

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// section is a markdown document slice bounded by H1/H2 headings.
type section struct {
	headerPath string
	content    string
}

// SplitMarkdown pre-splits markdown at H1 and H2 boundaries, then windows
// each section. Every chunk carries its section's header path prefix so the
// embedding retains document context. Documents without headings fall back
// to plain windowing.
func (s *Splitter) SplitMarkdown(source []byte) ([]string, error) {
	sections, err := sectionize(source)
	if err != nil {
		return nil, err
	}

	if len(sections) == 0 {
		return s.Split(strings.TrimSpace(string(source))), nil
	}

	var chunks []string
	for _, sec := range sections {
		for _, window := range s.Split(sec.content) {
			if sec.headerPath != "" {
				window = sec.headerPath + "\n\n" + window
			}
			chunks = append(chunks, window)
		}
	}
	return chunks, nil
}

// sectionize parses markdown and slices it at heading boundaries using the
// document's table of contents. Returns nil when the document has no
// headings.
func sectionize(source []byte) ([]section, error) {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	doc := md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect headings: %w", err)
	}
	if len(tree.Items) == 0 {
		return nil, nil
	}

	// Flatten the TOC into document order, keeping the ancestor titles that
	// make up each item's header path.
	type boundary struct {
		headerPath string
		start      int
	}
	var boundaries []boundary

	var flatten func(items toc.Items, ancestors []string)
	flatten = func(items toc.Items, ancestors []string) {
		for _, item := range items {
			titles := append(append([]string(nil), ancestors...), string(item.Title))
			node := headingByID(doc, string(item.ID))
			if node != nil && node.Lines().Len() > 0 {
				boundaries = append(boundaries, boundary{
					headerPath: formatHeaderPath(titles),
					start:      node.Lines().At(0).Start,
				})
			}
			flatten(item.Items, titles)
		}
	}
	flatten(tree.Items, nil)

	if len(boundaries) == 0 {
		return nil, nil
	}

	sections := make([]section, 0, len(boundaries))
	for i, b := range boundaries {
		end := len(source)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].start
		}
		content := strings.TrimSpace(string(source[b.start:end]))
		if content == "" {
			continue
		}
		sections = append(sections, section{headerPath: b.headerPath, content: content})
	}
	return sections, nil
}

// headingByID locates a heading node by its auto-generated ID.
func headingByID(doc ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			if attr, ok := n.AttributeString("id"); ok {
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

// formatHeaderPath renders the ancestor titles of a section.
// ["Syllabus", "Grading"] becomes "# Syllabus > ## Grading".
func formatHeaderPath(titles []string) string {
	parts := make([]string, len(titles))
	for i, title := range titles {
		parts[i] = strings.Repeat("#", i+1) + " " + title
	}
	return strings.Join(parts, " > ")
}
