package chunker

import (
	"html"
	"regexp"
	"strings"
)

// Canvas stores syllabus bodies and assignment descriptions as HTML
// fragments. We only need the visible text for chunking and embedding.
var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	blockBreakRe = regexp.MustCompile(`(?i)</?(p|div|li|ul|ol|table|tr|h[1-6]|blockquote)[^>]*>|<br\s*/?>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
)

// StripHTML converts an HTML fragment to plain text: scripts and styles are
// dropped, block boundaries become newlines, remaining tags are removed, and
// entities are unescaped.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}

	out := scriptRe.ReplaceAllString(fragment, "")
	out = styleRe.ReplaceAllString(out, "")
	out = blockBreakRe.ReplaceAllString(out, "\n")
	out = tagRe.ReplaceAllString(out, "")
	out = html.UnescapeString(out)

	out = spaceRunRe.ReplaceAllString(out, " ")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
