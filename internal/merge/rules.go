package merge

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Rules configures per-page cleanup. Order of application within a page:
// running headers, front matter (page 1), references (last page), blank
// collapsing. Headers and blanks are position-independent; the other two are
// why the merger must know page position, not just content.
type Rules struct {
	HeaderPatterns   []*regexp.Regexp
	StripFrontMatter bool
	StripReferences  bool
	CollapseBlanks   bool
}

// DefaultHeaderPatterns match the boilerplate the corpus actually carries:
// arXiv submission banners and bare page numbers.
func DefaultHeaderPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^arxiv:\S+`),
		regexp.MustCompile(`^\d+$`),
	}
}

// DefaultRules enables every rule with the default header patterns.
func DefaultRules() Rules {
	return Rules{
		HeaderPatterns:   DefaultHeaderPatterns(),
		StripFrontMatter: true,
		StripReferences:  true,
		CollapseBlanks:   true,
	}
}

var markdown = goldmark.New()

var markerWords = []string{"references", "bibliography"}

// stripHeaders drops leading lines (and the blanks around them) that match a
// header pattern. Only the top of the page is touched; the same text deeper
// in the page is body content.
func stripHeaders(page string, patterns []*regexp.Regexp) string {
	if len(patterns) == 0 {
		return page
	}
	lines := strings.Split(page, "\n")
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || matchAny(patterns, trimmed) {
			i++
			continue
		}
		break
	}
	return strings.Join(lines[i:], "\n")
}

func matchAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// stripFrontMatter drops the author and affiliation block between the title
// line and the abstract. Pages without an abstract marker are returned
// unchanged, so the rule never eats body text on unusual layouts.
func stripFrontMatter(page string) string {
	lines := strings.Split(page, "\n")
	abstractAt := -1
	for i := 1; i < len(lines); i++ {
		if strings.Contains(strings.ToLower(lines[i]), "abstract") {
			abstractAt = i
			break
		}
	}
	if abstractAt <= 1 {
		return page
	}
	out := make([]string, 0, 1+len(lines)-abstractAt)
	out = append(out, lines[0])
	out = append(out, lines[abstractAt:]...)
	return strings.Join(out, "\n")
}

// stripReferences truncates the page at the reference section marker. The
// second return is true when the marker is the page's first content, in
// which case the whole page is dropped. A marker is either a markdown
// heading mentioning references/bibliography or a bare line saying exactly
// that.
func stripReferences(page string) (string, bool) {
	offset := referenceOffset(page)
	if offset < 0 {
		return page, false
	}
	head := strings.TrimRight(page[:offset], " \t\n")
	if head == "" {
		return "", true
	}
	return head, false
}

func referenceOffset(page string) int {
	src := []byte(page)
	best := -1

	doc := markdown.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := h.Lines().At(0)
		if !containsMarkerWord(string(src[seg.Start:seg.Stop])) {
			return ast.WalkContinue, nil
		}
		best = lineStart(src, seg.Start)
		return ast.WalkStop, nil
	})

	off := 0
	for _, line := range strings.SplitAfter(page, "\n") {
		if isBareMarker(line) {
			if best < 0 || off < best {
				best = off
			}
			break
		}
		off += len(line)
	}
	return best
}

func containsMarkerWord(s string) bool {
	l := strings.ToLower(s)
	for _, w := range markerWords {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}

func isBareMarker(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	l = strings.TrimSuffix(l, ":")
	for _, w := range markerWords {
		if l == w {
			return true
		}
	}
	return false
}

func lineStart(src []byte, pos int) int {
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

// collapseBlankLines squeezes runs of blank lines down to one and normalizes
// whitespace-only lines to empty, keeping regeneration byte-identical.
func collapseBlankLines(page string) string {
	lines := strings.Split(page, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			line = ""
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// HasArticleStructure reports whether page text shows both a markdown
// heading and an abstract, the shape a parseable article's first page has.
// The merge driver uses it as an optional gate.
func HasArticleStructure(page string) bool {
	if !strings.Contains(strings.ToLower(page), "abstract") {
		return false
	}
	src := []byte(page)
	found := false
	doc := markdown.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if _, ok := n.(*ast.Heading); ok && entering {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}
