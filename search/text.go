package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/lexis/core"
)

// Stop words to filter out when checking for keyword matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "to": true,
	"of": true, "and": true, "in": true, "for": true, "on": true, "with": true,
	"by": true, "from": true, "or": true,
	"및": true, "또는": true, "등": true, "그": true, "관한": true, "관하여": true,
	"대한": true, "대하여": true, "따른": true, "따라": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}「」『』·"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// containsAllQueryWords checks if all query words (after filtering) appear in
// the document. Korean attaches particles to nouns, so a query word matches
// any document word that contains it.
func containsAllQueryWords(document, query string) bool {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return false
	}

	haystack := strings.Join(tokenizeAndFilter(document), " ")
	for _, qWord := range queryWords {
		if !strings.Contains(haystack, qWord) {
			return false
		}
	}

	return true
}

// citation is an article or paragraph reference such as 제17조의2 제1항.
// Zero fields are unspecified.
type citation struct {
	article   int
	branch    int
	paragraph int
}

var (
	articlePattern   = regexp.MustCompile(`제?\s*(\d+)\s*조(?:\s*의\s*(\d+))?`)
	paragraphPattern = regexp.MustCompile(`제?\s*(\d+)\s*항|[①-⑳]`)
)

// span is a regexp match with its parsed numbers.
type span struct {
	start, end int
	c          citation
}

// numberBounded reports whether the match starting at start is not the tail
// of a longer number, so that 17조 does not match inside 제117조.
func numberBounded(text string, start int) bool {
	if start == 0 {
		return true
	}
	prev := text[start-1]
	return prev < '0' || prev > '9'
}

func articleSpans(text string) []span {
	var spans []span
	for _, m := range articlePattern.FindAllStringSubmatchIndex(text, -1) {
		numStart := m[2]
		if !numberBounded(text, numStart) {
			continue
		}
		article, _ := strconv.Atoi(text[m[2]:m[3]])
		c := citation{article: article}
		if m[4] >= 0 {
			c.branch, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		spans = append(spans, span{start: m[0], end: m[1], c: c})
	}
	return spans
}

func paragraphSpans(text string) []span {
	var spans []span
	for _, m := range paragraphPattern.FindAllStringSubmatchIndex(text, -1) {
		var n int
		if m[2] >= 0 {
			if !numberBounded(text, m[2]) {
				continue
			}
			n, _ = strconv.Atoi(text[m[2]:m[3]])
		} else {
			r := []rune(text[m[0]:m[1]])[0]
			n = int(r-'①') + 1
		}
		spans = append(spans, span{start: m[0], end: m[1], c: citation{paragraph: n}})
	}
	return spans
}

// parseCitations extracts the citations in a query. A paragraph reference
// directly after an article reference narrows that article.
func parseCitations(query string) []citation {
	articles := articleSpans(query)
	paragraphs := paragraphSpans(query)
	if len(articles) == 0 && len(paragraphs) == 0 {
		return nil
	}

	var out []citation
	pi := 0
	for i, a := range articles {
		c := a.c
		nextStart := len(query)
		if i+1 < len(articles) {
			nextStart = articles[i+1].start
		}
		for pi < len(paragraphs) && paragraphs[pi].start < a.start {
			out = append(out, paragraphs[pi].c)
			pi++
		}
		if pi < len(paragraphs) && paragraphs[pi].start >= a.end && paragraphs[pi].start < nextStart {
			c.paragraph = paragraphs[pi].c.paragraph
			pi++
		}
		out = append(out, c)
	}
	for ; pi < len(paragraphs); pi++ {
		out = append(out, paragraphs[pi].c)
	}
	return out
}

// unitCitations are the article and paragraph numbers found in a node's
// path and title.
type unitCitations struct {
	articles   map[[2]int]struct{}
	paragraphs map[int]struct{}
}

func citationsOf(node *core.Node) unitCitations {
	u := unitCitations{
		articles:   make(map[[2]int]struct{}),
		paragraphs: make(map[int]struct{}),
	}
	for _, text := range []string{node.Path, node.Title} {
		for _, s := range articleSpans(text) {
			u.articles[[2]int{s.c.article, s.c.branch}] = struct{}{}
		}
		for _, s := range paragraphSpans(text) {
			u.paragraphs[s.c.paragraph] = struct{}{}
		}
	}
	return u
}

func (u unitCitations) matches(c citation) bool {
	if c.article > 0 {
		if _, ok := u.articles[[2]int{c.article, c.branch}]; !ok {
			return false
		}
	}
	if c.paragraph > 0 {
		if _, ok := u.paragraphs[c.paragraph]; !ok {
			return false
		}
	}
	return true
}

// exactMatcher decides whether a node's path or title matches a query
// exactly: by citation when the query cites an article or paragraph, and by
// literal text otherwise.
type exactMatcher struct {
	query     string
	citations []citation
}

func newExactMatcher(query string) *exactMatcher {
	q := strings.TrimSpace(query)
	return &exactMatcher{query: strings.ToLower(q), citations: parseCitations(q)}
}

func (m *exactMatcher) match(node *core.Node) bool {
	if m.query == "" {
		return false
	}
	if len(m.citations) > 0 {
		units := citationsOf(node)
		for _, c := range m.citations {
			if units.matches(c) {
				return true
			}
		}
		return false
	}

	document := node.Path + " " + node.Title
	if strings.Contains(strings.ToLower(document), m.query) {
		return true
	}
	return containsAllQueryWords(document, m.query)
}

// snippet returns the first n runes of content with whitespace collapsed.
func snippet(content string, n int) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) <= n {
		return collapsed
	}
	return string(runes[:n])
}
