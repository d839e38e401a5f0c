// Package text prepares blog markdown for speech synthesis and document handling.
//
// Markdown is parsed with goldmark so that structure (headings, emphasis, links, code)
// is handled by a real parser rather than by pattern matching on raw text.
package text

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

const (
	urlRegexPattern       = `https?://\S+`
	referenceRegexPattern = `\[\d+\]`
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	latinStop    = "."
	cjkStop      = "。"
)

// Narrator converts markdown into plain text suitable for a speech engine.
type Narrator struct {
	markdown         goldmark.Markdown
	urlPattern       *regexp.Regexp
	referencePattern *regexp.Regexp
	quoteReplacer    *strings.Replacer
}

// NewNarrator creates a Narrator with compiled patterns and replacers.
func NewNarrator() *Narrator {
	return &Narrator{
		markdown:         goldmark.New(),
		urlPattern:       regexp.MustCompile(urlRegexPattern),
		referencePattern: regexp.MustCompile(referenceRegexPattern),
		quoteReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Narrate returns the spoken form of a markdown document: one sentence-terminated
// segment per block, with code, raw HTML, images and bare URLs removed.
func (n *Narrator) Narrate(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	source := []byte(markdown)
	doc := n.markdown.Parser().Parse(gmtext.NewReader(source))

	var (
		blocks  []string
		current strings.Builder
	)

	flush := func() {
		block := n.cleanBlock(current.String())
		current.Reset()

		if block != "" {
			blocks = append(blocks, block)
		}
	}

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch typed := node.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.Image, *ast.AutoLink:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				current.Write(typed.Segment.Value(source))

				if typed.SoftLineBreak() || typed.HardLineBreak() {
					current.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				current.Write(typed.Value)
			}
		}

		if !entering && node.Type() == ast.TypeBlock {
			flush()
		}

		return ast.WalkContinue, nil
	})

	return strings.Join(blocks, " ")
}

// cleanBlock normalizes a single block of narration text.
func (n *Narrator) cleanBlock(block string) string {
	block = n.urlPattern.ReplaceAllString(block, "")
	block = n.referencePattern.ReplaceAllString(block, "")
	block = n.quoteReplacer.Replace(block)
	block = strings.Join(strings.Fields(block), " ")
	block = removeExcessivePunctuation(block)

	return ensureSentenceEnding(block)
}

// removeExcessivePunctuation collapses runs of punctuation to their first mark.
func removeExcessivePunctuation(text string) string {
	var (
		result       []rune
		lastWasPunct bool
	)

	for _, char := range text {
		isPunct := unicode.IsPunct(char)
		if !isPunct || !lastWasPunct {
			result = append(result, char)
		}

		lastWasPunct = isPunct
	}

	return string(result)
}

// ensureSentenceEnding terminates a block so the speech engine pauses after it.
// Blocks ending in a Han character get an ideographic full stop.
func ensureSentenceEnding(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	lastChar, size := utf8.DecodeLastRuneInString(trimmed)

	switch lastChar {
	case '.', '!', '?', '。', '！', '？':
		return trimmed
	case ',', ':', ';', '，', '：', '；', '、':
		trimmed = trimmed[:len(trimmed)-size]
		lastChar, _ = utf8.DecodeLastRuneInString(trimmed)
	}

	if unicode.Is(unicode.Han, lastChar) {
		return trimmed + cjkStop
	}

	return trimmed + latinStop
}

// SplitTitle finds the first level-one heading in a markdown document and returns
// its text together with the document body with that heading removed.
func SplitTitle(markdown string) (title, body string, found bool) {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var heading *ast.Heading

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || heading != nil {
			return ast.WalkContinue, nil
		}

		h, ok := node.(*ast.Heading)
		if ok && h.Level == 1 && h.Lines().Len() > 0 {
			heading = h

			return ast.WalkStop, nil
		}

		return ast.WalkContinue, nil
	})

	if heading == nil {
		return "", markdown, false
	}

	title = strings.TrimSpace(inlineText(heading, source))
	body = removeHeadingLines(source, heading.Lines().At(0))

	return title, body, true
}

func inlineText(node ast.Node, source []byte) string {
	var buf bytes.Buffer

	_ = ast.Walk(node, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch typed := child.(type) {
		case *ast.Text:
			buf.Write(typed.Segment.Value(source))
		case *ast.String:
			buf.Write(typed.Value)
		}

		return ast.WalkContinue, nil
	})

	return buf.String()
}

// removeHeadingLines cuts the heading's line, and a setext underline if present,
// out of source.
func removeHeadingLines(source []byte, segment gmtext.Segment) string {
	lineStart := bytes.LastIndexByte(source[:segment.Start], '\n') + 1
	lineEnd := nextLineStart(source, segment.Stop)

	underlineEnd := nextLineStart(source, lineEnd)
	underline := strings.TrimSpace(string(source[lineEnd:underlineEnd]))

	if underline != "" && strings.Trim(underline, "=") == "" {
		lineEnd = underlineEnd
	}

	remaining := string(source[:lineStart]) + string(source[lineEnd:])

	return strings.TrimLeft(remaining, "\r\n")
}

func nextLineStart(source []byte, from int) int {
	if from >= len(source) {
		return len(source)
	}

	idx := bytes.IndexByte(source[from:], '\n')
	if idx < 0 {
		return len(source)
	}

	return from + idx + 1
}
