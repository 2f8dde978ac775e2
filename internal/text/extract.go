package text

import (
	"regexp"
	"strings"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)\A\s*---\r?\n.*?\r?\n---[ \t]*(?:\r?\n|\z)`)
	mdxModuleRe   = regexp.MustCompile(`(?m)^[ \t]*(?:import|export)\s.*$`)
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	jsxCommentRe  = regexp.MustCompile(`(?s)\{/\*.*?\*/\}`)
	// An unclosed fence runs to the end of the document.
	fenceRe = regexp.MustCompile("(?ms)^[ \t]*(?:```|~~~)[^\n]*(?:\n|\\z).*?(?:^[ \t]*(?:```|~~~)[ \t]*$|\\z)")
	// Double-backtick spans may contain single backticks.
	inlineCodeRe  = regexp.MustCompile("``[^\n]*?``|`[^`\n]*`")
	imageRe       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe     = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	boldRe        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderRe   = regexp.MustCompile(`(^|\W)__([^_]+)__(\W|$)`)
	italicRe      = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderRe = regexp.MustCompile(`(^|\W)_([^_\n]+)_(\W|$)`)
	strikeRe      = regexp.MustCompile(`~~([^~]+)~~`)
	hrRe          = regexp.MustCompile(`(?m)^[ \t]*(?:[-*_][ \t]*){3,}$`)
	listItemRe    = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
	blockquoteRe  = regexp.MustCompile(`(?m)^[ \t]*(?:>[ \t]?)+`)
	altTagRe      = regexp.MustCompile(`<[A-Za-z][\w.]*\b[^>]*?\balt=(?:"([^"]*)"|'([^']*)'|\{"([^"]*)"\})[^>]*>`)
	tagRe         = regexp.MustCompile(`</?[A-Za-z][\w.]*(?:\s[^>]*)?/?>`)
	urlRe         = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// Clean collapses whitespace runs into single spaces and trims the ends.
func Clean(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Narration builds the text handed to the synthesizer for one article.
func Narration(title, body string) string {
	return Clean(title + ". " + body)
}

// ExtractSource reduces raw MDX to speakable prose. Code is removed before any
// other rewrite so that link or emphasis syntax inside code never leaks out.
func ExtractSource(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = frontmatterRe.ReplaceAllString(s, "")
	s = mdxModuleRe.ReplaceAllString(s, "")
	s = htmlCommentRe.ReplaceAllString(s, " ")
	s = jsxCommentRe.ReplaceAllString(s, " ")

	s = fenceRe.ReplaceAllString(s, " ")
	s = inlineCodeRe.ReplaceAllString(s, " ")

	s = imageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")

	s = headingRe.ReplaceAllString(s, "")
	s = boldRe.ReplaceAllString(s, "$1")
	s = boldUnderRe.ReplaceAllString(s, "$1$2$3")
	s = strikeRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	s = italicUnderRe.ReplaceAllString(s, "$1$2$3")

	s = hrRe.ReplaceAllString(s, " ")
	s = listItemRe.ReplaceAllString(s, "")
	s = blockquoteRe.ReplaceAllString(s, "")

	s = altTagRe.ReplaceAllStringFunc(s, func(tag string) string {
		m := altTagRe.FindStringSubmatch(tag)
		return " " + m[1] + m[2] + m[3] + " "
	})
	s = tagRe.ReplaceAllString(s, " ")
	s = urlRe.ReplaceAllString(s, " ")

	return Clean(s)
}

// inlineTags flow with the surrounding text; every other element is a word boundary.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "del": true, "em": true, "i": true,
	"mark": true, "s": true, "span": true, "strong": true, "sub": true,
	"sup": true, "u": true,
}

// ExtractTree walks a parsed body and collects the text a listener should hear.
func ExtractTree(n *Node) string {
	var b strings.Builder
	walk(&b, n)
	return Clean(b.String())
}

func walk(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case TextNode:
		b.WriteString(n.Text)
	case FragmentNode:
		walkChildren(b, n)
	case ElementNode:
		if n.isCode() {
			return
		}
		switch n.Tag {
		case "script", "style":
			return
		case "img":
			if alt := n.Attr("alt"); alt != "" {
				b.WriteString(" " + alt + " ")
			}
			return
		}
		// Links contribute their label only; the href is never read.
		if inlineTags[n.Tag] {
			walkChildren(b, n)
			return
		}
		b.WriteByte(' ')
		walkChildren(b, n)
		b.WriteByte(' ')
	}
}

func walkChildren(b *strings.Builder, n *Node) {
	for _, c := range n.Children {
		walk(b, c)
	}
}
