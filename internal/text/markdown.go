package text

import (
	"strconv"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var blockTags = map[blackfriday.NodeType]string{
	blackfriday.Paragraph:  "p",
	blackfriday.BlockQuote: "blockquote",
	blackfriday.List:       "ul",
	blackfriday.Item:       "li",
	blackfriday.Emph:       "em",
	blackfriday.Strong:     "strong",
	blackfriday.Del:        "del",
	blackfriday.Table:      "table",
	blackfriday.TableHead:  "thead",
	blackfriday.TableBody:  "tbody",
	blackfriday.TableRow:   "tr",
	blackfriday.TableCell:  "td",
}

// ParseMarkdown renders a markdown body (frontmatter already removed) into a
// document tree. Inline HTML survives only as an image when it carries alt text.
func ParseMarkdown(src []byte) *Node {
	md := blackfriday.New(blackfriday.WithExtensions(
		blackfriday.CommonExtensions | blackfriday.Footnotes,
	))
	return convert(md.Parse(src))
}

func convert(n *blackfriday.Node) *Node {
	if n == nil {
		return nil
	}

	switch n.Type {
	case blackfriday.Document:
		return NewFragment(convertChildren(n)...)
	case blackfriday.Text:
		return NewText(string(n.Literal))
	case blackfriday.Softbreak, blackfriday.Hardbreak:
		return NewText(" ")
	case blackfriday.HorizontalRule:
		return nil
	case blackfriday.Heading:
		return NewElement("h"+strconv.Itoa(n.HeadingData.Level), nil, convertChildren(n)...)
	case blackfriday.Code:
		return NewElement("code", nil, NewText(string(n.Literal)))
	case blackfriday.CodeBlock:
		attrs := map[string]string{}
		if lang := strings.TrimSpace(string(n.CodeBlockData.Info)); lang != "" {
			attrs["class"] = "language-" + strings.Fields(lang)[0]
		}
		return NewElement("pre", nil, NewElement("code", attrs, NewText(string(n.Literal))))
	case blackfriday.Link:
		return NewElement("a", map[string]string{"href": string(n.LinkData.Destination)}, convertChildren(n)...)
	case blackfriday.Image:
		return NewElement("img", map[string]string{
			"src": string(n.LinkData.Destination),
			"alt": literalText(n),
		})
	case blackfriday.HTMLBlock, blackfriday.HTMLSpan:
		if m := altTagRe.FindStringSubmatch(string(n.Literal)); m != nil {
			return NewElement("img", map[string]string{"alt": m[1] + m[2] + m[3]})
		}
		return nil
	}

	if tag, ok := blockTags[n.Type]; ok {
		return NewElement(tag, nil, convertChildren(n)...)
	}
	return NewFragment(convertChildren(n)...)
}

func convertChildren(n *blackfriday.Node) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.Next {
		if conv := convert(c); conv != nil {
			out = append(out, conv)
		}
	}
	return out
}

func literalText(n *blackfriday.Node) string {
	var b strings.Builder
	n.Walk(func(c *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if entering && c.Type == blackfriday.Text {
			b.Write(c.Literal)
		}
		return blackfriday.GoToNext
	})
	return strings.TrimSpace(b.String())
}
