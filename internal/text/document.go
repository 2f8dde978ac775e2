package text

import "strings"

type NodeKind int

const (
	TextNode NodeKind = iota
	ElementNode
	FragmentNode
)

// Node is one vertex of a parsed article body. Text is set for TextNode,
// Tag and Attrs for ElementNode; Children for ElementNode and FragmentNode.
type Node struct {
	Kind     NodeKind
	Text     string
	Tag      string
	Attrs    map[string]string
	Children []*Node
}

func NewText(s string) *Node {
	return &Node{Kind: TextNode, Text: s}
}

func NewElement(tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Kind: ElementNode, Tag: tag, Attrs: attrs, Children: children}
}

func NewFragment(children ...*Node) *Node {
	return &Node{Kind: FragmentNode, Children: children}
}

func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// isCode reports whether an element holds source code that must not be narrated.
func (n *Node) isCode() bool {
	switch n.Tag {
	case "pre", "code":
		return true
	}
	class := n.Attr("class")
	if class == "" {
		class = n.Attr("className")
	}
	return strings.Contains(class, "hljs") || strings.Contains(class, "language-")
}
