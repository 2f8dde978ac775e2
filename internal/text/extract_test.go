package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSource(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "Frontmatter And Heading",
			raw:  "---\ntitle: 'Hello'\ndate: '2024-01-01'\n---\n\n# Heading\n\nBody text.",
			want: "Heading Body text.",
		},
		{
			name: "Links Keep Label",
			raw:  "Read [the docs](https://example.com/docs) now.",
			want: "Read the docs now.",
		},
		{
			name: "Images Keep Alt",
			raw:  "![A cat on a mat](/cat.png)",
			want: "A cat on a mat",
		},
		{
			name: "Emphasis",
			raw:  "This is **bold**, *italic*, ~~gone~~ and __under__ text.",
			want: "This is bold, italic, gone and under text.",
		},
		{
			name: "Lists Quotes And Rules",
			raw:  "- one\n- two\n> quoted\n\n---\n\n1. first",
			want: "one two quoted first",
		},
		{
			name: "JSX Image Alt",
			raw:  `Intro <CustomImage src="/x.png" alt="A diagram" width={100} /> outro`,
			want: "Intro A diagram outro",
		},
		{
			name: "MDX Module Lines",
			raw:  "import X from './x'\nexport const meta = {}\n\nHello world.",
			want: "Hello world.",
		},
		{
			name: "Bare URLs",
			raw:  "Visit https://example.com/page today",
			want: "Visit today",
		},
		{
			name: "HTML Tags And Comments",
			raw:  "<div>Hello <span>there</span></div><!-- hidden -->",
			want: "Hello there",
		},
		{
			name: "Inline Code",
			raw:  "Run `go test ./...` now",
			want: "Run now",
		},
		{
			name: "Double Backtick Span",
			raw:  "Say ``a `tick` here`` ok",
			want: "Say ok",
		},
		{
			name: "Empty",
			raw:  "  \n ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSource(tt.raw))
		})
	}
}

func TestExtractSource_StripsCode(t *testing.T) {
	raw := "Before the code.\n\n```js\nconst link = \"[click](http://evil)\";\nconsole.log(link)\n```\n\n~~~\nmore code\n~~~\n\nAfter the code."

	got := ExtractSource(raw)
	assert.Equal(t, "Before the code. After the code.", got)
	assert.NotContains(t, got, "const")
	assert.NotContains(t, got, "click")
	assert.NotContains(t, got, "```")

	unclosed := "Intro prose here.\n\n```go\nfunc secret() { x := \"[a](http://b)\" }\n"
	got = ExtractSource(unclosed)
	assert.Equal(t, "Intro prose here.", got)
	assert.NotContains(t, got, "secret")
	assert.NotContains(t, got, "`")
}

func TestExtractTree(t *testing.T) {
	doc := NewFragment(
		NewElement("h1", nil, NewText("Title")),
		NewElement("p", nil,
			NewText("Read "),
			NewElement("a", map[string]string{"href": "https://example.com"}, NewText("this link")),
			NewText(" please."),
		),
		NewElement("pre", nil, NewElement("code", nil, NewText("fmt.Println()"))),
		NewElement("div", map[string]string{"class": "hljs go"}, NewText("hidden")),
		NewElement("span", map[string]string{"className": "language-go"}, NewText("hidden too")),
		NewElement("img", map[string]string{"alt": "A photo", "src": "/p.png"}),
		NewElement("img", map[string]string{"src": "/no-alt.png"}),
		NewElement("script", nil, NewText("alert(1)")),
		NewElement("style", nil, NewText("p{}")),
	)

	got := ExtractTree(doc)
	assert.Equal(t, "Title Read this link please. A photo", got)
	assert.NotContains(t, got, "example.com")
}

func TestExtractTree_Nil(t *testing.T) {
	assert.Equal(t, "", ExtractTree(nil))
}

func TestParseMarkdown(t *testing.T) {
	src := "# Hello\n\nSome *text* with [a link](https://x.y).\n\n```go\nfmt.Println(1)\n```\n\n![Alt here](/a.png)\n"

	got := ExtractTree(ParseMarkdown([]byte(src)))
	assert.Equal(t, "Hello Some text with a link. Alt here", got)
}

func TestParseMarkdown_CodeBlockLanguage(t *testing.T) {
	doc := ParseMarkdown([]byte("```python\nprint(1)\n```\n"))

	var pre *Node
	for _, c := range doc.Children {
		if c.Tag == "pre" {
			pre = c
		}
	}
	if assert.NotNil(t, pre) && assert.Len(t, pre.Children, 1) {
		assert.Equal(t, "language-python", pre.Children[0].Attr("class"))
	}
}

func TestNarration(t *testing.T) {
	assert.Equal(t, "My Post. Body goes here.", Narration("My Post", "  Body\n goes   here. "))
}
