package contentservice

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

var leadingHeadingRX = regexp.MustCompile(`^#\s+(.+?)\s*$`)

// codeBlockRenderer replaces fenced code blocks with placeholders and keeps
// their contents so the client can render them with its own component.
type codeBlockRenderer struct {
	blocks []PostCodeBlock
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ast.FencedCodeBlock)

	var info []string
	if n.Info != nil {
		info = strings.Fields(string(n.Info.Segment.Value(source)))
	}

	index := len(r.blocks)
	block := PostCodeBlock{Filename: fmt.Sprintf("snippet-%d", index+1)}
	if len(info) > 0 {
		block.Language = info[0]
	}
	if len(info) > 1 {
		block.Filename = info[1]
	}

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}
	block.Code = strings.TrimSuffix(code.String(), "\n")

	r.blocks = append(r.blocks, block)

	_, err := fmt.Fprintf(w, "\n<div class=\"not-prose my-6\" data-post-code-block=\"%d\"></div>\n", index)
	if err != nil {
		return ast.WalkStop, err
	}

	return ast.WalkSkipChildren, nil
}

// RenderMarkdownWithCodeBlocks renders body to HTML. Each fenced code block is
// emitted as a placeholder div whose data-post-code-block attribute indexes
// the returned code blocks, in document order.
func RenderMarkdownWithCodeBlocks(body string) (string, []PostCodeBlock, error) {
	cbr := &codeBlockRenderer{blocks: []PostCodeBlock{}}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(cbr, 100)),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", nil, fmt.Errorf("could not render markdown: %w", err)
	}

	return buf.String(), cbr.blocks, nil
}

// StripLeadingTitleHeading drops a first-line level-one heading that repeats
// the title, together with the blank lines after it. Repeated copies of the
// heading are all dropped, so applying it twice changes nothing.
func StripLeadingTitleHeading(title, body string) string {
	want := strings.TrimSpace(title)

	for {
		line, rest, _ := strings.Cut(body, "\n")
		m := leadingHeadingRX.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
		if m == nil || strings.TrimSpace(m[1]) != want {
			return body
		}
		body = trimLeadingBlankLines(rest)
	}
}

func trimLeadingBlankLines(s string) string {
	for {
		line, rest, found := strings.Cut(s, "\n")
		if !found || strings.TrimSpace(line) != "" {
			return s
		}
		s = rest
	}
}

// RenderPost produces the HTML view of a post. HTML bodies are passed through
// untouched.
func RenderPost(p *Post) (*RenderedPost, error) {
	if !p.BodyIsMarkdown {
		return &RenderedPost{Post: p, HTML: p.Body, CodeBlocks: []PostCodeBlock{}}, nil
	}

	source := StripLeadingTitleHeading(p.Title, p.Body)

	out, blocks, err := RenderMarkdownWithCodeBlocks(source)
	if err != nil {
		return nil, err
	}

	return &RenderedPost{Post: p, HTML: out, CodeBlocks: blocks}, nil
}
