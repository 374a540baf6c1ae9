// Package render turns the markdown info of a content item into the HTML that
// is stored on its record.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"

	"github.com/debemdeboas/kable/internal/cache"
	"github.com/debemdeboas/kable/internal/util"
)

type Renderer string

const (
	Classic Renderer = "classic"
	Mmark   Renderer = "mmark"

	DefaultHighlightStyle = "github"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

func ParseRenderer(s string) (Renderer, error) {
	switch Renderer(strings.ToLower(s)) {
	case "", Classic:
		return Classic, nil
	case Mmark:
		return Mmark, nil
	}
	return "", fmt.Errorf("unknown markdown renderer %q", s)
}

// HighlightCode colors a code block with inline styles. The rendered info ends
// up in a rich text field with no stylesheet, so classes would be lost.
func HighlightCode(code, language, highlightStyle string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(highlightStyle)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	formatter := html.New(html.WithClasses(false), html.TabWidth(4))
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func codeBlockHook(highlightStyle string) func(io.Writer, ast.Node, bool) (ast.WalkStatus, bool) {
	return func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
		code, ok := node.(*ast.CodeBlock)
		if !ok || !entering {
			return ast.GoToNext, false
		}
		var lang string
		if info := code.Info; info != nil {
			lang = string(info)
		}
		fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", HighlightCode(string(code.Literal), lang, highlightStyle))
		return ast.GoToNext, true
	}
}

// Markdown renders md with the given renderer. Raw HTML in the input is dropped.
func Markdown(md []byte, r Renderer, highlightStyle string) []byte {
	switch r {
	case Mmark:
		out, _ := MarkdownMmark(md, highlightStyle)
		return out
	default:
		return MarkdownClassic(md, highlightStyle)
	}
}

var renderCacheMutex sync.Mutex

// MarkdownCached renders md once per content, renderer and style.
func MarkdownCached(md []byte, r Renderer, highlightStyle string) []byte {
	key := util.ContentHash(md)
	variant := string(r) + ":" + highlightStyle

	if cached, found := cache.GetRenderedMarkdown(key, variant); found {
		renderLogger.Debug().Str("contentHash", key).Str("variant", variant).Msg("Cache hit for rendered info")
		return cached.HTML
	}

	renderCacheMutex.Lock()
	defer renderCacheMutex.Unlock()

	if cached, found := cache.GetRenderedMarkdown(key, variant); found {
		return cached.HTML
	}

	out := Markdown(md, r, highlightStyle)
	cache.SetRenderedMarkdown(key, variant, out, nil)
	renderLogger.Debug().Str("contentHash", key).Str("variant", variant).Int("bytes", len(out)).Msg("Rendered info")
	return out
}

func MarkdownClassic(md []byte, highlightStyle string) []byte {
	opts := md_html.RendererOptions{
		Flags:          md_html.CommonFlags | md_html.HrefTargetBlank | md_html.SkipHTML,
		RenderNodeHook: codeBlockHook(highlightStyle),
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.BackslashLineBreak | parser.SuperSubscript | parser.DefinitionLists |
			parser.NoIntraEmphasis | parser.NonBlockingSpace,
	).Parse(markdown.NormalizeNewlines(md))

	return markdown.Render(doc, md_html.NewRenderer(opts))
}

// MarkdownMmark renders with the mmark dialect and also returns the title
// block, when the info carries one.
func MarkdownMmark(md []byte, highlightStyle string) ([]byte, *mast.TitleData) {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	var info *mast.TitleData
	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				info = t.TitleData
			}
			return node, data, consumed
		},
		Flags: parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)

	language := "en"
	if info != nil && info.Language != "" {
		language = info.Language
	}
	mhtmlOpts := mhtml.RendererOptions{
		Language: lang.New(language),
	}

	highlight := codeBlockHook(highlightStyle)
	opts := md_html.RendererOptions{
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if status, handled := highlight(w, node, entering); handled {
				return status, true
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
		Flags: md_html.CommonFlags | md_html.SkipHTML | md_html.HrefTargetBlank,
	}

	return markdown.Render(doc, md_html.NewRenderer(opts)), info
}
