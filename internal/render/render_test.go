package render

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/debemdeboas/kable/internal/cache"
	"github.com/debemdeboas/kable/internal/util"
)

func TestParseRenderer(t *testing.T) {
	tests := []struct {
		in      string
		want    Renderer
		wantErr bool
	}{
		{"", Classic, false},
		{"classic", Classic, false},
		{"MMARK", Mmark, false},
		{"commonmark", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRenderer(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRenderer(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRenderer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		contains []string
		absent   []string
	}{
		{
			name:     "emphasis and links",
			markdown: "Our **new** office opens in [Lisbon](https://example.com).",
			contains: []string{"<strong>new</strong>", `href="https://example.com"`, `target="_blank"`},
		},
		{
			name:     "raw html is dropped",
			markdown: "Hello <script>alert('x')</script> team",
			absent:   []string{"<script"},
		},
		{
			name:     "code block is highlighted inline",
			markdown: "```go\nfunc main() {}\n```",
			contains: []string{`<div class="highlight">`, "style="},
		},
		{
			name:     "table",
			markdown: "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
	}

	for _, r := range []Renderer{Classic, Mmark} {
		for _, tt := range tests {
			t.Run(string(r)+"/"+tt.name, func(t *testing.T) {
				out := string(Markdown([]byte(tt.markdown), r, DefaultHighlightStyle))
				for _, s := range tt.contains {
					if !strings.Contains(out, s) {
						t.Errorf("Expected output to contain %q, got %q", s, out)
					}
				}
				for _, s := range tt.absent {
					if strings.Contains(out, s) {
						t.Errorf("Expected output not to contain %q, got %q", s, out)
					}
				}
			})
		}
	}
}

func TestHighlightCodeUnknownStyle(t *testing.T) {
	out := HighlightCode("x := 1", "go", "no-such-style")
	if out == "" {
		t.Error("Expected output with the fallback style")
	}
}

func TestMarkdownCached(t *testing.T) {
	cache.ClearRenderedMarkdownCache()

	md := []byte("# Launch\n\nWe shipped `kable`.")
	first := MarkdownCached(md, Classic, DefaultHighlightStyle)
	if len(first) == 0 {
		t.Fatal("Expected rendered HTML")
	}

	cached, found := cache.GetRenderedMarkdown(util.ContentHash(md), "classic:"+DefaultHighlightStyle)
	if !found || !bytes.Equal(cached.HTML, first) {
		t.Fatal("Expected the rendered HTML to be cached")
	}

	if second := MarkdownCached(md, Classic, DefaultHighlightStyle); !bytes.Equal(first, second) {
		t.Error("Cache hit should return identical HTML")
	}

	if _, found := cache.GetRenderedMarkdown(util.ContentHash(md), "mmark:"+DefaultHighlightStyle); found {
		t.Error("Expected no entry for a renderer that was not used")
	}
}

func TestMarkdownCachedConcurrency(t *testing.T) {
	cache.ClearRenderedMarkdownCache()

	md := []byte("Concurrent *info* with `code`")
	const workers = 50

	results := make([][]byte, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = MarkdownCached(md, Mmark, DefaultHighlightStyle)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if !bytes.Equal(r, results[0]) {
			t.Errorf("Result %d differs from first result", i)
		}
	}
}
