package formfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/kable/internal/form"
	"github.com/debemdeboas/kable/internal/model"
	"github.com/debemdeboas/kable/internal/render"
	"github.com/debemdeboas/kable/internal/submission"
)

const sample = `
title: March Newsletter
group: Ops
published: 2025-03-01
items:
  - section: News
    info: We moved offices.
    layout: Full Width Banner
    image: office.png
  - section: People
    info: Welcome Ana
  - section: News
    info: Second story
    sort_order: 7
`

type nopSubmitter struct{}

func (nopSubmitter) Submit(context.Context, model.SubmissionForm) (submission.Receipt, error) {
	return submission.Receipt{}, nil
}

func newController() *form.Controller {
	form.SetLogger(zerolog.Nop())
	return form.New(nopSubmitter{}, form.Options{})
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if doc.Title != "March Newsletter" || doc.Group != "Ops" || doc.Published != "2025-03-01" {
		t.Errorf("Unexpected header %+v", doc)
	}
	if len(doc.Items) != 3 || *doc.Items[2].SortOrder != 7 {
		t.Errorf("Unexpected items %+v", doc.Items)
	}
	if !reflect.DeepEqual(doc.Images(), []string{"office.png"}) {
		t.Errorf("Images() = %v", doc.Images())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"unknown field", "title: x\ncolour: red\n"},
		{"bad yaml", "title: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestApply(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	c := newController()
	images := MapResolver{"office.png": []byte("png-bytes")}
	if err := Apply(doc, c, Options{Images: images}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	f := c.State().Form
	if f.Title != "March Newsletter" || f.GroupName != "Ops" {
		t.Errorf("Unexpected form header %+v", f)
	}
	if f.PublishedDate == nil || !f.PublishedDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date %v", f.PublishedDate)
	}

	if len(f.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(f.Items))
	}

	first := f.Items[0]
	if first.Section != model.SectionNews || first.Layout != model.LayoutBanner || first.SortOrder != 1 {
		t.Errorf("Unexpected first item %+v", first)
	}
	if !first.HasImage() || first.Image.FileName != "office.png" {
		t.Fatalf("Expected the first item to carry office.png, got %+v", first.Image)
	}
	data, _ := first.Image.Payload.Bytes(context.Background())
	if string(data) != "png-bytes" {
		t.Errorf("Unexpected image bytes %q", data)
	}

	if f.Items[1].HasImage() || f.Items[1].Layout != model.DefaultLayout || f.Items[1].SortOrder != 1 {
		t.Errorf("Unexpected second item %+v", f.Items[1])
	}
	if f.Items[2].SortOrder != 7 {
		t.Errorf("Expected explicit sort order 7, got %d", f.Items[2].SortOrder)
	}
}

func TestApplyMarkdownInfo(t *testing.T) {
	doc := Document{
		Title:      "T",
		Group:      "G",
		InfoFormat: InfoMarkdown,
		Items:      []Item{{Section: "Project", Info: "Shipped **v2**"}},
	}

	c := newController()
	if err := Apply(doc, c, Options{Renderer: render.Classic}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	info := c.State().Form.Items[0].Info
	if !strings.Contains(info, "<strong>v2</strong>") {
		t.Errorf("Expected rendered markdown, got %q", info)
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		opts Options
		want error
	}{
		{
			name: "unknown section",
			doc:  Document{Items: []Item{{Section: "Sports"}}},
		},
		{
			name: "unknown layout",
			doc:  Document{Items: []Item{{Section: "News", Layout: "Sideways"}}},
		},
		{
			name: "bad date",
			doc:  Document{Published: "next tuesday"},
		},
		{
			name: "unknown info format",
			doc:  Document{InfoFormat: "rst", Items: []Item{{Section: "News"}}},
		},
		{
			name: "missing image",
			doc:  Document{Items: []Item{{Section: "News", Image: "gone.png"}}},
			opts: Options{Images: MapResolver{}},
			want: ErrImageNotFound,
		},
		{
			name: "bad key",
			doc:  Document{Key: "my-key"},
			want: form.ErrInvalidSubmissionKey,
		},
		{
			name: "no resolver",
			doc:  Document{Items: []Item{{Section: "News", Image: "a.png"}}},
			want: ErrImageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Apply(tt.doc, newController(), tt.opts)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.png"), []byte("img"), 0o644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}

	r := DirResolver(dir)
	payload, err := r.Resolve("photo.png")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	data, err := payload.Bytes(context.Background())
	if err != nil || string(data) != "img" {
		t.Errorf("Unexpected payload %q (%v)", data, err)
	}

	if _, err := r.Resolve("missing.png"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got %v", err)
	}
	if _, err := r.Resolve("."); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound for a directory, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submission.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}
	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if doc.Title != "March Newsletter" {
		t.Errorf("Unexpected title %q", doc.Title)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestApplyKey(t *testing.T) {
	const key = "6f1c1c54-2b6e-4f0e-9a51-3d1f0a8e2b11"

	c := newController()
	if err := Apply(Document{Title: "March", Group: "Ops", Key: key}, c, Options{}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got := c.State().Form.SubmissionKey; got != key {
		t.Errorf("Expected key %s, got %q", key, got)
	}
}
