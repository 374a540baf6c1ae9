// Package formfile loads a submission from a YAML document into a form
// controller, one edit at a time, the way a user would fill the form.
package formfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/kable/internal/form"
	"github.com/debemdeboas/kable/internal/model"
	"github.com/debemdeboas/kable/internal/render"
)

const (
	InfoText     = "text"
	InfoHTML     = "html"
	InfoMarkdown = "markdown"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

type Document struct {
	Title      string `yaml:"title"`
	Group      string `yaml:"group"`
	Published  string `yaml:"published,omitempty"`
	InfoFormat string `yaml:"info_format,omitempty"`
	// Key, when set, is the submission key progress events carry.
	Key   string `yaml:"key,omitempty"`
	Items []Item `yaml:"items"`
}

type Item struct {
	Section   string `yaml:"section"`
	Info      string `yaml:"info,omitempty"`
	Layout    string `yaml:"layout,omitempty"`
	SortOrder *int   `yaml:"sort_order,omitempty"`
	Image     string `yaml:"image,omitempty"`
}

var ErrImageNotFound = errors.New("image not found")

// ImageResolver turns the image name written in a document into its bytes.
type ImageResolver interface {
	Resolve(name string) (model.Payload, error)
}

// DirResolver resolves image names relative to a directory. Files are read
// when the submission needs them, not when the document is loaded.
type DirResolver string

func (d DirResolver) Resolve(name string) (model.Payload, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(string(d), name)
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageNotFound, name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrImageNotFound, name)
	}
	return model.FilePayload(p), nil
}

// MapResolver resolves image names from bytes already in memory, such as the
// parts of a multipart upload.
type MapResolver map[string][]byte

func (m MapResolver) Resolve(name string) (model.Payload, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	return model.BytesPayload(data), nil
}

func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, fmt.Errorf("empty submission document")
		}
		return doc, fmt.Errorf("error parsing submission document: %w", err)
	}
	return doc, nil
}

func Parse(data []byte) (Document, error) {
	return Decode(bytes.NewReader(data))
}

func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("error reading submission document: %w", err)
	}
	return Parse(data)
}

// Images lists the image names the document refers to, in item order.
func (d Document) Images() []string {
	var out []string
	for _, it := range d.Items {
		if it.Image != "" {
			out = append(out, it.Image)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

type Options struct {
	Images         ImageResolver
	Renderer       render.Renderer
	HighlightStyle string
}

func (o Options) info(format, info string) (string, error) {
	switch strings.ToLower(format) {
	case "", InfoText, InfoHTML:
		return info, nil
	case InfoMarkdown:
		style := o.HighlightStyle
		if style == "" {
			style = render.DefaultHighlightStyle
		}
		return string(render.MarkdownCached([]byte(info), o.Renderer, style)), nil
	}
	return "", fmt.Errorf("unknown info format %q", format)
}

// Apply fills c with the document. Items are added in document order; an item
// without sort_order gets the next order of its section.
func Apply(doc Document, c *form.Controller, opts Options) error {
	c.SetTitle(doc.Title)
	c.SetGroupName(doc.Group)

	if doc.Key != "" {
		if err := c.SetSubmissionKey(doc.Key); err != nil {
			return err
		}
	}

	if doc.Published != "" {
		date, err := parseDate(doc.Published)
		if err != nil {
			return err
		}
		c.SetPublishedDate(date)
	}

	for i, it := range doc.Items {
		section, err := model.ParseSection(it.Section)
		if err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}

		item, err := c.AddItem(section)
		if err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}

		info, err := opts.info(doc.InfoFormat, it.Info)
		if err != nil {
			return err
		}
		item = item.WithInfo(info)

		if it.Layout != "" {
			layout, err := model.ParseLayout(it.Layout)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			item = item.WithLayout(layout)
		}
		if it.SortOrder != nil {
			item = item.WithSortOrder(*it.SortOrder)
		}

		if it.Image != "" {
			if opts.Images == nil {
				return fmt.Errorf("item %d: %w: %s", i+1, ErrImageNotFound, it.Image)
			}
			payload, err := opts.Images.Resolve(it.Image)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			item = item.WithImage(filepath.Base(it.Image), payload, it.Image)
		}

		if err := c.UpdateItem(item.ClientID, item); err != nil {
			return err
		}
	}
	return nil
}
