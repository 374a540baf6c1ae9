package model

import "github.com/google/uuid"

type ClientID string

// ContentItem is a single per-section entry of a submission. Items are values:
// every edit produces a new ContentItem that replaces the old one.
type ContentItem struct {
	ClientID  ClientID
	Section   Section
	Info      string
	Image     *Image
	Layout    Layout
	SortOrder int
}

// NewEmptyItem returns a blank item for the section with a fresh client id.
func NewEmptyItem(section Section, order int) ContentItem {
	return ContentItem{
		ClientID:  newClientID(section),
		Section:   section,
		Layout:    DefaultLayout,
		SortOrder: order,
	}
}

func newClientID(section Section) ClientID {
	return ClientID(string(section) + "-" + uuid.New().String())
}

func (it ContentItem) HasImage() bool {
	return it.Image != nil && it.Image.Payload != nil
}

func (it ContentItem) WithInfo(info string) ContentItem {
	it.Info = info
	return it
}

func (it ContentItem) WithLayout(layout Layout) ContentItem {
	it.Layout = layout
	return it
}

func (it ContentItem) WithSortOrder(order int) ContentItem {
	it.SortOrder = order
	return it
}

// WithImage attaches an image. A nil payload detaches it instead, so an item
// never carries a preview without bytes behind it.
func (it ContentItem) WithImage(fileName string, payload Payload, preview string) ContentItem {
	if payload == nil {
		return it.WithoutImage()
	}
	if preview == "" {
		preview = fileName
	}
	it.Image = &Image{FileName: fileName, Payload: payload, Preview: preview}
	return it
}

func (it ContentItem) WithoutImage() ContentItem {
	it.Image = nil
	return it
}

// NextSortOrder is the sort order given to an item added to section: the
// number of items already in that section plus one.
func NextSortOrder(items []ContentItem, section Section) int {
	n := 0
	for _, it := range items {
		if it.Section == section {
			n++
		}
	}
	return n + 1
}
