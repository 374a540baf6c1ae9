package model

import (
	"slices"
	"time"
)

type SubmissionForm struct {
	Title         string
	GroupName     string
	PublishedDate *time.Time
	Items         []ContentItem

	// SubmissionKey identifies this form instance across retries. It is
	// assigned on the first submit attempt and persisted with the parent
	// record when an idempotency field is configured.
	SubmissionKey string
}

func NewEmptyForm() SubmissionForm {
	return SubmissionForm{Items: []ContentItem{}}
}

// Clone returns a copy that shares no mutable state with f.
func (f SubmissionForm) Clone() SubmissionForm {
	c := f
	if f.PublishedDate != nil {
		d := *f.PublishedDate
		c.PublishedDate = &d
	}
	c.Items = slices.Clone(f.Items)
	if c.Items == nil {
		c.Items = []ContentItem{}
	}
	for i, it := range c.Items {
		if it.Image != nil {
			img := *it.Image
			c.Items[i].Image = &img
		}
	}
	return c
}

// ItemsInSection returns the items of a section in form order.
func (f SubmissionForm) ItemsInSection(section Section) []ContentItem {
	var out []ContentItem
	for _, it := range f.Items {
		if it.Section == section {
			out = append(out, it)
		}
	}
	return out
}

func (f SubmissionForm) ItemIndex(id ClientID) int {
	return slices.IndexFunc(f.Items, func(it ContentItem) bool { return it.ClientID == id })
}
