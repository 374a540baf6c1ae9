// Package submission writes a validated submission form to the store: the
// parent record first, then every content item with its optional image.
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/kable/internal/metrics"
	"github.com/debemdeboas/kable/internal/model"
	"github.com/debemdeboas/kable/internal/store"
	"github.com/debemdeboas/kable/internal/validation"
)

const (
	DefaultSubmissionsList = "Kable Submissions"
	DefaultContentList     = "Kable Content"

	// PublishedDateLayout is UTC with millisecond precision.
	PublishedDateLayout = "2006-01-02T15:04:05.000Z"
)

var submissionLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	submissionLogger = l
}

// Fields names the record columns the orchestrator writes.
type Fields struct {
	Title         string
	GroupName     string
	PublishedDate string

	Submission string
	Section    string
	Info       string
	Layout     string
	SortOrder  string
	Image      string
}

func DefaultFields() Fields {
	return Fields{
		Title:         "Title",
		GroupName:     "GroupName",
		PublishedDate: "PublishedDate",
		Submission:    "KableSubmissionId",
		Section:       "KableSection",
		Info:          "Info",
		Layout:        "KableLayout",
		SortOrder:     "SortOrder",
		Image:         "KableImage",
	}
}

type Options struct {
	SiteURL         string
	SubmissionsList string
	ContentList     string

	// AssetLocation is the folder, relative to the site, holding per-item
	// asset folders. Empty means Lists/<content list>/Attachments.
	AssetLocation string

	Fields Fields

	// IdempotencyField, when set, stores the form's submission key on the
	// parent record.
	IdempotencyField string

	// Progress, when set, is called after every step in the order the steps
	// run. It must not block.
	Progress func(Event)
}

type Orchestrator struct {
	handle store.Handle
	opts   Options

	serverURL  string
	sitePath   string
	siteRawURL string
}

func New(handle store.Handle, opts Options) (*Orchestrator, error) {
	if handle == nil {
		return nil, fmt.Errorf("store handle is required")
	}

	u, err := url.Parse(opts.SiteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("site URL must be absolute: %q", opts.SiteURL)
	}

	if opts.SubmissionsList == "" {
		opts.SubmissionsList = DefaultSubmissionsList
	}
	if opts.ContentList == "" {
		opts.ContentList = DefaultContentList
	}
	if opts.Fields == (Fields{}) {
		opts.Fields = DefaultFields()
	}

	return &Orchestrator{
		handle:     handle,
		opts:       opts,
		serverURL:  u.Scheme + "://" + u.Host,
		sitePath:   strings.TrimRight(u.Path, "/"),
		siteRawURL: strings.TrimRight(u.EscapedPath(), "/"),
	}, nil
}

func (o *Orchestrator) assetSegments() []string {
	loc := o.opts.AssetLocation
	if loc == "" {
		return []string{"Lists", o.opts.ContentList, "Attachments"}
	}
	var segs []string
	for _, s := range strings.Split(loc, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// assetFileName drops any directory part a client may have sent.
func assetFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return "image"
	}
	return name
}

// ImageReference derives where the image of a content record is stored and
// the reference that points at it. The record id makes the folder unique per
// item, so equal file names from different submissions never collide.
func (o *Orchestrator) ImageReference(recordID store.RecordID, fileName string) (assetPath string, ref model.ImageReference) {
	name := assetFileName(fileName)
	id := strconv.Itoa(int(recordID))

	raw := []string{o.sitePath}
	escaped := []string{o.siteRawURL}
	for _, s := range o.assetSegments() {
		raw = append(raw, s)
		escaped = append(escaped, url.PathEscape(s))
	}
	raw = append(raw, id, name)
	escaped = append(escaped, id, url.PathEscape(name))

	return strings.Join(raw, "/"), model.ImageReference{
		Type:              model.ImageReferenceType,
		FileName:          name,
		ServerURL:         o.serverURL,
		ServerRelativeURL: strings.Join(escaped, "/"),
	}
}

func (o *Orchestrator) parentPayload(form model.SubmissionForm) store.Payload {
	f := o.opts.Fields
	payload := store.Payload{
		f.Title:     form.Title,
		f.GroupName: form.GroupName,
	}
	if form.PublishedDate != nil {
		payload[f.PublishedDate] = form.PublishedDate.UTC().Format(PublishedDateLayout)
	}
	if o.opts.IdempotencyField != "" && form.SubmissionKey != "" {
		payload[o.opts.IdempotencyField] = form.SubmissionKey
	}
	return payload
}

func (o *Orchestrator) itemPayload(parentID store.RecordID, item model.ContentItem) store.Payload {
	f := o.opts.Fields
	return store.Payload{
		f.Submission: int(parentID),
		f.Section:    string(item.Section),
		f.Info:       item.Info,
		f.Layout:     string(item.Layout),
		f.SortOrder:  item.SortOrder,
	}
}

func checkItems(items []model.ContentItem) error {
	for i, it := range items {
		if !it.Section.Valid() {
			return fmt.Errorf("%w %d: unknown section %q", ErrInvalidItem, i, it.Section)
		}
		if !it.Layout.Valid() {
			return fmt.Errorf("%w %d: unknown layout %q", ErrInvalidItem, i, it.Layout)
		}
	}
	return nil
}

// Submit writes form to the store and returns the receipt of what was
// created. Calls are issued one at a time; the first failure stops the
// sequence and is returned as a *StoreError alongside the partial receipt.
func (o *Orchestrator) Submit(ctx context.Context, form model.SubmissionForm) (Receipt, error) {
	form = form.Clone()

	if errs := validation.Validate(form); !errs.Valid() {
		return Receipt{}, &validation.Error{Errors: errs}
	}
	if err := checkItems(form.Items); err != nil {
		return Receipt{}, err
	}

	start := time.Now()
	receipt, err := o.run(ctx, form)
	metrics.RecordSubmission(time.Since(start), err)

	if err != nil {
		ev := submissionLogger.Error().Err(err)
		var se *StoreError
		if errors.As(err, &se) {
			ev = ev.Str("step", string(se.Step)).Int("item_index", se.ItemIndex)
		}
		ev.Int("parent_id", int(receipt.ParentID)).
			Int("items_written", len(receipt.Items)).
			Msg("Submission stopped")
		return receipt, err
	}

	submissionLogger.Info().
		Int("parent_id", int(receipt.ParentID)).
		Int("items", len(receipt.Items)).
		Dur("elapsed", time.Since(start)).
		Msg("Submission created")
	return receipt, nil
}

func (o *Orchestrator) run(ctx context.Context, form model.SubmissionForm) (Receipt, error) {
	receipt := Receipt{SubmissionKey: form.SubmissionKey, Items: []ItemReceipt{}}

	key := form.SubmissionKey
	fail := func(step Step, index int, id model.ClientID, recordID store.RecordID, err error) error {
		o.report(key, step, index, recordID, err)
		return &StoreError{Step: step, ItemIndex: index, ClientID: id, Receipt: receipt, Err: err}
	}

	parentID, err := o.handle.CreateRecord(ctx, o.opts.SubmissionsList, o.parentPayload(form))
	if err == nil && parentID <= 0 {
		err = ErrMissingRecordID
	}
	if err != nil {
		return receipt, fail(StepCreateParent, -1, "", 0, err)
	}
	o.report(key, StepCreateParent, -1, parentID, nil)
	receipt.ParentID = parentID

	submissionLogger.Debug().
		Int("parent_id", int(parentID)).
		Str("title", form.Title).
		Msg("Parent record created")

	for i, item := range form.Items {
		childID, err := o.handle.CreateRecord(ctx, o.opts.ContentList, o.itemPayload(parentID, item))
		if err == nil && childID <= 0 {
			err = ErrMissingRecordID
		}
		if err != nil {
			return receipt, fail(StepCreateItem, i, item.ClientID, 0, err)
		}
		o.report(key, StepCreateItem, i, childID, nil)

		receipt.Items = append(receipt.Items, ItemReceipt{Index: i, ClientID: item.ClientID, RecordID: childID})
		current := &receipt.Items[len(receipt.Items)-1]

		if !item.HasImage() {
			continue
		}

		data, err := item.Image.Payload.Bytes(ctx)
		if err != nil {
			return receipt, fail(StepReadImage, i, item.ClientID, childID, err)
		}

		assetPath, ref := o.ImageReference(childID, item.Image.FileName)
		if err := o.handle.UploadAsset(ctx, assetPath, data, store.UploadOptions{Overwrite: true}); err != nil {
			return receipt, fail(StepUploadAsset, i, item.ClientID, childID, err)
		}
		o.report(key, StepUploadAsset, i, childID, nil)
		current.AssetPath = assetPath

		refJSON, err := ref.JSON()
		if err != nil {
			return receipt, fail(StepLinkImage, i, item.ClientID, childID, err)
		}
		if err := o.handle.UpdateRecord(ctx, o.opts.ContentList, childID, store.Payload{o.opts.Fields.Image: refJSON}); err != nil {
			return receipt, fail(StepLinkImage, i, item.ClientID, childID, err)
		}
		o.report(key, StepLinkImage, i, childID, nil)
		current.Reference = &ref

		submissionLogger.Debug().
			Int("record_id", int(childID)).
			Str("asset_path", assetPath).
			Msg("Image linked")
	}

	return receipt, nil
}
