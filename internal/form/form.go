// Package form holds the editable state of one submission and drives it
// through idle, submitting, success and error.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/kable/internal/config"
	"github.com/debemdeboas/kable/internal/model"
	"github.com/debemdeboas/kable/internal/store"
	"github.com/debemdeboas/kable/internal/submission"
	"github.com/debemdeboas/kable/internal/validation"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

const DefaultTimeout = 2 * time.Minute

var (
	ErrUnknownItem       = errors.New("unknown content item")
	ErrSubmitting        = errors.New("submission already in progress")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrInvalidSubmissionKey = errors.New("invalid submission key")
)

var formLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	formLogger = l
}

// Submitter writes a form snapshot to the store.
type Submitter interface {
	Submit(ctx context.Context, form model.SubmissionForm) (submission.Receipt, error)
}

type Options struct {
	// Timeout bounds a whole submission. Zero means DefaultTimeout.
	Timeout time.Duration
}

// State is a snapshot of the controller. It shares nothing with the
// controller, so callers may keep or modify it freely.
type State struct {
	Status   Status
	Form     model.SubmissionForm
	Errors   validation.Errors
	ParentID store.RecordID
	Message  string
	Receipt  submission.Receipt
}

type Controller struct {
	submitter Submitter
	timeout   time.Duration

	mu    sync.Mutex
	state State
}

func New(submitter Submitter, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{
		submitter: submitter,
		timeout:   opts.Timeout,
		state:     State{Status: StatusIdle, Form: model.NewEmptyForm(), Errors: validation.Errors{}},
	}
}

func copyErrors(errs validation.Errors) validation.Errors {
	out := make(validation.Errors, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Form = s.Form.Clone()
	s.Errors = copyErrors(s.Errors)
	s.Receipt.Items = append([]submission.ItemReceipt(nil), s.Receipt.Items...)
	return s
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

// update replaces the form with next(form) and drops the validation error of
// the edited field.
func (c *Controller) update(field validation.Field, next func(model.SubmissionForm) (model.SubmissionForm, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	form, err := next(c.state.Form.Clone())
	if err != nil {
		return err
	}
	c.commit(field, form)
	return nil
}

// set is update for edits that cannot fail.
func (c *Controller) set(field validation.Field, edit func(*model.SubmissionForm)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	form := c.state.Form.Clone()
	edit(&form)
	c.commit(field, form)
}

// commit must be called with c.mu held.
func (c *Controller) commit(field validation.Field, form model.SubmissionForm) {
	c.state.Form = form

	if _, ok := c.state.Errors[field]; ok {
		errs := copyErrors(c.state.Errors)
		delete(errs, field)
		c.state.Errors = errs
	}
}

func (c *Controller) SetTitle(title string) {
	c.set(validation.FieldTitle, func(f *model.SubmissionForm) { f.Title = title })
}

func (c *Controller) SetGroupName(group string) {
	c.set(validation.FieldGroupName, func(f *model.SubmissionForm) { f.GroupName = group })
}

func (c *Controller) SetPublishedDate(date time.Time) {
	c.set("", func(f *model.SubmissionForm) { f.PublishedDate = &date })
}

func (c *Controller) ClearPublishedDate() {
	c.set("", func(f *model.SubmissionForm) { f.PublishedDate = nil })
}

// SetSubmissionKey fixes the key the next submit uses, so a caller can watch
// that submission's progress before it starts. The key must be a uuid.
func (c *Controller) SetSubmissionKey(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSubmissionKey, key)
	}
	return c.update("", func(f model.SubmissionForm) (model.SubmissionForm, error) {
		if f.SubmissionKey != "" && f.SubmissionKey != key {
			return f, fmt.Errorf("%w: form already submitted as %s", ErrInvalidSubmissionKey, f.SubmissionKey)
		}
		f.SubmissionKey = key
		return f, nil
	})
}

// AddItem appends an empty item to section, ordered after the items already
// in it, and returns it.
func (c *Controller) AddItem(section model.Section) (model.ContentItem, error) {
	if !section.Valid() {
		return model.ContentItem{}, fmt.Errorf("%w: unknown section %q", submission.ErrInvalidItem, section)
	}

	var item model.ContentItem
	err := c.update(validation.FieldItems, func(f model.SubmissionForm) (model.SubmissionForm, error) {
		item = model.NewEmptyItem(section, model.NextSortOrder(f.Items, section))
		f.Items = append(f.Items, item)
		return f, nil
	})
	return item, err
}

// UpdateItem replaces the item with the given client id. The replacement
// keeps that id whatever item carries.
func (c *Controller) UpdateItem(id model.ClientID, item model.ContentItem) error {
	return c.update("", func(f model.SubmissionForm) (model.SubmissionForm, error) {
		i := f.ItemIndex(id)
		if i < 0 {
			return f, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		item.ClientID = id
		f.Items[i] = item
		return f, nil
	})
}

func (c *Controller) RemoveItem(id model.ClientID) error {
	return c.update("", func(f model.SubmissionForm) (model.SubmissionForm, error) {
		i := f.ItemIndex(id)
		if i < 0 {
			return f, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		f.Items = append(f.Items[:i], f.Items[i+1:]...)
		return f, nil
	})
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return config.ErrSubmissionTimedOut
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return config.ErrUnexpected
}

// begin moves to submitting if the form is valid. It is the only place the
// status becomes submitting, so a second caller always sees ErrSubmitting.
func (c *Controller) begin() (model.SubmissionForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Status {
	case StatusSubmitting:
		return model.SubmissionForm{}, ErrSubmitting
	case StatusSuccess:
		return model.SubmissionForm{}, fmt.Errorf("%w: reset before submitting again", ErrInvalidTransition)
	}

	if errs := validation.Validate(c.state.Form); !errs.Valid() {
		c.state.Errors = errs
		return model.SubmissionForm{}, &validation.Error{Errors: copyErrors(errs)}
	}

	// The key survives failed attempts so retries of this form share it.
	if c.state.Form.SubmissionKey == "" {
		c.state.Form.SubmissionKey = uuid.New().String()
	}

	c.state.Status = StatusSubmitting
	c.state.Errors = validation.Errors{}
	c.state.Message = ""
	c.state.ParentID = 0
	c.state.Receipt = submission.Receipt{}
	return c.state.Form.Clone(), nil
}

// Submit validates the form and, when it is valid, hands a snapshot to the
// submitter. The returned receipt is also kept in the state.
func (c *Controller) Submit(ctx context.Context) (submission.Receipt, error) {
	snapshot, err := c.begin()
	if err != nil {
		return submission.Receipt{}, err
	}

	formLogger.Info().
		Str("submission_key", snapshot.SubmissionKey).
		Int("items", len(snapshot.Items)).
		Msg("Submitting")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	receipt, err := c.submitter.Submit(ctx, snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Receipt = receipt
	if err != nil {
		c.state.Status = StatusError
		c.state.Message = errorMessage(err)
		formLogger.Warn().Err(err).Str("submission_key", snapshot.SubmissionKey).Msg("Submission failed")
		return receipt, err
	}

	c.state.Status = StatusSuccess
	c.state.ParentID = receipt.ParentID
	return receipt, nil
}

// Dismiss leaves the error status and keeps the form for another attempt.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusError {
		return fmt.Errorf("%w: dismiss from %s", ErrInvalidTransition, c.state.Status)
	}
	c.state.Status = StatusIdle
	c.state.Message = ""
	return nil
}

// Reset starts a blank form after a successful submission.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusSuccess {
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, c.state.Status)
	}
	c.state = State{Status: StatusIdle, Form: model.NewEmptyForm(), Errors: validation.Errors{}}
	return nil
}
