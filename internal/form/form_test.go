package form

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/kable/internal/config"
	"github.com/debemdeboas/kable/internal/model"
	"github.com/debemdeboas/kable/internal/submission"
	"github.com/debemdeboas/kable/internal/validation"
)

func init() {
	SetLogger(zerolog.Nop())
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []model.SubmissionForm
	receipt submission.Receipt
	err     error

	// block, when set, holds every call until it is closed.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, form model.SubmissionForm) (submission.Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, form)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return submission.Receipt{}, ctx.Err()
		}
	}
	return f.receipt, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fill(t *testing.T, c *Controller) model.ContentItem {
	t.Helper()
	c.SetTitle("March Newsletter")
	c.SetGroupName("Ops")
	item, err := c.AddItem(model.SectionNews)
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	return item
}

func TestNewController(t *testing.T) {
	c := New(&fakeSubmitter{}, Options{})
	s := c.State()

	if s.Status != StatusIdle {
		t.Errorf("Expected idle, got %s", s.Status)
	}
	if !reflect.DeepEqual(s.Form, model.NewEmptyForm()) {
		t.Errorf("Expected an empty form, got %+v", s.Form)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", c.timeout)
	}
}

func TestReducers(t *testing.T) {
	c := New(&fakeSubmitter{}, Options{})

	c.SetTitle("Q3")
	c.SetGroupName("Engineering")
	date := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c.SetPublishedDate(date)

	news1, _ := c.AddItem(model.SectionNews)
	people, _ := c.AddItem(model.SectionPeople)
	news2, _ := c.AddItem(model.SectionNews)

	if news1.SortOrder != 1 || people.SortOrder != 1 || news2.SortOrder != 2 {
		t.Errorf("Unexpected sort orders %d %d %d", news1.SortOrder, people.SortOrder, news2.SortOrder)
	}

	s := c.State()
	if s.Form.Title != "Q3" || s.Form.GroupName != "Engineering" || !s.Form.PublishedDate.Equal(date) {
		t.Errorf("Unexpected form %+v", s.Form)
	}
	if len(s.Form.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(s.Form.Items))
	}

	updated := news1.WithInfo("Launch").WithImage("a.png", model.BytesPayload("x"), "")
	updated.ClientID = "someone-else"
	if err := c.UpdateItem(news1.ClientID, updated); err != nil {
		t.Fatalf("UpdateItem returned error: %v", err)
	}
	got := c.State().Form.Items[0]
	if got.ClientID != news1.ClientID || got.Info != "Launch" || !got.HasImage() {
		t.Errorf("Unexpected updated item %+v", got)
	}

	if err := c.RemoveItem(people.ClientID); err != nil {
		t.Fatalf("RemoveItem returned error: %v", err)
	}
	items := c.State().Form.Items
	if len(items) != 2 || items[0].ClientID != news1.ClientID || items[1].ClientID != news2.ClientID {
		t.Errorf("Unexpected items after remove %+v", items)
	}

	c.ClearPublishedDate()
	if c.State().Form.PublishedDate != nil {
		t.Error("Expected the date to be cleared")
	}
}

func TestReducerErrors(t *testing.T) {
	c := New(&fakeSubmitter{}, Options{})

	if err := c.UpdateItem("missing", model.ContentItem{}); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem, got %v", err)
	}
	if err := c.RemoveItem("missing"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem, got %v", err)
	}
	if _, err := c.AddItem("Sports"); !errors.Is(err, submission.ErrInvalidItem) {
		t.Errorf("Expected ErrInvalidItem, got %v", err)
	}
	if len(c.State().Form.Items) != 0 {
		t.Error("Expected failed reducers to leave the form untouched")
	}
}

func TestStateDoesNotAlias(t *testing.T) {
	c := New(&fakeSubmitter{}, Options{})
	fill(t, c)

	s := c.State()
	s.Form.Items[0].Info = "changed outside"
	s.Form.Title = "changed outside"
	s.Errors["x"] = "y"

	again := c.State()
	if again.Form.Items[0].Info != "" || again.Form.Title != "March Newsletter" || len(again.Errors) != 0 {
		t.Errorf("Controller state was modified through a snapshot: %+v", again)
	}
}

func TestSubmitValidation(t *testing.T) {
	sub := &fakeSubmitter{}
	c := New(sub, Options{})

	_, err := c.Submit(context.Background())
	var ve *validation.Error
	if !errors.As(err, &ve) {
		t.Fatalf("Expected *validation.Error, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("Expected no submitter call for an invalid form")
	}

	s := c.State()
	if s.Status != StatusIdle {
		t.Errorf("Expected to stay idle, got %s", s.Status)
	}
	want := []validation.Field{validation.FieldGroupName, validation.FieldItems, validation.FieldTitle}
	if !reflect.DeepEqual(s.Errors.Fields(), want) {
		t.Errorf("Errors = %v, want %v", s.Errors.Fields(), want)
	}

	// Editing a field clears only its own error.
	c.SetTitle("T")
	if _, ok := c.State().Errors[validation.FieldTitle]; ok {
		t.Error("Expected the title error to be cleared")
	}
	c.AddItem(model.SectionProject)
	errs := c.State().Errors
	if _, ok := errs[validation.FieldItems]; ok {
		t.Error("Expected the items error to be cleared")
	}
	if _, ok := errs[validation.FieldGroupName]; !ok {
		t.Error("Expected the group error to remain")
	}
}

func TestSubmitSuccessAndReset(t *testing.T) {
	sub := &fakeSubmitter{receipt: submission.Receipt{ParentID: 17}}
	c := New(sub, Options{})
	fill(t, c)

	receipt, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if receipt.ParentID != 17 {
		t.Errorf("Expected parent 17, got %d", receipt.ParentID)
	}

	s := c.State()
	if s.Status != StatusSuccess || s.ParentID != 17 {
		t.Errorf("Unexpected state %+v", s)
	}
	if sub.calls[0].SubmissionKey == "" {
		t.Error("Expected the snapshot to carry a submission key")
	}

	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition when submitting after success, got %v", err)
	}
	if err := c.Dismiss(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for dismiss after success, got %v", err)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	s = c.State()
	if s.Status != StatusIdle || s.ParentID != 0 {
		t.Errorf("Unexpected state after reset %+v", s)
	}
	if !reflect.DeepEqual(s.Form, model.NewEmptyForm()) {
		t.Errorf("Expected a form deep-equal to an empty one, got %+v", s.Form)
	}
}

func TestSubmitErrorAndRetry(t *testing.T) {
	storeErr := &submission.StoreError{
		Step:      submission.StepUploadAsset,
		ItemIndex: 0,
		Receipt:   submission.Receipt{ParentID: 5},
		Err:       errors.New("The file is locked."),
	}
	sub := &fakeSubmitter{receipt: storeErr.Receipt, err: storeErr}
	c := New(sub, Options{})
	fill(t, c)

	if _, err := c.Submit(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("Expected the store error, got %v", err)
	}

	s := c.State()
	if s.Status != StatusError || s.Message != "The file is locked." {
		t.Errorf("Unexpected state %+v", s)
	}
	if s.Receipt.ParentID != 5 {
		t.Errorf("Expected the partial receipt to be kept, got %+v", s.Receipt)
	}
	if s.Form.Title != "March Newsletter" || len(s.Form.Items) != 1 {
		t.Error("Expected the form data to be kept after an error")
	}

	if err := c.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for reset after error, got %v", err)
	}

	// Retrying straight from the error status is allowed and reuses the key.
	sub.err = nil
	sub.receipt = submission.Receipt{ParentID: 6}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if sub.calls[0].SubmissionKey != sub.calls[1].SubmissionKey {
		t.Error("Expected retries to share the submission key")
	}
}

func TestDismiss(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("boom")}
	c := New(sub, Options{})
	fill(t, c)

	if err := c.Dismiss(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from idle, got %v", err)
	}

	c.Submit(context.Background())
	if err := c.Dismiss(); err != nil {
		t.Fatalf("Dismiss returned error: %v", err)
	}
	s := c.State()
	if s.Status != StatusIdle || s.Message != "" {
		t.Errorf("Unexpected state after dismiss %+v", s)
	}
	if len(s.Form.Items) != 1 {
		t.Error("Expected dismiss to keep the form")
	}
}

type emptyError struct{}

func (emptyError) Error() string { return "  " }

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"verbatim", errors.New("List does not exist."), "List does not exist."},
		{"empty", emptyError{}, config.ErrUnexpected},
		{"store error without cause", &submission.StoreError{}, config.ErrUnexpected},
		{"deadline", context.DeadlineExceeded, config.ErrSubmissionTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage(tt.err); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubmitTimeout(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	c := New(sub, Options{Timeout: 20 * time.Millisecond})
	fill(t, c)

	_, err := c.Submit(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected a deadline error, got %v", err)
	}
	if s := c.State(); s.Status != StatusError || s.Message != config.ErrSubmissionTimedOut {
		t.Errorf("Unexpected state %+v", s)
	}
}

func TestSubmitIsNotReentrant(t *testing.T) {
	sub := &fakeSubmitter{
		receipt: submission.Receipt{ParentID: 1},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := New(sub, Options{})
	fill(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	<-sub.started
	if c.Status() != StatusSubmitting {
		t.Fatalf("Expected submitting, got %s", c.Status())
	}

	for i := 0; i < 5; i++ {
		if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitting) {
			t.Errorf("Expected ErrSubmitting, got %v", err)
		}
	}

	close(sub.block)
	if err := <-done; err != nil {
		t.Fatalf("First submit returned error: %v", err)
	}
	if sub.count() != 1 {
		t.Errorf("Expected exactly one submitter call, got %d", sub.count())
	}
}

func TestSettersClearOnlyTheirFieldError(t *testing.T) {
	c := New(&fakeSubmitter{}, Options{})
	if _, err := c.Submit(context.Background()); err == nil {
		t.Fatal("Expected a validation error for an empty form")
	}

	steps := []struct {
		name string
		edit func()
		want []validation.Field
	}{
		{"published date", func() { c.SetPublishedDate(time.Now()) }, []validation.Field{validation.FieldGroupName, validation.FieldItems, validation.FieldTitle}},
		{"clear date", c.ClearPublishedDate, []validation.Field{validation.FieldGroupName, validation.FieldItems, validation.FieldTitle}},
		{"title", func() { c.SetTitle("Q3") }, []validation.Field{validation.FieldGroupName, validation.FieldItems}},
		{"group", func() { c.SetGroupName("Ops") }, []validation.Field{validation.FieldItems}},
	}

	for _, step := range steps {
		step.edit()
		if got := c.State().Errors.Fields(); !reflect.DeepEqual(got, step.want) {
			t.Errorf("after %s: errors on %v, want %v", step.name, got, step.want)
		}
	}

	f := c.State().Form
	if f.Title != "Q3" || f.GroupName != "Ops" || f.PublishedDate != nil {
		t.Errorf("Unexpected form %+v", f)
	}
}

func TestSetSubmissionKey(t *testing.T) {
	const key = "6f1c1c54-2b6e-4f0e-9a51-3d1f0a8e2b11"

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not a uuid", "my-key"},
		{"path", "../../etc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeSubmitter{}, Options{})
			if err := c.SetSubmissionKey(tt.key); !errors.Is(err, ErrInvalidSubmissionKey) {
				t.Errorf("Expected ErrInvalidSubmissionKey, got %v", err)
			}
			if c.State().Form.SubmissionKey != "" {
				t.Error("Expected the key to stay unset")
			}
		})
	}

	sub := &fakeSubmitter{err: errors.New("Access denied.")}
	c := New(sub, Options{})
	fill(t, c)
	if err := c.SetSubmissionKey(key); err != nil {
		t.Fatalf("SetSubmissionKey returned error: %v", err)
	}
	c.Submit(context.Background())
	if sub.calls[0].SubmissionKey != key {
		t.Errorf("Expected the submit to use %s, got %s", key, sub.calls[0].SubmissionKey)
	}

	// After an attempt the key is fixed; only the same key is accepted.
	if err := c.SetSubmissionKey(key); err != nil {
		t.Errorf("Expected the same key to be accepted, got %v", err)
	}
	if err := c.SetSubmissionKey("0b8f0d6e-54a1-4c2e-8f43-7c1e6f2d9a00"); !errors.Is(err, ErrInvalidSubmissionKey) {
		t.Errorf("Expected a different key to be rejected, got %v", err)
	}
}
