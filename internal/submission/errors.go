package submission

import (
	"errors"
	"fmt"

	"github.com/debemdeboas/kable/internal/model"
)

// Step names one remote call (or the local read feeding it) of a submission.
type Step string

const (
	StepCreateParent Step = "create-parent"
	StepCreateItem   Step = "create-item"
	StepReadImage    Step = "read-image"
	StepUploadAsset  Step = "upload-asset"
	StepLinkImage    Step = "link-image"
)

var (
	// ErrMissingRecordID is reported when a create call succeeds without
	// returning an identifier.
	ErrMissingRecordID = errors.New("store returned no record id")

	ErrInvalidItem = errors.New("invalid content item")
)

// StoreError reports the step that failed and everything the store already
// holds for this submission. Nothing is rolled back.
type StoreError struct {
	Step      Step
	ItemIndex int // -1 when the parent record failed
	ClientID  model.ClientID
	Receipt   Receipt
	Err       error
}

// Error returns the store's own message so it can be shown verbatim.
func (e *StoreError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Describe includes the failing step and the partial state, for logs.
func (e *StoreError) Describe() string {
	if e.ItemIndex < 0 {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed for item %d (%s) of submission %d: %v",
		e.Step, e.ItemIndex, e.ClientID, e.Receipt.ParentID, e.Err)
}
