package submission

import (
	"github.com/debemdeboas/kable/internal/model"
	"github.com/debemdeboas/kable/internal/store"
)

// ItemReceipt records what was written for one content item.
type ItemReceipt struct {
	Index    int
	ClientID model.ClientID
	RecordID store.RecordID

	// AssetPath is set once the image binary is uploaded.
	AssetPath string
	// Reference is set once the record carries the image reference.
	Reference *model.ImageReference
}

func (r ItemReceipt) ImageLinked() bool {
	return r.Reference != nil
}

// Receipt is the state left in the store by a submission, complete or not.
type Receipt struct {
	ParentID      store.RecordID
	SubmissionKey string
	Items         []ItemReceipt
}

// Unlinked lists items whose binary was uploaded but whose record never got
// the reference.
func (r Receipt) Unlinked() []ItemReceipt {
	var out []ItemReceipt
	for _, it := range r.Items {
		if it.AssetPath != "" && it.Reference == nil {
			out = append(out, it)
		}
	}
	return out
}
