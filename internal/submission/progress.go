package submission

import (
	"github.com/debemdeboas/kable/internal/metrics"
	"github.com/debemdeboas/kable/internal/store"
)

// Event reports one finished step of a submission.
type Event struct {
	SubmissionKey string         `json:"submissionKey,omitempty"`
	Step          Step           `json:"step"`
	ItemIndex     int            `json:"itemIndex"` // -1 for the parent record
	RecordID      store.RecordID `json:"recordId,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func (e Event) Failed() bool {
	return e.Error != ""
}

func (o *Orchestrator) report(key string, step Step, index int, recordID store.RecordID, err error) {
	metrics.RecordStep(string(step), err)
	if o.opts.Progress == nil {
		return
	}

	ev := Event{SubmissionKey: key, Step: step, ItemIndex: index, RecordID: recordID}
	if err != nil {
		ev.Error = err.Error()
	}
	o.opts.Progress(ev)
}
