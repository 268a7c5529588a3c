package status

import "fmt"

// Batch and document statuses are explicit state machines. Every transition
// goes through Batch.Transition / Document.Transition so an illegal move fails
// loudly instead of silently overwriting the column.

type Batch string

const (
	BatchUploaded   Batch = "uploaded"
	BatchProcessing Batch = "processing"
	BatchReady      Batch = "ready"
	BatchError      Batch = "error"
)

type Document string

const (
	DocUploaded    Document = "uploaded"
	DocProcessing  Document = "processing"
	DocParsed      Document = "parsed"
	DocEnriched    Document = "enriched"
	DocNeedsReview Document = "needs_review"
	DocApproved    Document = "approved"
	DocExported    Document = "exported"
	DocError       Document = "error"
)

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %q -> %q", e.Entity, e.From, e.To)
}

var batchTransitions = map[Batch][]Batch{
	BatchUploaded:   {BatchProcessing},
	BatchProcessing: {BatchReady, BatchError},
	// re-runs are explicit: ready/error batches may be processed again
	BatchReady: {BatchProcessing},
	BatchError: {BatchProcessing},
}

var documentTransitions = map[Document][]Document{
	DocUploaded:   {DocProcessing},
	DocProcessing: {DocParsed, DocError},
	DocParsed:     {DocEnriched, DocError},
	DocEnriched:   {DocNeedsReview, DocError},
	// edits on an approved document push it back to review
	DocNeedsReview: {DocApproved, DocProcessing},
	DocApproved:    {DocExported, DocNeedsReview},
	// terminal states leave only through an explicit re-run
	DocExported: {DocProcessing},
	DocError:    {DocProcessing},
}

func (s Batch) CanTransition(to Batch) bool {
	for _, next := range batchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Batch) Transition(to Batch) (Batch, error) {
	if !s.CanTransition(to) {
		return s, &InvalidTransitionError{Entity: "batch", From: string(s), To: string(to)}
	}
	return to, nil
}

// Terminal reports whether a batch in this status has finished its run.
func (s Batch) Terminal() bool {
	return s == BatchReady || s == BatchError
}

func (s Document) CanTransition(to Document) bool {
	for _, next := range documentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Document) Transition(to Document) (Document, error) {
	if !s.CanTransition(to) {
		return s, &InvalidTransitionError{Entity: "document", From: string(s), To: string(to)}
	}
	return to, nil
}

// Terminal reports whether a document has reached a non-processing resting
// state; the owning batch becomes ready once every document is terminal.
func (s Document) Terminal() bool {
	switch s {
	case DocNeedsReview, DocApproved, DocExported, DocError:
		return true
	}
	return false
}
