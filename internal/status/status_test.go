package status

import (
	"errors"
	"testing"
)

func TestBatchTransitions(t *testing.T) {
	cases := []struct {
		from Batch
		to   Batch
		ok   bool
	}{
		{BatchUploaded, BatchProcessing, true},
		{BatchProcessing, BatchReady, true},
		{BatchProcessing, BatchError, true},
		{BatchReady, BatchProcessing, true},
		{BatchError, BatchProcessing, true},
		{BatchUploaded, BatchReady, false},
		{BatchReady, BatchUploaded, false},
		{BatchError, BatchReady, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Fatalf("%s -> %s: expected %v got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestDocumentTransitions(t *testing.T) {
	cases := []struct {
		from Document
		to   Document
		ok   bool
	}{
		{DocUploaded, DocProcessing, true},
		{DocProcessing, DocParsed, true},
		{DocParsed, DocEnriched, true},
		{DocEnriched, DocNeedsReview, true},
		{DocNeedsReview, DocApproved, true},
		{DocApproved, DocExported, true},
		{DocApproved, DocNeedsReview, true},
		{DocError, DocProcessing, true},
		{DocNeedsReview, DocProcessing, true},
		{DocUploaded, DocApproved, false},
		{DocExported, DocApproved, false},
		{DocParsed, DocApproved, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Fatalf("%s -> %s: expected %v got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestTransitionReturnsTypedError(t *testing.T) {
	_, err := DocUploaded.Transition(DocApproved)
	if err == nil {
		t.Fatalf("expected error")
	}
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if ite.From != string(DocUploaded) || ite.To != string(DocApproved) {
		t.Fatalf("unexpected error fields: %+v", ite)
	}
}

func TestTransitionReturnsNextState(t *testing.T) {
	next, err := BatchUploaded.Transition(BatchProcessing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != BatchProcessing {
		t.Fatalf("expected processing, got %s", next)
	}
}
