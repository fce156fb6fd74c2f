package models

import "testing"

func TestOrderDocumentDraftRefs(t *testing.T) {
	var order OrderDocument
	if err := order.SetDraftRefs([]int{4, 9, 12}); err != nil {
		t.Fatal(err)
	}
	ids, err := order.DraftRefIds()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 4 || ids[1] != 9 || ids[2] != 12 {
		t.Fatalf("draft refs did not survive the header: %v", ids)
	}
}

func TestOrderDocumentDraftRefsEmpty(t *testing.T) {
	var order OrderDocument
	ids, err := order.DraftRefIds()
	if err != nil {
		t.Fatal(err)
	}
	if ids != nil {
		t.Fatalf("an order without refs should decode to nil, got %v", ids)
	}
}
