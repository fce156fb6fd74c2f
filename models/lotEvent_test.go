package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
)

func TestBookTransitionsDraftToBooked(t *testing.T) {
	event := LotEvent{
		Kind:  LotEventKindExportDraft,
		Draft: utils.NewTrue(),
	}
	if err := event.Book(7, "XK-000001"); err != nil {
		t.Fatal(err)
	}
	if event.Kind != LotEventKindExportBooked {
		t.Fatalf("expected ExportBooked, got %s", event.Kind)
	}
	if event.Draft == nil || *event.Draft {
		t.Fatal("booked event must not stay a draft")
	}
	if event.OrderId == nil || *event.OrderId != 7 {
		t.Fatal("booked event must reference its order")
	}
	if event.OrderCode == nil || *event.OrderCode != "XK-000001" {
		t.Fatal("booked event must carry the order code")
	}
}

func TestBookRejectsAlreadyBookedEvent(t *testing.T) {
	event := LotEvent{
		Kind:  LotEventKindInboundDraft,
		Draft: utils.NewTrue(),
	}
	if err := event.Book(1, "NK-000001"); err != nil {
		t.Fatal(err)
	}
	err := event.Book(2, "NK-000002")
	if !errors.Is(err, ErrEventNotDraft) && !errors.Is(err, ErrAlreadyBooked) {
		t.Fatalf("double booking must fail, got %v", err)
	}
}

func TestBookRejectsNonMovementKinds(t *testing.T) {
	for _, kind := range []LotEventKind{
		LotEventKindSplitTo,
		LotEventKindMergedTo,
		LotEventKindItemSnapshot,
		LotEventKindExportBooked,
	} {
		event := LotEvent{Kind: kind, Draft: utils.NewTrue()}
		if err := event.Book(1, "XK-000001"); err == nil {
			t.Fatalf("kind %s must not be bookable", kind)
		}
	}
}

func TestDraftEventForcesDraftFlag(t *testing.T) {
	event := LotEvent{Kind: LotEventKindExportDraft, Draft: utils.NewTrue()}
	if !event.IsDraft() {
		t.Fatal("draft movement should report IsDraft")
	}
	booked := LotEvent{Kind: LotEventKindExportBooked, Draft: utils.NewFalse()}
	if booked.IsDraft() {
		t.Fatal("booked movement must not report IsDraft")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	event := LotEvent{Kind: LotEventKindExportDraft}
	in := LotEventPayload{
		Lines: []LotEventLine{
			{ProductId: 10, Qty: decimal.NewFromFloat(1.5), UnitName: "box", Price: decimal.NewFromInt(120)},
		},
		Snapshot: &LotHeaderSnapshot{LotCode: "LOT-000001", Supplier: "ACME"},
	}
	if err := event.SetPayload(in); err != nil {
		t.Fatal(err)
	}
	out, err := event.GetPayload()
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Lines) != 1 || out.Lines[0].ProductId != 10 || !out.Lines[0].Qty.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("payload lines did not survive: %+v", out.Lines)
	}
	if out.Snapshot == nil || out.Snapshot.LotCode != "LOT-000001" {
		t.Fatalf("payload snapshot did not survive: %+v", out.Snapshot)
	}
}

func TestDraftEventKindMapping(t *testing.T) {
	if OrderKindExport.DraftEventKind() != LotEventKindExportDraft {
		t.Fatal("export orders book ExportDraft events")
	}
	if OrderKindInbound.DraftEventKind() != LotEventKindInboundDraft {
		t.Fatal("inbound orders book InboundDraft events")
	}
}
