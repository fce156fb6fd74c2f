package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAutoSplitRemainderPartialConsumption(t *testing.T) {
	remaining, fullyConsumed, err := AutoSplitRemainder(decimal.NewFromInt(50), decimal.NewFromFloat(1.5))
	if err != nil {
		t.Fatal(err)
	}
	if fullyConsumed {
		t.Fatal("48.5 should remain, not be fully consumed")
	}
	if !remaining.Equal(decimal.NewFromFloat(48.5)) {
		t.Fatalf("expected 48.5 remaining, got %s", remaining)
	}
}

func TestAutoSplitRemainderExactConsumption(t *testing.T) {
	remaining, fullyConsumed, err := AutoSplitRemainder(decimal.NewFromInt(50), decimal.NewFromInt(50))
	if err != nil {
		t.Fatal(err)
	}
	if !fullyConsumed {
		t.Fatal("consuming the whole quantity should fully consume the item")
	}
	if !remaining.IsZero() {
		t.Fatalf("expected zero remainder, got %s", remaining)
	}
}

func TestAutoSplitRemainderWithinEpsilonIsFullyConsumed(t *testing.T) {
	// 0.0001 left over counts as consumed: residues inside the tolerance
	// would otherwise accumulate as phantom stock.
	itemQty := decimal.NewFromFloat(10.0001)
	remaining, fullyConsumed, err := AutoSplitRemainder(itemQty, decimal.NewFromInt(10))
	if err != nil {
		t.Fatal(err)
	}
	if !fullyConsumed {
		t.Fatalf("residue %s is inside the tolerance and should be dropped", remaining)
	}
}

func TestAutoSplitRemainderOverConsumptionRejected(t *testing.T) {
	_, _, err := AutoSplitRemainder(decimal.NewFromInt(10), decimal.NewFromFloat(10.5))
	if !errors.Is(err, ErrOverConsumption) {
		t.Fatalf("expected ErrOverConsumption, got %v", err)
	}
}

func TestAutoSplitRemainderOverConsumptionWithinEpsilonTolerated(t *testing.T) {
	// Consuming 10.0001 from 10 is rounding noise, not over-consumption.
	remaining, fullyConsumed, err := AutoSplitRemainder(decimal.NewFromInt(10), decimal.NewFromFloat(10.0001))
	if err != nil {
		t.Fatal(err)
	}
	if !fullyConsumed {
		t.Fatalf("expected full consumption, got remainder %s", remaining)
	}
}

// Exporting 30 kg from a lot holding 50 box of a product whose box rate is
// 20 kg consumes 1.5 box; the lot ends at 48.5 box = 970 kg.
func TestExportAcrossUnitsConservesBaseQuantity(t *testing.T) {
	cc := testContext(t)

	item := LotItem{ProductId: 10, Qty: decimal.NewFromInt(50), UnitName: "box"}

	requested := decimal.NewFromInt(30) // kg
	consumedInItemUnit := cc.FromBase(10, item.UnitName, cc.ToBase(10, "kg", requested))
	if !consumedInItemUnit.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("30 kg should consume 1.5 box, got %s", consumedInItemUnit)
	}

	remaining, fullyConsumed, err := AutoSplitRemainder(item.Qty, consumedInItemUnit)
	if err != nil {
		t.Fatal(err)
	}
	if fullyConsumed {
		t.Fatal("lot item should survive a partial export")
	}
	if !remaining.Equal(decimal.NewFromFloat(48.5)) {
		t.Fatalf("expected 48.5 box remaining, got %s", remaining)
	}

	item.Qty = remaining
	total := SumItemsBase(cc, []LotItem{item})
	if !total.Equal(decimal.NewFromInt(970)) {
		t.Fatalf("expected 970 kg total, got %s", total)
	}
}

// Relabeling a remainder into another unit must convert the quantity, not
// just swap the label: 48.5 box at 20 kg/box re-expressed in kg is 970 kg,
// and the base sum is identical before and after.
func TestRemainderInUnitConservesBaseQuantity(t *testing.T) {
	cc := testContext(t)

	remaining := decimal.NewFromFloat(48.5) // box
	relabeled := RemainderInUnit(cc, 10, remaining, "box", "kg")
	if !relabeled.Equal(decimal.NewFromInt(970)) {
		t.Fatalf("expected 970 kg, got %s", relabeled)
	}

	before := SumItemsBase(cc, []LotItem{{ProductId: 10, Qty: remaining, UnitName: "box"}})
	after := SumItemsBase(cc, []LotItem{{ProductId: 10, Qty: relabeled, UnitName: "kg"}})
	if !before.Equal(after) {
		t.Fatalf("base quantity changed by relabel: %s before, %s after", before, after)
	}
}

func TestRemainderInUnitKeepsQuantityWhenUnitUnchanged(t *testing.T) {
	cc := testContext(t)

	remaining := decimal.NewFromFloat(48.5)
	if got := RemainderInUnit(cc, 10, remaining, "box", ""); !got.Equal(remaining) {
		t.Fatalf("empty target unit should keep the quantity, got %s", got)
	}
	if got := RemainderInUnit(cc, 10, remaining, "box", "box"); !got.Equal(remaining) {
		t.Fatalf("same target unit should keep the quantity, got %s", got)
	}
}

func TestSumItemsBaseMixedUnits(t *testing.T) {
	cc := testContext(t)

	items := []LotItem{
		{ProductId: 10, Qty: decimal.NewFromInt(2), UnitName: "box"}, // 40 kg
		{ProductId: 10, Qty: decimal.NewFromInt(5), UnitName: "kg"}, // 5 kg
	}
	total := SumItemsBase(cc, items)
	if !total.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("expected 45 kg, got %s", total)
	}
}
