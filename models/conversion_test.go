package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testContext(t *testing.T) *ConversionContext {
	t.Helper()

	kg := &Unit{ID: 1, Name: "kg"}
	box := &Unit{ID: 2, Name: "box"}
	piece := &Unit{ID: 3, Name: "piece"}

	brakePad := &Product{ID: 10, Name: "Brake pad", UnitId: 1} // base: kg
	oilFilter := &Product{ID: 11, Name: "Oil filter", UnitId: 3} // base: piece

	rates := []*ProductUnitRate{
		{ID: 100, ProductId: 10, UnitId: 2, Rate: decimal.NewFromInt(20)}, // 1 box = 20 kg
	}

	return BuildConversionContext(
		[]*Unit{kg, box, piece},
		[]*Product{brakePad, oilFilter},
		rates,
	)
}

func TestToBaseIdentityForBaseUnit(t *testing.T) {
	cc := testContext(t)

	got := cc.ToBase(10, "kg", decimal.NewFromInt(7))
	if !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("base unit should convert to itself, got %s", got)
	}
}

func TestToBaseAppliesRate(t *testing.T) {
	cc := testContext(t)

	got := cc.ToBase(10, "box", decimal.NewFromInt(3))
	if !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("3 box should be 60 kg, got %s", got)
	}
}

func TestFromBaseInvertsToBase(t *testing.T) {
	cc := testContext(t)

	qty := decimal.NewFromFloat(48.5)
	back := cc.FromBase(10, "box", cc.ToBase(10, "box", qty))
	if !back.Equal(qty) {
		t.Fatalf("round trip changed the quantity: %s -> %s", qty, back)
	}
}

func TestMissingRateFallsBackToBase(t *testing.T) {
	cc := testContext(t)

	// "pallet" has no declared rate for product 10: the quantity passes
	// through unchanged rather than failing the whole operation.
	got := cc.ToBase(10, "pallet", decimal.NewFromInt(5))
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("missing rate should fall back to the raw quantity, got %s", got)
	}
	back := cc.FromBase(10, "pallet", got)
	if !back.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("missing rate fallback should round trip, got %s", back)
	}
}

func TestUnknownProductTreatsUnitAsBase(t *testing.T) {
	cc := testContext(t)

	got := cc.ToBase(999, "kg", decimal.NewFromInt(2))
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unknown product should pass through, got %s", got)
	}
}
