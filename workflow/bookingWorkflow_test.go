package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
)

func TestMergedCounterpartyLabel(t *testing.T) {
	cases := []struct {
		names []string
		want  string
	}{
		{[]string{"ACME"}, "ACME"},
		{[]string{"ACME", "ACME"}, "ACME"},
		{[]string{"ACME", "Globex"}, "ACME / Globex"},
		{[]string{"", "ACME", "", "Globex", "ACME"}, "ACME / Globex"},
		{[]string{""}, "Unspecified"},
		{nil, "Unspecified"},
	}
	for _, tc := range cases {
		if got := MergedCounterpartyLabel(tc.names); got != tc.want {
			t.Errorf("MergedCounterpartyLabel(%v) = %q, want %q", tc.names, got, tc.want)
		}
	}
}

func TestFindConsumableItemPrefersMatchingUnit(t *testing.T) {
	items := []models.LotItem{
		{ID: 1, ProductId: 10, Qty: decimal.NewFromInt(5), UnitName: "kg"},
		{ID: 2, ProductId: 10, Qty: decimal.NewFromInt(3), UnitName: "box"},
	}

	item := findConsumableItem(items, 10, "box")
	if item == nil || item.ID != 2 {
		t.Fatalf("expected the box item, got %+v", item)
	}
}

func TestFindConsumableItemFallsBackAcrossUnits(t *testing.T) {
	items := []models.LotItem{
		{ID: 1, ProductId: 10, Qty: decimal.NewFromInt(5), UnitName: "box"},
	}

	item := findConsumableItem(items, 10, "kg")
	if item == nil || item.ID != 1 {
		t.Fatalf("expected the box item as cross-unit fallback, got %+v", item)
	}
	if findConsumableItem(items, 99, "kg") != nil {
		t.Fatal("unknown product must not match any item")
	}
}
