package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
)

func TestLotWouldDrain(t *testing.T) {
	lot := &models.Lot{Items: []models.LotItem{
		{ID: 1, ProductId: 10, Qty: decimal.NewFromInt(10), UnitName: "kg"},
		{ID: 2, ProductId: 11, Qty: decimal.NewFromInt(4), UnitName: "piece"},
	}}

	tests := []struct {
		name     string
		consumed map[int]decimal.Decimal
		want     bool
	}{
		{
			name: "all items consumed in full",
			consumed: map[int]decimal.Decimal{
				1: decimal.NewFromInt(10),
				2: decimal.NewFromInt(4),
			},
			want: true,
		},
		{
			name: "one item only partially consumed",
			consumed: map[int]decimal.Decimal{
				1: decimal.NewFromInt(10),
				2: decimal.NewFromInt(3),
			},
			want: false,
		},
		{
			name: "one item untouched",
			consumed: map[int]decimal.Decimal{
				1: decimal.NewFromInt(10),
			},
			want: false,
		},
		{
			name: "residue inside the tolerance still drains",
			consumed: map[int]decimal.Decimal{
				1: decimal.NewFromFloat(9.9999),
				2: decimal.NewFromInt(4),
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lotWouldDrain(lot, tt.consumed); got != tt.want {
				t.Fatalf("lotWouldDrain = %v, want %v", got, tt.want)
			}
		})
	}
}
