package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
)

// Accounting says 120 kg, the lots physically hold 115 kg: the report must
// show a +5 difference and flag the bucket as unmatched.
func TestBuildReconciliationRowsDetectsShortage(t *testing.T) {
	accounting := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "kg"}: decimal.NewFromInt(120),
	}
	lot := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "kg"}: decimal.NewFromInt(115),
	}

	rows := BuildReconciliationRows(accounting, lot)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if !row.Diff.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected diff +5, got %s", row.Diff)
	}
	if row.Matched {
		t.Fatal("a 5 kg shortage must not be reported as matched")
	}
}

func TestBuildReconciliationRowsMatchedWithinTolerance(t *testing.T) {
	accounting := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "kg"}: decimal.NewFromFloat(100.0001),
	}
	lot := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "kg"}: decimal.NewFromInt(100),
	}

	rows := BuildReconciliationRows(accounting, lot)
	if len(rows) != 1 || !rows[0].Matched {
		t.Fatalf("a 0.0001 difference is inside the tolerance: %+v", rows)
	}
}

func TestBuildReconciliationRowsOneSidedBuckets(t *testing.T) {
	accounting := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "kg"}: decimal.NewFromInt(30),
	}
	lot := map[BalanceKey]decimal.Decimal{
		{ProductId: 11, UnitName: "piece"}: decimal.NewFromInt(4),
	}

	rows := BuildReconciliationRows(accounting, lot)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// sorted by product id
	if rows[0].ProductId != 10 || rows[1].ProductId != 11 {
		t.Fatalf("rows out of order: %+v", rows)
	}
	if !rows[0].LotQty.IsZero() || !rows[0].Diff.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("book-only bucket wrong: %+v", rows[0])
	}
	if !rows[1].AccountingQty.IsZero() || !rows[1].Diff.Equal(decimal.NewFromInt(-4)) {
		t.Fatalf("lot-only bucket wrong: %+v", rows[1])
	}
	if rows[0].Matched || rows[1].Matched {
		t.Fatal("one-sided buckets must be unmatched")
	}
}

func TestBuildReconciliationRowsSeparatesUnits(t *testing.T) {
	// The same product counted in two units forms two buckets; they are
	// never netted against each other.
	accounting := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "box"}: decimal.NewFromInt(2),
		{ProductId: 10, UnitName: "kg"}:  decimal.NewFromInt(40),
	}
	lot := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "box"}: decimal.NewFromInt(2),
		{ProductId: 10, UnitName: "kg"}:  decimal.NewFromInt(40),
	}

	rows := BuildReconciliationRows(accounting, lot)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if !row.Matched {
			t.Fatalf("identical sides must match: %+v", row)
		}
	}
	if rows[0].UnitName != "box" || rows[1].UnitName != "kg" {
		t.Fatalf("rows not sorted by unit: %+v", rows)
	}
}

// conversionFixture: product 10 counts in kg with a 20 kg box; product 11
// counts in piece with no other unit declared.
func conversionFixture() *models.ConversionContext {
	units := []*models.Unit{
		{ID: 1, Name: "kg"},
		{ID: 2, Name: "box"},
		{ID: 3, Name: "piece"},
	}
	products := []*models.Product{
		{ID: 10, Name: "Brake pad", UnitId: 1},
		{ID: 11, Name: "Oil filter", UnitId: 3},
	}
	rates := []*models.ProductUnitRate{
		{ID: 1, ProductId: 10, UnitId: 2, Rate: decimal.NewFromInt(20)},
	}
	return models.BuildConversionContext(units, products, rates)
}

// 2 box and 40 kg of the same product collapse into one 80 kg bucket when
// kg is requested as the display unit.
func TestConvertBalancesToUnitMergesConvertibleBuckets(t *testing.T) {
	cc := conversionFixture()

	balances := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "box"}: decimal.NewFromInt(2),
		{ProductId: 10, UnitName: "kg"}:  decimal.NewFromInt(40),
	}

	converted := ConvertBalancesToUnit(cc, balances, "kg")
	if len(converted) != 1 {
		t.Fatalf("expected 1 bucket after conversion, got %d", len(converted))
	}
	got := converted[BalanceKey{ProductId: 10, UnitName: "kg"}]
	if !got.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected 80 kg, got %s", got)
	}
}

// A product with no rate for the target unit keeps its original bucket
// rather than being silently misstated.
func TestConvertBalancesToUnitKeepsUnconvertibleBuckets(t *testing.T) {
	cc := conversionFixture()

	balances := map[BalanceKey]decimal.Decimal{
		{ProductId: 11, UnitName: "piece"}: decimal.NewFromInt(7),
		{ProductId: 10, UnitName: "box"}:   decimal.NewFromInt(3),
	}

	converted := ConvertBalancesToUnit(cc, balances, "kg")
	if got := converted[BalanceKey{ProductId: 11, UnitName: "piece"}]; !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("unconvertible bucket should survive untouched, got %s", got)
	}
	if got := converted[BalanceKey{ProductId: 10, UnitName: "kg"}]; !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60 kg from 3 box, got %s", got)
	}
}

func TestConvertBalancesToUnitEmptyTargetIsIdentity(t *testing.T) {
	cc := conversionFixture()

	balances := map[BalanceKey]decimal.Decimal{
		{ProductId: 10, UnitName: "box"}: decimal.NewFromInt(3),
	}
	converted := ConvertBalancesToUnit(cc, balances, "")
	if got := converted[BalanceKey{ProductId: 10, UnitName: "box"}]; !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("empty target unit must not convert, got %s", got)
	}
}
