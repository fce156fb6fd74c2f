package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
)

// BalanceKey identifies one comparable balance bucket: a product counted
// in one unit.
type BalanceKey struct {
	ProductId int
	UnitName  string
}

// ReconciliationQuery narrows the comparison. Cutoff picks the accounting
// snapshot (most recent row at or before the date; zero means now),
// Warehouse scopes both sides (empty means every warehouse), and
// TargetUnit re-expresses convertible lot buckets in one display unit.
type ReconciliationQuery struct {
	Cutoff     time.Time
	Warehouse  string
	TargetUnit string
}

type ReconciliationRow struct {
	ProductId     int             `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	UnitName      string          `json:"unit_name"`
	AccountingQty decimal.Decimal `json:"accounting_qty"`
	LotQty        decimal.Decimal `json:"lot_qty"`
	Diff          decimal.Decimal `json:"diff"`
	Matched       bool            `json:"matched"`
}

type lotAggregateRow struct {
	ProductId int
	UnitName  string
	Qty       decimal.Decimal
}

// BuildReconciliationRows compares the book-side balances against the
// physical lot aggregates bucket by bucket. A bucket present on only one
// side still produces a row, with zero on the missing side. Diff is
// accounting minus lot; Matched means the difference is inside the
// quantity tolerance.
func BuildReconciliationRows(accounting map[BalanceKey]decimal.Decimal, lot map[BalanceKey]decimal.Decimal) []ReconciliationRow {
	keys := make(map[BalanceKey]struct{})
	for k := range accounting {
		keys[k] = struct{}{}
	}
	for k := range lot {
		keys[k] = struct{}{}
	}

	rows := make([]ReconciliationRow, 0, len(keys))
	for k := range keys {
		accountingQty := accounting[k]
		lotQty := lot[k]
		diff := accountingQty.Sub(lotQty)
		rows = append(rows, ReconciliationRow{
			ProductId:     k.ProductId,
			UnitName:      k.UnitName,
			AccountingQty: accountingQty,
			LotQty:        lotQty,
			Diff:          diff,
			Matched:       diff.Abs().LessThanOrEqual(models.QtyEpsilon),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProductId != rows[j].ProductId {
			return rows[i].ProductId < rows[j].ProductId
		}
		return rows[i].UnitName < rows[j].UnitName
	})
	return rows
}

// ConvertBalancesToUnit re-keys every bucket whose product/unit pairing is
// convertible into targetUnit, pivoting through the product's base unit.
// Buckets with no declared rate (on either end) keep their original unit,
// so an unconvertible quantity is never silently misstated. Buckets of one
// product landing on the same unit are summed.
func ConvertBalancesToUnit(cc *models.ConversionContext, balances map[BalanceKey]decimal.Decimal, targetUnit string) map[BalanceKey]decimal.Decimal {
	if targetUnit == "" {
		return balances
	}
	out := make(map[BalanceKey]decimal.Decimal, len(balances))
	for k, qty := range balances {
		if k.UnitName != targetUnit && cc.HasRate(k.ProductId, k.UnitName) && cc.HasRate(k.ProductId, targetUnit) {
			qty = cc.FromBase(k.ProductId, targetUnit, cc.ToBase(k.ProductId, k.UnitName, qty))
			k = BalanceKey{ProductId: k.ProductId, UnitName: targetUnit}
		}
		out[k] = out[k].Add(qty)
	}
	return out
}

// GetReconciliationReport builds the accounting-vs-lot comparison. The
// accounting side takes, per bucket, the most recent balance row at or
// before the cutoff; the lot side only counts active lots in scope, since
// emptied and merged lots carry no stock.
func GetReconciliationReport(ctx context.Context, query ReconciliationQuery) ([]ReconciliationRow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	cutoff := query.Cutoff
	if cutoff.IsZero() {
		cutoff = time.Now()
	}

	db := config.GetDB()

	accountingSql := `
SELECT
    ab.product_id,
    ab.unit_name,
    ab.qty
FROM accounting_balances ab
    JOIN (
        SELECT product_id, unit_name, warehouse, MAX(as_of_date) AS as_of_date
        FROM accounting_balances
        WHERE business_id = @businessId
          AND (@warehouse = '' OR warehouse = @warehouse)
          AND as_of_date <= @cutoff
        GROUP BY product_id, unit_name, warehouse
    ) latest
        ON latest.product_id = ab.product_id
       AND latest.unit_name = ab.unit_name
       AND latest.warehouse = ab.warehouse
       AND latest.as_of_date = ab.as_of_date
WHERE ab.business_id = @businessId
`
	var balanceRows []*lotAggregateRow
	if err := db.WithContext(ctx).Raw(accountingSql, map[string]interface{}{
		"businessId": businessId,
		"warehouse":  query.Warehouse,
		"cutoff":     cutoff,
	}).Scan(&balanceRows).Error; err != nil {
		return nil, err
	}

	accounting := make(map[BalanceKey]decimal.Decimal, len(balanceRows))
	for _, b := range balanceRows {
		key := BalanceKey{ProductId: b.ProductId, UnitName: b.UnitName}
		accounting[key] = accounting[key].Add(b.Qty)
	}

	lotSql := `
SELECT
    li.product_id,
    li.unit_name,
    SUM(li.qty) AS qty
FROM lot_items li
    JOIN lots ON lots.id = li.lot_id
WHERE lots.business_id = @businessId
  AND lots.status = 'Active'
  AND (@warehouse = '' OR lots.warehouse = @warehouse)
GROUP BY li.product_id, li.unit_name
`
	var aggregates []*lotAggregateRow
	if err := db.WithContext(ctx).Raw(lotSql, map[string]interface{}{
		"businessId": businessId,
		"warehouse":  query.Warehouse,
	}).Scan(&aggregates).Error; err != nil {
		return nil, err
	}

	lot := make(map[BalanceKey]decimal.Decimal, len(aggregates))
	for _, a := range aggregates {
		key := BalanceKey{ProductId: a.ProductId, UnitName: a.UnitName}
		lot[key] = lot[key].Add(a.Qty)
	}

	if query.TargetUnit != "" {
		cc, err := models.NewConversionContext(ctx)
		if err != nil {
			return nil, err
		}
		lot = ConvertBalancesToUnit(cc, lot, query.TargetUnit)
	}

	rows := BuildReconciliationRows(accounting, lot)

	productNames := make(map[int]string)
	products, err := models.GetProducts(ctx)
	if err == nil {
		for _, p := range products {
			productNames[p.ID] = p.Name
		}
	}
	for i := range rows {
		rows[i].ProductName = productNames[rows[i].ProductId]
	}
	return rows, nil
}
