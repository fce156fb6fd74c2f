package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

// QtyEpsilon is one ulp of the decimal(20,4) columns. Quantities at or below
// it are treated as zero everywhere in the ledger.
var QtyEpsilon = decimal.New(1, -4)

var ErrOverConsumption = errors.New("requested quantity exceeds the item's current quantity")

// Lot is a tracked batch of physical inventory. Its Quantity is always the
// sum of its items' base-unit quantities (within QtyEpsilon); every mutation
// finishes by re-deriving it from the items via CalculateTotalBaseQty.
type Lot struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	Code         string          `gorm:"size:50;not null;index" json:"code"`
	Status       LotStatus       `gorm:"type:enum('Active','Exported');default:'Active';not null" json:"status"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Warehouse    string          `gorm:"size:50;index" json:"warehouse"`
	PositionId   *int            `gorm:"index" json:"position_id"`
	Position     *Position       `gorm:"foreignKey:PositionId" json:"position"`
	Supplier     string          `gorm:"size:100" json:"supplier"`
	ReceivedDate time.Time       `json:"received_date"`
	Note         string          `gorm:"size:255" json:"note"`
	MergedToCode *string         `gorm:"size:50" json:"merged_to_code"`
	Items        []LotItem       `gorm:"foreignKey:LotId" json:"items"`
	Events       []LotEvent      `gorm:"foreignKey:LotId" json:"events"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// LotItem records a (product, quantity, unit) line. UnitName need not be the
// product's base unit; conversions go through the ConversionContext.
type LotItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	LotId      int             `gorm:"index;not null" json:"lot_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitName   string          `gorm:"size:20;not null" json:"unit_name"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLot struct {
	Warehouse    string       `json:"warehouse"`
	PositionId   *int         `json:"position_id"`
	Supplier     string       `json:"supplier"`
	ReceivedDate time.Time    `json:"received_date"`
	Note         string       `json:"note"`
	Items        []NewLotItem `json:"items" binding:"required"`
}

type NewLotItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitName  string          `json:"unit_name" binding:"required"`
}

func (input *NewLot) validate(ctx context.Context, businessId string) error {
	if len(input.Items) == 0 {
		return errors.New("a lot requires at least one item")
	}
	if input.PositionId != nil {
		if err := utils.ValidateResourceId[Position](ctx, businessId, *input.PositionId); err != nil {
			return errors.New("position not found")
		}
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Product](ctx, businessId, item.ProductId); err != nil {
			return errors.New("product not found")
		}
		if item.Qty.Sign() <= 0 {
			return errors.New("item quantity must be greater than zero")
		}
	}
	return nil
}

// CreateLot is the replenishment entry point: a lot born Active with the
// given items, code generated from the number series, aggregate derived
// from the items.
func CreateLot(ctx context.Context, input *NewLot) (*Lot, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	cc, err := NewConversionContext(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var lot Lot
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := NextDocumentNumber(tx, businessId, DocumentModuleLot)
		if err != nil {
			return err
		}
		lot = Lot{
			BusinessId:   businessId,
			Code:         code,
			Status:       LotStatusActive,
			Warehouse:    input.Warehouse,
			PositionId:   input.PositionId,
			Supplier:     input.Supplier,
			ReceivedDate: input.ReceivedDate,
			Note:         input.Note,
		}
		for _, item := range input.Items {
			lot.Items = append(lot.Items, LotItem{
				BusinessId: businessId,
				ProductId:  item.ProductId,
				Qty:        item.Qty,
				UnitName:   item.UnitName,
			})
		}
		if err := tx.Create(&lot).Error; err != nil {
			return err
		}
		if _, err := CalculateTotalBaseQty(tx, cc, &lot); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func GetLot(ctx context.Context, id int) (*Lot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Lot](ctx, businessId, id, "Items", "Events", "Position")
}

func GetLotByCode(ctx context.Context, code string) (*Lot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var lot Lot
	err := db.WithContext(ctx).Where("business_id = ? AND code = ?", businessId, code).
		Preload("Items").Preload("Position").First(&lot).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &lot, nil
}

func GetLots(ctx context.Context, status *LotStatus, warehouse *string) ([]*Lot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if warehouse != nil && *warehouse != "" {
		dbCtx = dbCtx.Where("warehouse = ?", *warehouse)
	}
	var results []*Lot
	err := dbCtx.Preload("Items").Preload("Position").Order("code").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SumItemsBase sums the items' quantities converted to each product's base unit.
func SumItemsBase(cc *ConversionContext, items []LotItem) decimal.Decimal {
	var total decimal.Decimal
	for _, item := range items {
		total = total.Add(cc.ToBase(item.ProductId, item.UnitName, item.Qty))
	}
	return total
}

// CalculateTotalBaseQty re-derives the lot's aggregate quantity from its
// current items and persists it. This is the self-healing step every
// mutation finishes with: the incrementally maintained value is compared
// against the recomputed one and drift beyond QtyEpsilon is logged, but the
// recomputed value always wins.
func CalculateTotalBaseQty(tx *gorm.DB, cc *ConversionContext, lot *Lot) (decimal.Decimal, error) {
	var items []LotItem
	if err := tx.Where("lot_id = ?", lot.ID).Find(&items).Error; err != nil {
		return decimal.Decimal{}, err
	}

	total := SumItemsBase(cc, items)

	if drift := lot.Quantity.Sub(total).Abs(); drift.GreaterThan(QtyEpsilon) {
		logger := config.GetLogger()
		if logger != nil {
			config.LogWarn(logger, "lot.go", "CalculateTotalBaseQty", "aggregate drift",
				map[string]any{"lot_id": lot.ID, "stored": lot.Quantity, "recomputed": total},
				"stored lot quantity disagrees with recomputed item sum; recomputed value persisted")
		}
	}

	lot.Quantity = total
	lot.Items = items
	if err := tx.Model(&Lot{}).Where("id = ?", lot.ID).
		Update("quantity", total).Error; err != nil {
		return decimal.Decimal{}, err
	}
	return total, nil
}

// AutoSplitRemainder computes what is left of an item after consuming
// consumed (expressed in the item's own unit). The remainder is generally
// fractional: consuming an amount selected in an unrelated unit rarely lands
// on a whole number of the item's unit, and the fraction is accepted rather
// than rounded so base-quantity conservation holds exactly.
func AutoSplitRemainder(itemQty, consumed decimal.Decimal) (remaining decimal.Decimal, fullyConsumed bool, err error) {
	remaining = itemQty.Sub(consumed)
	if remaining.IsNegative() && remaining.Abs().GreaterThan(QtyEpsilon) {
		return decimal.Decimal{}, false, ErrOverConsumption
	}
	if remaining.LessThanOrEqual(QtyEpsilon) {
		return decimal.Zero, true, nil
	}
	return remaining, false, nil
}

// RemainderInUnit re-expresses a remainder recorded in fromUnit as toUnit,
// pivoting through the product's base unit so the base quantity is
// unchanged by the relabel.
func RemainderInUnit(cc *ConversionContext, productId int, remaining decimal.Decimal, fromUnit, toUnit string) decimal.Decimal {
	if toUnit == "" || toUnit == fromUnit {
		return remaining
	}
	return cc.FromBase(productId, toUnit, cc.ToBase(productId, fromUnit, remaining))
}

// ProcessItemAutoSplit applies a partial consumption to a line item.
// consumedOriginalUnitQty must already be converted into the item's own
// recorded unit. A fully consumed item is deleted; otherwise its quantity is
// updated to the remainder, keeping the existing unit unless preferredUnit
// reassigns it (a split may intentionally change the remainder's display
// unit; the remainder is converted into that unit so conservation holds).
func ProcessItemAutoSplit(tx *gorm.DB, cc *ConversionContext, item *LotItem, consumedOriginalUnitQty decimal.Decimal, preferredUnit string) error {
	remaining, fullyConsumed, err := AutoSplitRemainder(item.Qty, consumedOriginalUnitQty)
	if err != nil {
		return err
	}
	if fullyConsumed {
		return tx.Delete(&LotItem{}, item.ID).Error
	}
	updates := map[string]interface{}{"Qty": remaining}
	if preferredUnit != "" && preferredUnit != item.UnitName {
		updates["Qty"] = RemainderInUnit(cc, item.ProductId, remaining, item.UnitName, preferredUnit)
		updates["UnitName"] = preferredUnit
	}
	return tx.Model(&LotItem{}).Where("id = ?", item.ID).Updates(updates).Error
}

// markLotEmptied finalizes a lot whose items are all gone: status Exported,
// quantity zeroed, position detached. mergedToCode is set when a merge (not
// an export) emptied it.
func markLotEmptied(tx *gorm.DB, lot *Lot, mergedToCode *string) error {
	updates := map[string]interface{}{
		"Status":     LotStatusExported,
		"Quantity":   decimal.Zero,
		"PositionId": nil,
	}
	if mergedToCode != nil {
		updates["MergedToCode"] = *mergedToCode
	}
	if err := tx.Model(&Lot{}).Where("id = ?", lot.ID).Updates(updates).Error; err != nil {
		return err
	}
	lot.Status = LotStatusExported
	lot.Quantity = decimal.Zero
	lot.PositionId = nil
	lot.MergedToCode = mergedToCode
	return nil
}

// MarkLotEmptiedIfDrained finalizes the lot when no line items are left.
// Returns whether the lot was emptied.
func MarkLotEmptiedIfDrained(tx *gorm.DB, lot *Lot, mergedToCode *string) (bool, error) {
	remaining, err := lot.HasRemainingItems(tx)
	if err != nil {
		return false, err
	}
	if remaining {
		return false, nil
	}
	if err := markLotEmptied(tx, lot, mergedToCode); err != nil {
		return false, err
	}
	return true, nil
}

// HasRemainingItems reports whether any line items are left on the lot.
func (lot *Lot) HasRemainingItems(tx *gorm.DB) (bool, error) {
	var count int64
	if err := tx.Model(&LotItem{}).Where("lot_id = ?", lot.ID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
