package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountingBalance is the book-side quantity per product and unit, fed
// from the accounting ledger as a dated snapshot per warehouse scope.
// Reconciliation picks, per bucket, the most recent row at or before its
// cutoff date and compares it against the physical lot aggregates.
type AccountingBalance struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"uniqueIndex:idx_business_product_unit_scope;not null" json:"business_id"`
	ProductId  int             `gorm:"uniqueIndex:idx_business_product_unit_scope;not null" json:"product_id"`
	Product    *Product        `json:"product,omitempty"`
	UnitName   string          `gorm:"uniqueIndex:idx_business_product_unit_scope;size:20;not null" json:"unit_name"`
	Warehouse  string          `gorm:"uniqueIndex:idx_business_product_unit_scope;size:50;not null;default:''" json:"warehouse"`
	AsOfDate   time.Time       `gorm:"uniqueIndex:idx_business_product_unit_scope;type:date;not null" json:"as_of_date"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccountingBalance struct {
	ProductId int             `json:"product_id" binding:"required"`
	UnitName  string          `json:"unit_name" binding:"required"`
	Warehouse string          `json:"warehouse"`
	AsOfDate  *time.Time      `json:"as_of_date"`
	Qty       decimal.Decimal `json:"qty"`
}

// balanceDate truncates to the day; the feed is daily.
func balanceDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SetAccountingBalance upserts the book-side quantity for one
// product/unit/warehouse bucket on a given date, e.g. after an external
// stocktake or an accounting import. AsOfDate defaults to today.
func SetAccountingBalance(ctx context.Context, input *NewAccountingBalance) (*AccountingBalance, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return nil, err
	}

	asOf := time.Now()
	if input.AsOfDate != nil {
		asOf = *input.AsOfDate
	}

	balance := AccountingBalance{
		BusinessId: businessId,
		ProductId:  input.ProductId,
		UnitName:   input.UnitName,
		Warehouse:  input.Warehouse,
		AsOfDate:   balanceDate(asOf),
		Qty:        input.Qty,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "business_id"}, {Name: "product_id"}, {Name: "unit_name"},
			{Name: "warehouse"}, {Name: "as_of_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"qty", "updated_at"}),
	}).Create(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// ApplyAccountingMovementTx shifts the book-side balance by delta inside
// the caller's transaction, targeting the bucket's most recent row (a new
// row dated today is created when none exists). Booking an export passes a
// negative delta, booking an inbound a positive one.
func ApplyAccountingMovementTx(tx *gorm.DB, businessId string, productId int, unitName string, warehouse string, delta decimal.Decimal) error {
	var balance AccountingBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND product_id = ? AND unit_name = ? AND warehouse = ?",
			businessId, productId, unitName, warehouse).
		Order("as_of_date DESC").
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = AccountingBalance{
			BusinessId: businessId,
			ProductId:  productId,
			UnitName:   unitName,
			Warehouse:  warehouse,
			AsOfDate:   balanceDate(time.Now()),
			Qty:        delta,
		}
		return tx.Create(&balance).Error
	} else if err != nil {
		return err
	}

	return tx.Model(&AccountingBalance{}).
		Where("id = ?", balance.ID).
		Update("qty", balance.Qty.Add(delta)).Error
}

func GetAccountingBalances(ctx context.Context) ([]*AccountingBalance, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var balances []*AccountingBalance
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Preload("Product").
		Order("product_id, unit_name, warehouse, as_of_date DESC").
		Find(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}
