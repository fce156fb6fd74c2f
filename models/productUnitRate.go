package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
)

// ProductUnitRate declares "1 unit = Rate x the product's base unit".
// The product's own base unit needs no row; it converts with rate 1.
type ProductUnitRate struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	ProductId  int             `gorm:"index;not null;uniqueIndex:idx_product_unit" json:"product_id" binding:"required"`
	UnitId     int             `gorm:"not null;uniqueIndex:idx_product_unit" json:"unit_id" binding:"required"`
	Rate       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate" binding:"required"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductUnitRate struct {
	ProductId int             `json:"product_id" binding:"required"`
	UnitId    int             `json:"unit_id" binding:"required"`
	Rate      decimal.Decimal `json:"rate" binding:"required"`
}

/*
caches:
	ProductUnitRateList:$businessId
*/

func (input *NewProductUnitRate) validate(ctx context.Context, businessId string, id int) error {
	if input.Rate.Sign() <= 0 {
		return errors.New("rate must be greater than zero")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return errors.New("product not found")
	}
	if err := utils.ValidateResourceId[Unit](ctx, businessId, input.UnitId); err != nil {
		return errors.New("unit not found")
	}
	// base unit is implicit rate 1; a declared row would shadow it
	product, err := utils.FetchModel[Product](ctx, businessId, input.ProductId)
	if err != nil {
		return err
	}
	if product.UnitId == input.UnitId {
		return errors.New("cannot declare a rate for the product's base unit")
	}

	var count int64
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&ProductUnitRate{}).
		Where("business_id = ? AND product_id = ? AND unit_id = ?", businessId, input.ProductId, input.UnitId)
	if id > 0 {
		dbCtx = dbCtx.Where("NOT id = ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate rate for product and unit")
	}
	return nil
}

func CreateProductUnitRate(ctx context.Context, input *NewProductUnitRate) (*ProductUnitRate, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	rate := ProductUnitRate{
		BusinessId: businessId,
		ProductId:  input.ProductId,
		UnitId:     input.UnitId,
		Rate:       input.Rate,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&rate).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[ProductUnitRate](rate.ID, businessId)
	return &rate, nil
}

func UpdateProductUnitRate(ctx context.Context, id int, input *NewProductUnitRate) (*ProductUnitRate, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	rate, err := utils.FetchModel[ProductUnitRate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&rate).Updates(map[string]interface{}{
		"ProductId": input.ProductId,
		"UnitId":    input.UnitId,
		"Rate":      input.Rate,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[ProductUnitRate](rate.ID, businessId)
	return rate, nil
}

func DeleteProductUnitRate(ctx context.Context, id int) (*ProductUnitRate, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	rate, err := utils.FetchModel[ProductUnitRate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&rate).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[ProductUnitRate](rate.ID, businessId)
	return rate, nil
}

// read rate list, redis or db, cache result
func GetProductUnitRates(ctx context.Context) ([]*ProductUnitRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.RetrieveRedisList[ProductUnitRate](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[ProductUnitRate](ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[ProductUnitRate](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}
