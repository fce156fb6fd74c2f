package models

import (
	"context"
	"errors"
	"time"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

// Product declares its base unit via UnitId. All conservation math pivots
// through that unit; ProductUnitRate rows translate other units into it.
type Product struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku        string    `gorm:"size:100" json:"sku"`
	UnitId     int       `gorm:"not null" json:"unit_id" binding:"required"`
	Unit       *Unit     `gorm:"foreignKey:UnitId" json:"unit"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name   string `json:"name" binding:"required"`
	Sku    string `json:"sku"`
	UnitId int    `json:"unit_id" binding:"required"`
}

/*
caches:
	ProductList:$businessId
*/

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Unit](ctx, businessId, input.UnitId); err != nil {
		return errors.New("unit not found")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	product := Product{
		BusinessId: businessId,
		Name:       input.Name,
		Sku:        input.Sku,
		UnitId:     input.UnitId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&product).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[Product](product.ID, businessId)
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":   input.Name,
		"Sku":    input.Sku,
		"UnitId": input.UnitId,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[Product](product.ID, businessId)
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Product](ctx, businessId, id, "Unit")
}

// read product list, redis or db, cache result
func GetProducts(ctx context.Context) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.RetrieveRedisList[Product](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[Product](ctx, businessId, "Unit")
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[Product](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// Do not delete while any lot item or rate still references it.
	var count int64
	db := config.GetDB()
	if err = db.WithContext(ctx).Model(&LotItem{}).
		Where("product_id = ?", product.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by lot item")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).
			Delete(&ProductUnitRate{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[Product](product.ID, businessId)
	_ = utils.RemoveRedisCaches[ProductUnitRate](0, businessId)
	return product, nil
}
