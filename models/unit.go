package models

import (
	"context"
	"errors"
	"time"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
)

// Unit is a globally defined measurement unit (kg, box, litre...).
// Per-product conversion rates live in ProductUnitRate.
type Unit struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"index;not null" json:"business_id"`
	Name         string    `gorm:"size:20;not null" json:"name" binding:"required"`
	Abbreviation string    `gorm:"size:7;not null" json:"abbreviation" binding:"required"`
	Precision    Precision `gorm:"type:enum('0','1','2','3','4');default:'0';size:1;not null" json:"precision"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUnit struct {
	Name         string    `json:"name" binding:"required"`
	Abbreviation string    `json:"abbreviation" binding:"required"`
	Precision    Precision `json:"precision"`
}

/*
caches:
	UnitList:$businessId
*/

func (input *NewUnit) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Unit](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Unit](ctx, businessId, "abbreviation", input.Abbreviation, id); err != nil {
		return err
	}
	return nil
}

func CreateUnit(ctx context.Context, input *NewUnit) (*Unit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	unit := Unit{
		BusinessId:   businessId,
		Name:         input.Name,
		Abbreviation: input.Abbreviation,
		Precision:    input.Precision,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&unit).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[Unit](unit.ID, businessId)
	return &unit, nil
}

func UpdateUnit(ctx context.Context, id int, input *NewUnit) (*Unit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	unit, err := utils.FetchModel[Unit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&unit).Updates(map[string]interface{}{
		"Name":         input.Name,
		"Abbreviation": input.Abbreviation,
		"Precision":    input.Precision,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[Unit](unit.ID, businessId)
	return unit, nil
}

func DeleteUnit(ctx context.Context, id int) (*Unit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	unit, err := utils.FetchModel[Unit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// Do not delete while any product declares the unit as its base
	// or any rate references it.
	var count int64
	db := config.GetDB()
	if err = db.WithContext(ctx).Model(&Product{}).
		Where("unit_id = ?", unit.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by product")
	}
	if err = db.WithContext(ctx).Model(&ProductUnitRate{}).
		Where("unit_id = ?", unit.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by conversion rate")
	}

	err = db.WithContext(ctx).Delete(&unit).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisCaches[Unit](unit.ID, businessId)
	return unit, nil
}

func GetUnit(ctx context.Context, id int) (*Unit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Unit](ctx, businessId, id)
}

// read unit list, redis or db, cache result
func GetUnits(ctx context.Context) ([]*Unit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.RetrieveRedisList[Unit](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[Unit](ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[Unit](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}
