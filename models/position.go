package models

import (
	"context"
	"errors"
	"time"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
)

// Position is an opaque warehouse location reference. The ledger only
// attaches and detaches lots; zone hierarchy and layout live elsewhere.
type Position struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Code       string    `gorm:"size:50;not null" json:"code" binding:"required"`
	Zone       string    `gorm:"size:50" json:"zone"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPosition struct {
	Code string `json:"code" binding:"required"`
	Zone string `json:"zone"`
}

func (input *NewPosition) validate(ctx context.Context, businessId string, id int) error {
	return utils.ValidateUnique[Position](ctx, businessId, "code", input.Code, id)
}

func CreatePosition(ctx context.Context, input *NewPosition) (*Position, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	position := Position{
		BusinessId: businessId,
		Code:       input.Code,
		Zone:       input.Zone,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&position).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

func GetPosition(ctx context.Context, id int) (*Position, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Position](ctx, businessId, id)
}

func GetPositions(ctx context.Context) ([]*Position, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Position](ctx, businessId)
}

func DeletePosition(ctx context.Context, id int) (*Position, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	position, err := utils.FetchModel[Position](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	var count int64
	db := config.GetDB()
	if err = db.WithContext(ctx).Model(&Lot{}).
		Where("position_id = ?", position.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by lot")
	}

	err = db.WithContext(ctx).Delete(&position).Error
	if err != nil {
		return nil, err
	}
	return position, nil
}
