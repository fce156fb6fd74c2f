package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DocumentModuleLot          = "Lot"
	DocumentModuleExportOrder  = "ExportOrder"
	DocumentModuleInboundOrder = "InboundOrder"
)

var defaultDocumentPrefixes = map[string]string{
	DocumentModuleLot:          "LOT-",
	DocumentModuleExportOrder:  "XK-",
	DocumentModuleInboundOrder: "NK-",
}

// DocumentNumberSeries hands out sequential document codes (lot codes,
// order codes) per business and module. NextNumber is the last number
// already issued.
type DocumentNumberSeries struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex:idx_business_module;not null" json:"business_id" binding:"required"`
	ModuleName string    `gorm:"uniqueIndex:idx_business_module;size:30;not null" json:"module_name" binding:"required"`
	Prefix     string    `gorm:"size:10" json:"prefix"`
	NextNumber int       `gorm:"not null;default:0" json:"next_number"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocumentNumberSeries struct {
	ModuleName string `json:"module_name" binding:"required"`
	Prefix     string `json:"prefix"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// NextDocumentNumber issues the next code for the module, creating the
// series row on first use. The row is locked for the duration of the
// caller's transaction so concurrent issuers cannot hand out duplicates.
func NextDocumentNumber(tx *gorm.DB, businessId string, moduleName string) (string, error) {
	if businessId == "" {
		return "", errors.New("business id is required")
	}

	var series DocumentNumberSeries
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND module_name = ?", businessId, moduleName).
		First(&series).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		series = DocumentNumberSeries{
			BusinessId: businessId,
			ModuleName: moduleName,
			Prefix:     defaultDocumentPrefixes[moduleName],
		}
		if err := tx.Create(&series).Error; err != nil {
			// Two transactions can race to create the first row; the
			// loser re-reads the winner's row under lock.
			if !isDuplicateKeyErr(err) {
				return "", err
			}
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("business_id = ? AND module_name = ?", businessId, moduleName).
				First(&series).Error; err != nil {
				return "", err
			}
		}
	} else if err != nil {
		return "", err
	}

	series.NextNumber++
	if err := tx.Model(&DocumentNumberSeries{}).
		Where("id = ?", series.ID).
		Update("next_number", series.NextNumber).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%06d", series.Prefix, series.NextNumber), nil
}

// UpdateDocumentNumberSeries changes the prefix used for future codes of
// one module. Already issued codes keep their old prefix.
func UpdateDocumentNumberSeries(ctx context.Context, input *NewDocumentNumberSeries) (*DocumentNumberSeries, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if _, ok := defaultDocumentPrefixes[input.ModuleName]; !ok {
		return nil, fmt.Errorf("unknown document module: %s", input.ModuleName)
	}

	db := config.GetDB()
	var series DocumentNumberSeries
	err := db.WithContext(ctx).
		Where("business_id = ? AND module_name = ?", businessId, input.ModuleName).
		First(&series).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		series = DocumentNumberSeries{
			BusinessId: businessId,
			ModuleName: input.ModuleName,
			Prefix:     input.Prefix,
		}
		if err := db.WithContext(ctx).Create(&series).Error; err != nil {
			return nil, err
		}
		return &series, nil
	} else if err != nil {
		return nil, err
	}

	series.Prefix = input.Prefix
	if err := db.WithContext(ctx).Model(&DocumentNumberSeries{}).
		Where("id = ?", series.ID).
		Update("prefix", input.Prefix).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

func GetDocumentNumberSeries(ctx context.Context) ([]*DocumentNumberSeries, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[DocumentNumberSeries](ctx, businessId)
}
