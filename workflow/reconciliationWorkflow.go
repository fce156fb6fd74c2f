package workflow

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models/reports"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

// ProcessReconciliationWorkflow runs the accounting-vs-lot comparison for
// the requested cutoff/scope and logs every mismatched bucket, so
// stocktake discrepancies show up in the logs even when nobody downloads
// the report.
func ProcessReconciliationWorkflow(ctx context.Context, query reports.ReconciliationQuery) ([]reports.ReconciliationRow, error) {
	logger := config.GetLogger()

	rows, err := reports.GetReconciliationReport(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.Matched {
			continue
		}
		logger.WithFields(logrus.Fields{
			"field":          "ProcessReconciliationWorkflow",
			"product_id":     row.ProductId,
			"unit_name":      row.UnitName,
			"accounting_qty": row.AccountingQty.String(),
			"lot_qty":        row.LotQty.String(),
			"diff":           row.Diff.String(),
		}).Warn("accounting and lot quantities diverge")
	}
	return rows, nil
}

// RebuildLotQuantities recomputes the stored aggregate of every lot from
// its items and returns how many lots had drifted. Used by the offline
// repair tool after manual database surgery.
func RebuildLotQuantities(ctx context.Context) (int, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}

	cc, err := models.NewConversionContext(ctx)
	if err != nil {
		return 0, err
	}

	db := config.GetDB()
	var lots []*models.Lot
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Find(&lots).Error; err != nil {
		return 0, err
	}

	drifted := 0
	for _, lot := range lots {
		before := lot.Quantity
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := models.CalculateTotalBaseQty(tx, cc, lot)
			return err
		})
		if err != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "RebuildLotQuantities", "CalculateTotalBaseQty", lot.Code, err)
			return drifted, err
		}
		if !lot.Quantity.Sub(before).Abs().LessThanOrEqual(models.QtyEpsilon) {
			drifted++
		}
	}
	return drifted, nil
}
