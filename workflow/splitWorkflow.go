package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

type SplitLotInput struct {
	SourceLotId int                 `json:"source_lot_id" binding:"required"`
	Warehouse   string              `json:"warehouse"`
	PositionId  *int                `json:"position_id"`
	Note        string              `json:"note"`
	Items       []SplitLotItemInput `json:"items" binding:"required"`
}

type SplitLotItemInput struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitName  string          `json:"unit_name" binding:"required"`
	// RemainderUnit reassigns the unit of what stays behind on the source
	// item, when the operator wants the remainder displayed differently.
	RemainderUnit string `json:"remainder_unit"`
}

type SplitResult struct {
	Source *models.Lot `json:"source"`
	NewLot *models.Lot `json:"new_lot"`
}

// findConsumableItem picks the source line the consumption applies to:
// an item of the product in the requested unit when one exists, otherwise
// any item of the product (the quantity is converted across units).
func findConsumableItem(items []models.LotItem, productId int, unitName string) *models.LotItem {
	for i := range items {
		if items[i].ProductId == productId && items[i].UnitName == unitName {
			return &items[i]
		}
	}
	for i := range items {
		if items[i].ProductId == productId {
			return &items[i]
		}
	}
	return nil
}

// ProcessSplitWorkflow carves the requested quantities out of a source lot
// into a brand-new lot. The source keeps its remainders via auto-split;
// total stock across both lots is conserved.
func ProcessSplitWorkflow(ctx context.Context, input *SplitLotInput) (*SplitResult, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(input.Items) == 0 {
		return nil, errors.New("at least one item is required")
	}
	if input.PositionId != nil {
		if err := utils.ValidateResourceId[models.Position](ctx, businessId, *input.PositionId); err != nil {
			return nil, errors.New("position not found")
		}
	}

	source, err := models.GetLot(ctx, input.SourceLotId)
	if err != nil {
		return nil, err
	}
	if source.Status != models.LotStatusActive {
		return nil, fmt.Errorf("lot %s is not active", source.Code)
	}

	cc, err := models.NewConversionContext(ctx)
	if err != nil {
		return nil, err
	}

	var newLot models.Lot
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		// consume from the source items first
		for _, line := range input.Items {
			item := findConsumableItem(source.Items, line.ProductId, line.UnitName)
			if item == nil {
				return fmt.Errorf("lot %s has no item for product %d", source.Code, line.ProductId)
			}
			consumed := line.Qty
			if item.UnitName != line.UnitName {
				consumed = cc.FromBase(line.ProductId, item.UnitName,
					cc.ToBase(line.ProductId, line.UnitName, line.Qty))
			}
			if err := models.ProcessItemAutoSplit(tx, cc, item, consumed, line.RemainderUnit); err != nil {
				config.LogError(logger, "splitWorkflow.go", "ProcessSplitWorkflow", "ProcessItemAutoSplit", line, err)
				return err
			}
		}

		code, err := models.NextDocumentNumber(tx, businessId, models.DocumentModuleLot)
		if err != nil {
			return err
		}

		warehouse := input.Warehouse
		if warehouse == "" {
			warehouse = source.Warehouse
		}
		newLot = models.Lot{
			BusinessId:   businessId,
			Code:         code,
			Status:       models.LotStatusActive,
			Warehouse:    warehouse,
			PositionId:   input.PositionId,
			Supplier:     source.Supplier,
			ReceivedDate: source.ReceivedDate,
			Note:         input.Note,
		}
		for _, line := range input.Items {
			newLot.Items = append(newLot.Items, models.LotItem{
				BusinessId: businessId,
				ProductId:  line.ProductId,
				Qty:        line.Qty,
				UnitName:   line.UnitName,
			})
		}
		if err := tx.Create(&newLot).Error; err != nil {
			return err
		}

		if _, err := models.CalculateTotalBaseQty(tx, cc, source); err != nil {
			return err
		}
		if _, err := models.CalculateTotalBaseQty(tx, cc, &newLot); err != nil {
			return err
		}

		// history on both sides, with the source header frozen for audit
		snapshot := models.NewLotHeaderSnapshot(tx, source)
		lines := make([]models.LotEventLine, 0, len(input.Items))
		for _, line := range input.Items {
			lines = append(lines, models.LotEventLine{
				ProductId: line.ProductId,
				Qty:       line.Qty,
				UnitName:  line.UnitName,
			})
		}

		splitEvent := models.LotEvent{
			Kind:       models.LotEventKindSplitTo,
			RefLotCode: newLot.Code,
		}
		if err := splitEvent.SetPayload(models.LotEventPayload{Lines: lines, Snapshot: &snapshot}); err != nil {
			return err
		}
		if err := models.AppendLotEvent(tx, businessId, source.ID, &splitEvent); err != nil {
			return err
		}

		originEvent := models.LotEvent{
			Kind:       models.LotEventKindItemSnapshot,
			RefLotCode: source.Code,
		}
		if err := originEvent.SetPayload(models.LotEventPayload{Lines: lines, Snapshot: &snapshot}); err != nil {
			return err
		}
		if err := models.AppendLotEvent(tx, businessId, newLot.ID, &originEvent); err != nil {
			return err
		}

		if _, err := models.MarkLotEmptiedIfDrained(tx, source, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	source, err = models.GetLot(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	created, err := models.GetLot(ctx, newLot.ID)
	if err != nil {
		return nil, err
	}
	return &SplitResult{Source: source, NewLot: created}, nil
}
