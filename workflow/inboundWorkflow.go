package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

// ProcessInboundWorkflow applies an incoming movement to the lot
// immediately and records it as a draft awaiting booking. Lines landing on
// an existing (product, unit) item top it up; anything else becomes a new
// item.
func ProcessInboundWorkflow(ctx context.Context, input *MovementDraftInput) (*MovementDraftResult, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("at least one line is required")
	}

	lot, err := models.GetLot(ctx, input.LotId)
	if err != nil {
		return nil, err
	}
	if lot.Status != models.LotStatusActive {
		return nil, fmt.Errorf("lot %s is not active", lot.Code)
	}

	cc, err := models.NewConversionContext(ctx)
	if err != nil {
		return nil, err
	}

	result := MovementDraftResult{}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range input.Lines {
			if err := utils.ValidateResourceId[models.Product](ctx, businessId, line.ProductId); err != nil {
				return fmt.Errorf("product %d not found", line.ProductId)
			}
			if !line.Qty.IsPositive() {
				return errors.New("line quantity must be positive")
			}

			var existing *models.LotItem
			for i := range lot.Items {
				if lot.Items[i].ProductId == line.ProductId && lot.Items[i].UnitName == line.UnitName {
					existing = &lot.Items[i]
					break
				}
			}
			if existing != nil {
				if err := tx.Model(&models.LotItem{}).
					Where("id = ?", existing.ID).
					Update("qty", existing.Qty.Add(line.Qty)).Error; err != nil {
					config.LogError(logger, "inboundWorkflow.go", "ProcessInboundWorkflow", "TopUpItem", line, err)
					return err
				}
			} else {
				item := models.LotItem{
					BusinessId: businessId,
					LotId:      lot.ID,
					ProductId:  line.ProductId,
					Qty:        line.Qty,
					UnitName:   line.UnitName,
				}
				if err := tx.Create(&item).Error; err != nil {
					config.LogError(logger, "inboundWorkflow.go", "ProcessInboundWorkflow", "CreateItem", line, err)
					return err
				}
			}
		}

		if _, err := models.CalculateTotalBaseQty(tx, cc, lot); err != nil {
			return err
		}

		lines := make([]models.LotEventLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			lines = append(lines, models.LotEventLine{
				ProductId: line.ProductId,
				Qty:       line.Qty,
				UnitName:  line.UnitName,
				Price:     line.Price,
			})
		}
		event := models.LotEvent{
			Kind:         models.LotEventKindInboundDraft,
			Draft:        utils.NewTrue(),
			Counterparty: input.Counterparty,
		}
		if err := event.SetPayload(models.LotEventPayload{Lines: lines}); err != nil {
			return err
		}
		if err := models.AppendLotEvent(tx, businessId, lot.ID, &event); err != nil {
			return err
		}
		result.Event = &event
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Lot, err = models.GetLot(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
