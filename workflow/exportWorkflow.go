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

type MovementLineInput struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitName  string          `json:"unit_name" binding:"required"`
	Price     decimal.Decimal `json:"price"`
}

type MovementDraftInput struct {
	LotId        int                 `json:"lot_id" binding:"required"`
	Counterparty string              `json:"counterparty"`
	Lines        []MovementLineInput `json:"lines" binding:"required"`
}

type MovementDraftResult struct {
	Lot   *models.Lot      `json:"lot"`
	Event *models.LotEvent `json:"event"`
	// Emptied flags that the draft consumed the lot's last items. The
	// physical mutation already happened; removing the draft later will
	// NOT restore them.
	Emptied bool `json:"emptied"`
}

// ProcessExportWorkflow applies an outgoing movement to the lot immediately
// and records it as a draft awaiting booking. The stock change is physical
// right away; only the paperwork is deferred.
func ProcessExportWorkflow(ctx context.Context, input *MovementDraftInput) (*MovementDraftResult, error) {
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
			item := findConsumableItem(lot.Items, line.ProductId, line.UnitName)
			if item == nil {
				return fmt.Errorf("lot %s has no item for product %d", lot.Code, line.ProductId)
			}
			consumed := line.Qty
			if item.UnitName != line.UnitName {
				consumed = cc.FromBase(line.ProductId, item.UnitName,
					cc.ToBase(line.ProductId, line.UnitName, line.Qty))
			}
			if err := models.ProcessItemAutoSplit(tx, cc, item, consumed, ""); err != nil {
				config.LogError(logger, "exportWorkflow.go", "ProcessExportWorkflow", "ProcessItemAutoSplit", line, err)
				return err
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
			Kind:         models.LotEventKindExportDraft,
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

		emptied, err := models.MarkLotEmptiedIfDrained(tx, lot, nil)
		if err != nil {
			return err
		}
		result.Emptied = emptied
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
