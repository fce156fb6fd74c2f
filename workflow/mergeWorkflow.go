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

var ErrPositionReleaseNotConfirmed = errors.New("merge would empty a source lot that still occupies a position; confirm position release to proceed")

type MergeLotsInput struct {
	TargetLotId int                 `json:"target_lot_id" binding:"required"`
	Items       []MergeLotItemInput `json:"items" binding:"required"`
	// Fully merging a lot's items empties it, which frees the storage
	// position it sits on. The operator has to acknowledge that explicitly.
	ConfirmPositionRelease *bool `json:"confirm_position_release"`
}

// MergeLotItemInput names one source line item and how much of it moves
// into the target. Qty equal to the item's current quantity deletes the
// item; anything less leaves the remainder on the source lot.
type MergeLotItemInput struct {
	SourceItemId int             `json:"source_item_id" binding:"required"`
	Qty          decimal.Decimal `json:"qty" binding:"required"`
}

type MergeResult struct {
	Target      *models.Lot `json:"target"`
	EmptiedLots []string    `json:"emptied_lots,omitempty"`
}

// lotWouldDrain reports whether consuming the given per-item quantities
// leaves the lot without items: every item must be covered in full, within
// the quantity tolerance.
func lotWouldDrain(lot *models.Lot, consumedByItem map[int]decimal.Decimal) bool {
	for _, item := range lot.Items {
		consumed, ok := consumedByItem[item.ID]
		if !ok {
			return false
		}
		if item.Qty.Sub(consumed).GreaterThan(models.QtyEpsilon) {
			return false
		}
	}
	return true
}

// ProcessMergeWorkflow moves the requested quantities from source line
// items into the target lot: each pair decrements (or deletes) the source
// item and inserts a new target item in the source item's unit. A source
// lot may end up emptied, in which case it transitions to exported and
// points at the target through MergedToCode; partially merged sources stay
// active with their remainders.
func ProcessMergeWorkflow(ctx context.Context, input *MergeLotsInput) (*MergeResult, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(input.Items) == 0 {
		return nil, errors.New("at least one source item is required")
	}

	target, err := models.GetLot(ctx, input.TargetLotId)
	if err != nil {
		return nil, err
	}
	if target.Status != models.LotStatusActive {
		return nil, fmt.Errorf("lot %s is not active", target.Code)
	}

	db := config.GetDB()

	// Resolve every pair to its source item and lot, grouped per lot in
	// first-seen order.
	sourceLots := make(map[int]*models.Lot)
	var lotOrder []int
	pairsByLot := make(map[int][]mergePair)
	consumedByItem := make(map[int]decimal.Decimal)
	for _, pair := range input.Items {
		if pair.Qty.Sign() <= 0 {
			return nil, fmt.Errorf("merge quantity for item %d must be positive", pair.SourceItemId)
		}
		var item models.LotItem
		if err := db.WithContext(ctx).First(&item, "id = ?", pair.SourceItemId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("source item %d not found", pair.SourceItemId)
			}
			return nil, err
		}
		if item.LotId == target.ID {
			return nil, fmt.Errorf("item %d already belongs to the target lot", item.ID)
		}

		source, ok := sourceLots[item.LotId]
		if !ok {
			source, err = models.GetLot(ctx, item.LotId)
			if err != nil {
				return nil, err
			}
			if source.Status != models.LotStatusActive {
				return nil, fmt.Errorf("lot %s is not active", source.Code)
			}
			if source.Warehouse != target.Warehouse {
				return nil, fmt.Errorf("lot %s belongs to another warehouse", source.Code)
			}
			sourceLots[item.LotId] = source
			lotOrder = append(lotOrder, item.LotId)
		}
		if _, dup := consumedByItem[item.ID]; dup {
			return nil, fmt.Errorf("item %d is listed more than once", item.ID)
		}
		pairsByLot[item.LotId] = append(pairsByLot[item.LotId], mergePair{item: item, qty: pair.Qty})
		consumedByItem[item.ID] = pair.Qty
	}

	// Losing a position is a one-way side effect; it is surfaced before
	// anything is written.
	for _, lotId := range lotOrder {
		source := sourceLots[lotId]
		if source.PositionId == nil || !lotWouldDrain(source, consumedByItem) {
			continue
		}
		if input.ConfirmPositionRelease == nil || !*input.ConfirmPositionRelease {
			return nil, ErrPositionReleaseNotConfirmed
		}
	}

	cc, err := models.NewConversionContext(ctx)
	if err != nil {
		return nil, err
	}

	var emptied []string
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, lotId := range lotOrder {
			source := sourceLots[lotId]
			snapshot := models.NewLotHeaderSnapshot(tx, source)

			lines := make([]models.LotEventLine, 0, len(pairsByLot[lotId]))
			for _, pair := range pairsByLot[lotId] {
				item := pair.item
				if err := models.ProcessItemAutoSplit(tx, cc, &item, pair.qty, ""); err != nil {
					config.LogError(logger, "mergeWorkflow.go", "ProcessMergeWorkflow", "ProcessItemAutoSplit", item.ID, err)
					return err
				}
				if err := tx.Create(&models.LotItem{
					BusinessId: businessId,
					LotId:      target.ID,
					ProductId:  item.ProductId,
					Qty:        pair.qty,
					UnitName:   item.UnitName,
				}).Error; err != nil {
					return err
				}
				lines = append(lines, models.LotEventLine{
					ProductId: item.ProductId,
					Qty:       pair.qty,
					UnitName:  item.UnitName,
				})
			}

			mergedEvent := models.LotEvent{
				Kind:       models.LotEventKindMergedTo,
				RefLotCode: target.Code,
			}
			if err := mergedEvent.SetPayload(models.LotEventPayload{Lines: lines, Snapshot: &snapshot}); err != nil {
				return err
			}
			if err := models.AppendLotEvent(tx, businessId, source.ID, &mergedEvent); err != nil {
				return err
			}

			absorbedEvent := models.LotEvent{
				Kind:       models.LotEventKindItemSnapshot,
				RefLotCode: source.Code,
			}
			if err := absorbedEvent.SetPayload(models.LotEventPayload{Lines: lines, Snapshot: &snapshot}); err != nil {
				return err
			}
			if err := models.AppendLotEvent(tx, businessId, target.ID, &absorbedEvent); err != nil {
				return err
			}

			if _, err := models.CalculateTotalBaseQty(tx, cc, source); err != nil {
				return err
			}
			drained, err := models.MarkLotEmptiedIfDrained(tx, source, &target.Code)
			if err != nil {
				return err
			}
			if drained {
				emptied = append(emptied, source.Code)
			}
		}

		if _, err := models.CalculateTotalBaseQty(tx, cc, target); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	target, err = models.GetLot(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	return &MergeResult{Target: target, EmptiedLots: emptied}, nil
}

type mergePair struct {
	item models.LotItem
	qty  decimal.Decimal
}
