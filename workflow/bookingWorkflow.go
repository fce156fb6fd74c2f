package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

var ErrNoPendingDrafts = errors.New("no pending draft movements to book")

type BookingFailure struct {
	Counterparty string `json:"counterparty"`
	EventIds     []int  `json:"event_ids"`
	Error        string `json:"error"`
}

// BookingResult reports partial outcomes explicitly: each counterparty
// group is booked in its own transaction, so some orders may land while
// others fail.
type BookingResult struct {
	Orders         []*models.OrderDocument `json:"orders"`
	BookedEventIds []int                   `json:"booked_event_ids"`
	Failures       []BookingFailure        `json:"failures"`
}

// MergedCounterpartyLabel names an order that books drafts from several
// counterparties at once. Order of first appearance, duplicates and blanks
// dropped.
func MergedCounterpartyLabel(names []string) string {
	label := ""
	seen := make(map[string]bool)
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if label != "" {
			label += " / "
		}
		label += name
	}
	if label == "" {
		return "Unspecified"
	}
	return label
}

// ProcessBookingWorkflow turns pending draft movements into confirmed
// orders. With explicit eventIds the selected drafts become one order
// under a merged counterparty label; otherwise drafts are grouped by
// counterparty, one order each. Booking is serialized per business.
func ProcessBookingWorkflow(ctx context.Context, kind models.OrderKind, eventIds []int) (*BookingResult, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// Best-effort: a second booking request for the same business waits
	// its turn instead of interleaving order numbers.
	locker := config.GetRedisLock()
	if locker == nil {
		logger.WithFields(logrus.Fields{
			"field":       "ProcessBookingWorkflow",
			"business_id": businessId,
		}).Warn("redis lock not ready; proceeding without booking lock")
	} else {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("booking:%s", businessId), 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return nil, errors.New("another booking is already in progress")
		} else if err != nil {
			logger.WithFields(logrus.Fields{
				"field":       "ProcessBookingWorkflow",
				"business_id": businessId,
			}).Warn("error obtaining booking lock; proceeding without booking lock: " + err.Error())
		} else {
			defer func() {
				_ = lock.Release(ctx)
			}()
		}
	}

	drafts, err := models.GetPendingDrafts(ctx, kind)
	if err != nil {
		return nil, err
	}

	var groups [][]*models.LotEvent
	var labels []string
	if len(eventIds) > 0 {
		selected := make([]*models.LotEvent, 0, len(eventIds))
		names := make([]string, 0, len(eventIds))
		for _, id := range eventIds {
			idx := slices.IndexFunc(drafts, func(d *models.LotEvent) bool { return d.ID == id })
			if idx < 0 {
				return nil, fmt.Errorf("event %d is not a pending %s draft", id, kind)
			}
			selected = append(selected, drafts[idx])
			names = append(names, drafts[idx].Counterparty)
		}
		groups = append(groups, selected)
		labels = append(labels, MergedCounterpartyLabel(names))
	} else {
		byCounterparty := make(map[string][]*models.LotEvent)
		var order []string
		for _, d := range drafts {
			if _, ok := byCounterparty[d.Counterparty]; !ok {
				order = append(order, d.Counterparty)
			}
			byCounterparty[d.Counterparty] = append(byCounterparty[d.Counterparty], d)
		}
		for _, name := range order {
			groups = append(groups, byCounterparty[name])
			labels = append(labels, MergedCounterpartyLabel([]string{name}))
		}
	}
	if len(groups) == 0 {
		return nil, ErrNoPendingDrafts
	}

	result := BookingResult{}
	db := config.GetDB()
	for i, group := range groups {
		label := labels[i]
		groupIds := make([]int, 0, len(group))
		for _, d := range group {
			groupIds = append(groupIds, d.ID)
		}

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var orderLines []models.OrderDocumentLine
			var lineWarehouses []string
			for _, draft := range group {
				payload, err := draft.GetPayload()
				if err != nil {
					return err
				}
				lotCode := ""
				warehouse := ""
				if draft.Lot != nil {
					lotCode = draft.Lot.Code
					warehouse = draft.Lot.Warehouse
				}
				for _, line := range payload.Lines {
					orderLines = append(orderLines, models.OrderDocumentLine{
						LotId:     draft.LotId,
						LotCode:   lotCode,
						ProductId: line.ProductId,
						Qty:       line.Qty,
						UnitName:  line.UnitName,
						Price:     line.Price,
					})
					lineWarehouses = append(lineWarehouses, warehouse)
				}
			}

			order, err := models.CreateOrderDocumentTx(tx, businessId, kind, label, groupIds, orderLines)
			if err != nil {
				return err
			}

			for _, draft := range group {
				if err := draft.Book(order.ID, order.Code); err != nil {
					return err
				}
				if err := tx.Model(&models.LotEvent{}).
					Where("id = ?", draft.ID).
					Updates(map[string]interface{}{
						"Kind":      draft.Kind,
						"Draft":     false,
						"OrderId":   order.ID,
						"OrderCode": order.Code,
					}).Error; err != nil {
					return err
				}
			}

			// keep the book side in step with what was just confirmed
			for i, line := range orderLines {
				delta := line.Qty
				if kind == models.OrderKindExport {
					delta = delta.Neg()
				}
				if err := models.ApplyAccountingMovementTx(tx, businessId, line.ProductId, line.UnitName, lineWarehouses[i], delta); err != nil {
					return err
				}
			}

			result.Orders = append(result.Orders, order)
			result.BookedEventIds = append(result.BookedEventIds, groupIds...)
			return nil
		})
		if err != nil {
			config.LogError(logger, "bookingWorkflow.go", "ProcessBookingWorkflow", "BookGroup", groupIds, err)
			result.Failures = append(result.Failures, BookingFailure{
				Counterparty: label,
				EventIds:     groupIds,
				Error:        err.Error(),
			})
		}
	}
	return &result, nil
}
