package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

var (
	ErrEventNotDraft  = errors.New("event is not a draft movement")
	ErrAlreadyBooked  = errors.New("event is already booked")
	ErrEventImmutable = errors.New("booked events cannot be modified")
)

// LotEvent is the append-only history log of a lot: draft/booked movements,
// split and merge provenance, and header snapshots. Entries are strongly
// typed by Kind and queryable on their own instead of living inside the lot
// record.
type LotEvent struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	LotId        int             `gorm:"index;not null" json:"lot_id"`
	Lot          *Lot            `gorm:"foreignKey:LotId" json:"lot,omitempty"`
	Kind         LotEventKind    `gorm:"type:enum('InboundDraft','InboundBooked','ExportDraft','ExportBooked','SplitTo','MergedTo','ItemSnapshot');not null;index" json:"kind"`
	Draft        *bool           `gorm:"index" json:"draft"`
	Counterparty string          `gorm:"size:100" json:"counterparty"`
	OrderId      *int            `gorm:"index" json:"order_id"`
	OrderCode    *string         `gorm:"size:50" json:"order_code"`
	RefLotCode   string          `gorm:"size:50" json:"ref_lot_code"`
	Payload      json.RawMessage `gorm:"type:json" json:"payload"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// LotEventLine is one movement line inside a draft/booked event payload.
type LotEventLine struct {
	ProductId int             `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitName  string          `json:"unit_name"`
	Price     decimal.Decimal `json:"price"`
}

// LotHeaderSnapshot freezes a source lot's header at the moment of a split
// or merge, for audit.
type LotHeaderSnapshot struct {
	LotCode      string    `json:"lot_code"`
	Supplier     string    `json:"supplier"`
	Warehouse    string    `json:"warehouse"`
	PositionCode string    `json:"position_code"`
	ReceivedDate time.Time `json:"received_date"`
	Note         string    `json:"note"`
}

type LotEventPayload struct {
	Lines    []LotEventLine     `json:"lines,omitempty"`
	Snapshot *LotHeaderSnapshot `json:"snapshot,omitempty"`
}

func NewLotHeaderSnapshot(tx *gorm.DB, lot *Lot) LotHeaderSnapshot {
	snapshot := LotHeaderSnapshot{
		LotCode:      lot.Code,
		Supplier:     lot.Supplier,
		Warehouse:    lot.Warehouse,
		ReceivedDate: lot.ReceivedDate,
		Note:         lot.Note,
	}
	if lot.PositionId != nil {
		var position Position
		if err := tx.First(&position, *lot.PositionId).Error; err == nil {
			snapshot.PositionCode = position.Code
		}
	}
	return snapshot
}

func (e *LotEvent) SetPayload(p LotEventPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	e.Payload = raw
	return nil
}

func (e *LotEvent) GetPayload() (LotEventPayload, error) {
	var p LotEventPayload
	if len(e.Payload) == 0 {
		return p, nil
	}
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

func (e *LotEvent) IsDraft() bool {
	return e.Kind.IsDraftKind() && e.Draft != nil && *e.Draft
}

// Book performs the single legal state transition Draft -> Booked,
// attaching the consolidated order. Any other transition is rejected.
func (e *LotEvent) Book(orderId int, orderCode string) error {
	if !e.Kind.IsDraftKind() {
		return ErrEventNotDraft
	}
	if e.Draft == nil || !*e.Draft {
		return ErrAlreadyBooked
	}
	booked, err := e.Kind.BookedKind()
	if err != nil {
		return err
	}
	e.Kind = booked
	e.Draft = utils.NewFalse()
	e.OrderId = &orderId
	e.OrderCode = &orderCode
	return nil
}

// AppendLotEvent writes a new history entry for the lot.
func AppendLotEvent(tx *gorm.DB, businessId string, lotId int, event *LotEvent) error {
	event.BusinessId = businessId
	event.LotId = lotId
	if event.Kind.IsDraftKind() && event.Draft == nil {
		event.Draft = utils.NewTrue()
	}
	return tx.Create(event).Error
}

// GetPendingDrafts returns all unbooked draft movements of the given kind,
// with their lots preloaded, ordered so handlers can group by counterparty.
func GetPendingDrafts(ctx context.Context, kind OrderKind) ([]*LotEvent, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*LotEvent
	err := db.WithContext(ctx).
		Where("business_id = ? AND kind = ? AND draft = 1", businessId, kind.DraftEventKind()).
		Preload("Lot").
		Order("counterparty, created_at").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteDraftEvent removes an unbooked draft history entry. The already
// applied physical mutation is NOT reversed; callers must surface that
// caution to the operator before invoking this.
func DeleteDraftEvent(ctx context.Context, lotId int, eventId int) (*LotEvent, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var event LotEvent
	err := db.WithContext(ctx).
		Where("business_id = ? AND lot_id = ?", businessId, lotId).
		First(&event, eventId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if !event.Kind.IsDraftKind() {
		return nil, ErrEventNotDraft
	}
	if !event.IsDraft() {
		return nil, ErrEventImmutable
	}

	if err := db.WithContext(ctx).Delete(&LotEvent{}, event.ID).Error; err != nil {
		return nil, err
	}
	return &event, nil
}
