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

// OrderDocument is a consolidated, confirmed trade document produced by
// booking draft movements: one export order or inbound order per
// counterparty, carrying every booked line.
type OrderDocument struct {
	ID           int                 `gorm:"primary_key" json:"id"`
	BusinessId   string              `gorm:"index;not null" json:"business_id"`
	Code         string              `gorm:"size:50;index;not null" json:"code"`
	Kind         OrderKind           `gorm:"type:enum('Export','Inbound');not null;index" json:"kind"`
	Counterparty string              `gorm:"size:100" json:"counterparty"`
	Status       OrderStatus         `gorm:"type:enum('Confirmed');not null" json:"status"`
	OrderDate    time.Time           `json:"order_date"`
	// DraftRefs lists the ids of the draft events this order consolidated.
	DraftRefs json.RawMessage     `gorm:"type:json" json:"draft_refs,omitempty"`
	Lines     []OrderDocumentLine `gorm:"foreignKey:OrderId" json:"lines"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderDocumentLine is one booked movement line, traced back to the lot
// it touched.
type OrderDocumentLine struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"index;not null" json:"order_id"`
	LotId     int             `gorm:"index;not null" json:"lot_id"`
	LotCode   string          `gorm:"size:50" json:"lot_code"`
	ProductId int             `gorm:"not null" json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	UnitName  string          `gorm:"size:20" json:"unit_name"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4)" json:"price"`
}

// SetDraftRefs records which draft events the order consolidated.
func (o *OrderDocument) SetDraftRefs(eventIds []int) error {
	raw, err := json.Marshal(eventIds)
	if err != nil {
		return err
	}
	o.DraftRefs = raw
	return nil
}

// DraftRefIds decodes the consolidated draft event ids.
func (o *OrderDocument) DraftRefIds() ([]int, error) {
	if len(o.DraftRefs) == 0 {
		return nil, nil
	}
	var ids []int
	if err := json.Unmarshal(o.DraftRefs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateOrderDocumentTx writes a confirmed order inside the caller's
// transaction, issuing its code from the document number series and
// stamping the consolidated draft ids on the header.
func CreateOrderDocumentTx(tx *gorm.DB, businessId string, kind OrderKind, counterparty string, draftIds []int, lines []OrderDocumentLine) (*OrderDocument, error) {
	moduleName := DocumentModuleExportOrder
	if kind == OrderKindInbound {
		moduleName = DocumentModuleInboundOrder
	}
	code, err := NextDocumentNumber(tx, businessId, moduleName)
	if err != nil {
		return nil, err
	}

	order := OrderDocument{
		BusinessId:   businessId,
		Code:         code,
		Kind:         kind,
		Counterparty: counterparty,
		Status:       OrderStatusConfirmed,
		OrderDate:    time.Now(),
		Lines:        lines,
	}
	if err := order.SetDraftRefs(draftIds); err != nil {
		return nil, err
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*OrderDocument, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[OrderDocument](ctx, businessId, id, "Lines", "Lines.Product")
}

func GetOrders(ctx context.Context, kind *OrderKind) ([]*OrderDocument, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if kind != nil {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}

	var orders []*OrderDocument
	err := dbCtx.Preload("Lines").Order("order_date DESC, id DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
