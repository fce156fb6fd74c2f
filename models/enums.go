package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type LotStatus string

const (
	LotStatusActive   LotStatus = "Active"
	LotStatusExported LotStatus = "Exported"
)

func (t *LotStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Active":
		*t = LotStatusActive
	case "Exported":
		*t = LotStatusExported
	default:
		return errors.New("invalid lot status")
	}
	return nil
}

type LotEventKind string

const (
	LotEventKindInboundDraft  LotEventKind = "InboundDraft"
	LotEventKindInboundBooked LotEventKind = "InboundBooked"
	LotEventKindExportDraft   LotEventKind = "ExportDraft"
	LotEventKindExportBooked  LotEventKind = "ExportBooked"
	LotEventKindSplitTo       LotEventKind = "SplitTo"
	LotEventKindMergedTo      LotEventKind = "MergedTo"
	LotEventKindItemSnapshot  LotEventKind = "ItemSnapshot"
)

// movement kinds carry per-item lines in the payload and participate in the
// draft -> booked state machine
func (k LotEventKind) IsDraftKind() bool {
	return k == LotEventKindInboundDraft || k == LotEventKindExportDraft
}

func (k LotEventKind) BookedKind() (LotEventKind, error) {
	switch k {
	case LotEventKindInboundDraft:
		return LotEventKindInboundBooked, nil
	case LotEventKindExportDraft:
		return LotEventKindExportBooked, nil
	default:
		return "", fmt.Errorf("event kind %s has no booked form", k)
	}
}

type OrderKind string

const (
	OrderKindExport  OrderKind = "Export"
	OrderKindInbound OrderKind = "Inbound"
)

func (k OrderKind) DraftEventKind() LotEventKind {
	if k == OrderKindInbound {
		return LotEventKindInboundDraft
	}
	return LotEventKindExportDraft
}

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "Confirmed"
)

type Precision string

const (
	PrecisionZero  Precision = "0"
	PrecisionOne   Precision = "1"
	PrecisionTwo   Precision = "2"
	PrecisionThree Precision = "3"
	PrecisionFour  Precision = "4"
)

func (p Precision) Value() (driver.Value, error) {
	return string(p), nil
}

func (p *Precision) Scan(v interface{}) error {
	switch s := v.(type) {
	case []byte:
		*p = Precision(s)
	case string:
		*p = Precision(s)
	default:
		return fmt.Errorf("cannot scan %T into Precision", v)
	}
	return nil
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOperator UserRole = "O"
)
