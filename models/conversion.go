package models

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
)

// ConversionContext is an immutable snapshot of the unit catalog and the
// per-product rate table, built once per request/transaction and passed
// explicitly into every ledger operation. It never touches the DB after
// construction, so conversions inside a transaction are stable even if the
// tables change underneath.
type ConversionContext struct {
	unitNameById      map[int]string
	baseUnitByProduct map[int]string
	rates             map[int]map[string]decimal.Decimal // productId -> unitName -> rate
}

// BuildConversionContext assembles a context from already-loaded tables.
func BuildConversionContext(units []*Unit, products []*Product, rates []*ProductUnitRate) *ConversionContext {
	cc := &ConversionContext{
		unitNameById:      make(map[int]string, len(units)),
		baseUnitByProduct: make(map[int]string, len(products)),
		rates:             make(map[int]map[string]decimal.Decimal),
	}
	for _, u := range units {
		cc.unitNameById[u.ID] = u.Name
	}
	for _, p := range products {
		cc.baseUnitByProduct[p.ID] = cc.unitNameById[p.UnitId]
	}
	for _, r := range rates {
		unitName := cc.unitNameById[r.UnitId]
		if unitName == "" {
			continue
		}
		if cc.rates[r.ProductId] == nil {
			cc.rates[r.ProductId] = make(map[string]decimal.Decimal)
		}
		cc.rates[r.ProductId][unitName] = r.Rate
	}
	return cc
}

// NewConversionContext loads the configuration tables (redis-cached with DB
// fallback) for the ctx's business and freezes them into a snapshot.
func NewConversionContext(ctx context.Context) (*ConversionContext, error) {
	units, err := GetUnits(ctx)
	if err != nil {
		return nil, err
	}
	products, err := GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := GetProductUnitRates(ctx)
	if err != nil {
		return nil, err
	}
	return BuildConversionContext(units, products, rates), nil
}

func (cc *ConversionContext) UnitName(unitId int) string {
	return cc.unitNameById[unitId]
}

// BaseUnit returns the product's declared unit name, the pivot of every
// conversion for that product.
func (cc *ConversionContext) BaseUnit(productId int) string {
	return cc.baseUnitByProduct[productId]
}

func (cc *ConversionContext) Rate(productId int, unitName string) (decimal.Decimal, bool) {
	if unitName == cc.baseUnitByProduct[productId] {
		return decimal.NewFromInt(1), true
	}
	r, ok := cc.rates[productId][unitName]
	if !ok || r.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return r, true
}

// HasRate reports whether a (product, unit) pairing is convertible.
func (cc *ConversionContext) HasRate(productId int, unitName string) bool {
	_, ok := cc.Rate(productId, unitName)
	return ok
}

// ToBase converts qty expressed in fromUnit into the product's base unit.
// A missing rate falls back to treating qty as already base. That keeps
// legacy rows with undeclared units usable, at the price of a silent
// approximation; the fallback is logged so it can be audited.
func (cc *ConversionContext) ToBase(productId int, fromUnit string, qty decimal.Decimal) decimal.Decimal {
	if fromUnit == cc.baseUnitByProduct[productId] {
		return qty
	}
	rate, ok := cc.rates[productId][fromUnit]
	if !ok || rate.Sign() <= 0 {
		cc.logMissingRate("ToBase", productId, fromUnit)
		return qty
	}
	return qty.Mul(rate)
}

// FromBase converts a base-unit quantity into toUnit. Inverse of ToBase;
// the same missing-rate fallback applies.
func (cc *ConversionContext) FromBase(productId int, toUnit string, qtyBase decimal.Decimal) decimal.Decimal {
	if toUnit == cc.baseUnitByProduct[productId] {
		return qtyBase
	}
	rate, ok := cc.rates[productId][toUnit]
	if !ok || rate.Sign() <= 0 {
		cc.logMissingRate("FromBase", productId, toUnit)
		return qtyBase
	}
	return qtyBase.Div(rate)
}

func (cc *ConversionContext) logMissingRate(funcName string, productId int, unitName string) {
	logger := config.GetLogger()
	if logger == nil {
		return
	}
	config.LogWarn(logger, "conversion.go", funcName, "rate lookup",
		map[string]any{"product_id": productId, "unit": unitName},
		fmt.Sprintf("no conversion rate for product %d unit %q; quantity treated as base", productId, unitName))
}
