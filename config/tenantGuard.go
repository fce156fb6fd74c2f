package config

import (
	"context"
	"strings"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin enforces multi-tenant isolation by automatically scoping
// queries/updates/deletes to the request's business_id when the model has a
// business_id column. When the request context carries a warehouse, tables
// with a warehouse column are additionally narrowed to it, so an operator
// pinned to one warehouse never reads or mutates another warehouse's lots.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include business_id
//   (and warehouse scope, where relevant) manually.
// - Admin/internal bypass is explicit via context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTenantScope(ctx) {
		return
	}
	if db.Statement.Schema == nil {
		return
	}

	if businessID := businessIdFromContext(ctx); businessID != "" {
		addColumnScope(db, "business_id", businessID)
	}
	if warehouse := warehouseFromContext(ctx); warehouse != "" {
		addColumnScope(db, "warehouse", warehouse)
	}
}

// addColumnScope adds `column = value` when the model carries the column
// and the statement doesn't already filter on it.
func addColumnScope(db *gorm.DB, column string, value string) {
	if !schemaHasColumn(db, column) {
		return
	}
	if whereHasColumn(db.Statement.Clauses["WHERE"], column) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: column},
				Value:  value,
			},
		},
	})
}

func schemaHasColumn(db *gorm.DB, column string) bool {
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, column) {
			return true
		}
	}
	return false
}

func businessIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyBusinessId).(string); ok && v != "" {
		return v
	}
	return ""
}

func warehouseFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyWarehouse).(string); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); ok && v {
		return true
	}
	if v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool); ok && v {
		return true
	}
	return false
}

func whereHasColumn(c clause.Clause, column string) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasColumn(e, column) {
			return true
		}
	}
	return false
}

func exprHasColumn(e clause.Expression, column string) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIs(v.Column, column)
	case clause.Neq:
		return colIs(v.Column, column)
	case clause.Gt:
		return colIs(v.Column, column)
	case clause.Gte:
		return colIs(v.Column, column)
	case clause.Lt:
		return colIs(v.Column, column)
	case clause.Lte:
		return colIs(v.Column, column)
	case clause.IN:
		return colIs(v.Column, column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasColumn(x, column) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasColumn(x, column) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), column)
	default:
		return false
	}
}

func colIs(col any, column string) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, column)
	case clause.Column:
		return strings.EqualFold(c.Name, column)
	default:
		return false
	}
}
