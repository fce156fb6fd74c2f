package config

import (
	"context"
	"testing"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/appctx"
	"gorm.io/gorm/clause"
)

func TestExprHasColumn(t *testing.T) {
	tests := []struct {
		name   string
		expr   clause.Expression
		column string
		want   bool
	}{
		{
			name:   "eq on the column",
			expr:   clause.Eq{Column: clause.Column{Name: "business_id"}, Value: "b1"},
			column: "business_id",
			want:   true,
		},
		{
			name:   "eq on another column",
			expr:   clause.Eq{Column: clause.Column{Name: "warehouse"}, Value: "Main"},
			column: "business_id",
			want:   false,
		},
		{
			name:   "warehouse filter found",
			expr:   clause.Eq{Column: "warehouse", Value: "Main"},
			column: "warehouse",
			want:   true,
		},
		{
			name: "nested and-conditions",
			expr: clause.AndConditions{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Name: "status"}, Value: "Active"},
				clause.IN{Column: clause.Column{Name: "warehouse"}, Values: []interface{}{"Main"}},
			}},
			column: "warehouse",
			want:   true,
		},
		{
			name:   "raw expression mentioning the column",
			expr:   clause.Expr{SQL: "lots.warehouse = ?", Vars: []interface{}{"Main"}},
			column: "warehouse",
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exprHasColumn(tt.expr, tt.column); got != tt.want {
				t.Fatalf("exprHasColumn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldBypassTenantScope(t *testing.T) {
	ctx := context.Background()
	if shouldBypassTenantScope(ctx) {
		t.Fatal("plain context must not bypass the guard")
	}
	if !shouldBypassTenantScope(appctx.Set(ctx, appctx.ContextKeyIsAdmin, true)) {
		t.Fatal("admin context must bypass the guard")
	}
	if !shouldBypassTenantScope(appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)) {
		t.Fatal("skip flag must bypass the guard")
	}
	if shouldBypassTenantScope(appctx.Set(ctx, appctx.ContextKeyIsAdmin, false)) {
		t.Fatal("a false admin flag must not bypass the guard")
	}
}

func TestWarehouseFromContext(t *testing.T) {
	ctx := context.Background()
	if got := warehouseFromContext(ctx); got != "" {
		t.Fatalf("expected no warehouse on a plain context, got %q", got)
	}
	ctx = appctx.Set(ctx, appctx.ContextKeyWarehouse, "Main")
	if got := warehouseFromContext(ctx); got != "Main" {
		t.Fatalf("expected Main, got %q", got)
	}
}
