package tenant

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTenantPredicateMissing is returned when a statement on a tenant-owned
// table has no tenant_id condition.
var ErrTenantPredicateMissing = errors.New("query on tenant-owned table without tenant_id predicate")

// Guard checks that reads, updates and deletes on tenant-owned tables
// carry a tenant predicate. Tables without a tenant_id column are ignored.
type Guard struct {
	column string
}

// NewGuard creates a guard for the given tenant column
func NewGuard(column string) *Guard {
	if column == "" {
		column = Column
	}
	return &Guard{column: column}
}

// Register installs the guard callbacks on db
func (g *Guard) Register(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant:guard_query", g.check); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", g.check); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", g.check); err != nil {
		return err
	}
	return db.Callback().Row().Before("gorm:row").Register("tenant:guard_row", g.check)
}

// EnableTenantGuard registers a guard on the default tenant column
func EnableTenantGuard(db *gorm.DB) error {
	return NewGuard(Column).Register(db)
}

func (g *Guard) check(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	// Raw SQL is written by hand and checked by its author.
	if db.Statement.SQL.Len() > 0 {
		return
	}
	if db.Statement.Schema.LookUpField(g.column) == nil {
		return
	}
	if g.hasTenantCondition(db.Statement) {
		return
	}
	_ = db.AddError(ErrTenantPredicateMissing)
}

func (g *Guard) hasTenantCondition(stmt *gorm.Statement) bool {
	whereClause, ok := stmt.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if g.exprContainsTenant(expr) {
			return true
		}
	}
	return false
}

// exprContainsTenant walks AND groups only; a tenant condition inside an OR
// does not restrict the result set.
func (g *Guard) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return g.isTenantColumn(e.Column)
	case clause.IN:
		return g.isTenantColumn(e.Column)
	case clause.Expr:
		return strings.Contains(e.SQL, g.column)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, g.column)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if g.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

func (g *Guard) isTenantColumn(col interface{}) bool {
	switch c := col.(type) {
	case clause.Column:
		return c.Name == g.column
	case string:
		return c == g.column
	}
	return false
}
