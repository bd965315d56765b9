// Package scope injects the tenant identifier into outgoing reads and
// incoming write payloads. Every helper takes the tenant explicitly — it is
// never fetched from ambient state here — so the package stays pure and
// testable without a live session.
package scope

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/shule-app/shule/core/session"
)

// Column is the tenant column every business table carries.
const Column = "school_id"

// Read constrains an outgoing read to the given tenant.
func Read(builder sq.SelectBuilder, tenant session.TenantID) sq.SelectBuilder {
	return builder.Where(sq.Eq{Column: tenant})
}

// Update constrains an outgoing update to the given tenant.
func Update(builder sq.UpdateBuilder, tenant session.TenantID) sq.UpdateBuilder {
	return builder.Where(sq.Eq{Column: tenant})
}

// Delete constrains an outgoing delete to the given tenant.
func Delete(builder sq.DeleteBuilder, tenant session.TenantID) sq.DeleteBuilder {
	return builder.Where(sq.Eq{Column: tenant})
}

// Insert returns a shallow copy of record with the tenant column set to the
// caller's tenant, overwriting any value already present. A form payload can
// therefore never smuggle a foreign school id into a write.
func Insert(record map[string]interface{}, tenant session.TenantID) map[string]interface{} {
	scoped := make(map[string]interface{}, len(record)+1)
	for k, v := range record {
		scoped[k] = v
	}
	scoped[Column] = tenant
	return scoped
}

// InsertMany applies Insert over a sequence of records.
func InsertMany(records []map[string]interface{}, tenant session.TenantID) []map[string]interface{} {
	scoped := make([]map[string]interface{}, len(records))
	for i, record := range records {
		scoped[i] = Insert(record, tenant)
	}
	return scoped
}
