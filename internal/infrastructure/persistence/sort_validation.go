package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list endpoint may order by. The key
// is the name accepted from callers, the value the column it maps to.
type sortColumns struct {
	columns  map[string]string
	fallback string
}

func newSortColumns(fallback string, names ...string) sortColumns {
	s := sortColumns{columns: map[string]string{}, fallback: fallback}
	for _, n := range append([]string{"id", "created_at", "updated_at", fallback}, names...) {
		s.columns[n] = n
	}
	return s
}

// alias lets callers order by name while the query orders by column
func (s sortColumns) alias(name, column string) sortColumns {
	s.columns[name] = column
	return s
}

// orderBy resolves a caller supplied field and direction into an ORDER BY
// column. Unknown fields fall back; anything but "asc" sorts descending.
// The id column breaks ties so paging is stable.
func (s sortColumns) orderBy(field, dir string) clause.OrderBy {
	column, ok := s.columns[strings.TrimSpace(field)]
	if !ok {
		column = s.fallback
	}
	desc := !strings.EqualFold(strings.TrimSpace(dir), "asc")
	cols := []clause.OrderByColumn{{Column: clause.Column{Name: column}, Desc: desc}}
	if column != "id" {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	}
	return clause.OrderBy{Columns: cols}
}

var (
	stockLineSort = newSortColumns("updated_at",
		"product_id", "warehouse_id", "quantity", "reserved_quantity", "last_movement_at", "expiry_date").
		alias("key", "stock_key")
	reservationSort = newSortColumns("reservation_date",
		"reservation_number", "expiration_date", "quantity", "status")
	stockCountSort = newSortColumns("created_at",
		"count_number", "count_date", "status", "completed_at")
	cycleCountSort = newSortColumns("scheduled_date",
		"count_number", "abc_class", "status")
	adjustmentSort = newSortColumns("created_at",
		"adjustment_number", "status", "total_cost_impact", "processed_at")
)
