package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func orderColumns(ob clause.OrderBy) []string {
	out := make([]string, 0, len(ob.Columns))
	for _, c := range ob.Columns {
		dir := " ASC"
		if c.Desc {
			dir = " DESC"
		}
		out = append(out, c.Column.Name+dir)
	}
	return out
}

func TestSortColumns_OrderBy(t *testing.T) {
	sort := newSortColumns("reservation_date", "reservation_number", "status")

	tests := []struct {
		name  string
		field string
		dir   string
		want  []string
	}{
		{"empty field falls back", "", "", []string{"reservation_date DESC", "id DESC"}},
		{"allowed field ascending", "status", "asc", []string{"status ASC", "id ASC"}},
		{"direction is case insensitive", "status", " ASC ", []string{"status ASC", "id ASC"}},
		{"unknown direction sorts descending", "status", "sideways", []string{"status DESC", "id DESC"}},
		{"common columns are always allowed", "created_at", "asc", []string{"created_at ASC", "id ASC"}},
		{"id needs no tie breaker", "id", "asc", []string{"id ASC"}},
		{"unknown field falls back", "quantity", "asc", []string{"reservation_date ASC", "id ASC"}},
		{"injection attempt falls back", "status; DROP TABLE stock_lines;--", "", []string{"reservation_date DESC", "id DESC"}},
		{"field names are case sensitive", "STATUS", "asc", []string{"reservation_date ASC", "id ASC"}},
		{"whitespace around a field is ignored", "  status  ", "asc", []string{"status ASC", "id ASC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderColumns(sort.orderBy(tt.field, tt.dir)))
		})
	}
}

func TestSortColumns_Alias(t *testing.T) {
	ob := stockLineSort.orderBy("key", "asc")
	require.Len(t, ob.Columns, 2)
	assert.Equal(t, "stock_key", ob.Columns[0].Column.Name)
	assert.False(t, ob.Columns[0].Desc)
}

func TestLedgerSortColumns(t *testing.T) {
	cases := map[string]struct {
		sort     sortColumns
		fallback string
		allowed  []string
	}{
		"stock lines":  {stockLineSort, "updated_at", []string{"quantity", "reserved_quantity", "last_movement_at"}},
		"reservations": {reservationSort, "reservation_date", []string{"expiration_date", "reservation_number"}},
		"stock counts": {stockCountSort, "created_at", []string{"count_number", "completed_at"}},
		"cycle counts": {cycleCountSort, "scheduled_date", []string{"abc_class", "count_number"}},
		"adjustments":  {adjustmentSort, "created_at", []string{"total_cost_impact", "processed_at"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.fallback, tc.sort.orderBy("", "").Columns[0].Column.Name)
			for _, field := range tc.allowed {
				assert.Equal(t, field, tc.sort.orderBy(field, "").Columns[0].Column.Name)
			}
		})
	}
}
