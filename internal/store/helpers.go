package store

import (
	"database/sql"
	"fmt"

	"github.com/freightpilot/greenlight/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt maps an optional int onto a nullable database column.
func nullableInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

// collectCargoRows scans (cargo_id, start_date, for_days) rows in position
// order into the id list and metadata slice the document shape expects.
func collectCargoRows(rows *sql.Rows) ([]string, []models.CargoMeta, error) {
	var ids []string
	var meta []models.CargoMeta

	for rows.Next() {
		var id string
		var startDate sql.NullString
		var forDays sql.NullInt64
		if err := rows.Scan(&id, &startDate, &forDays); err != nil {
			return nil, nil, fmt.Errorf("failed to scan cargo row: %w", err)
		}
		m := models.CargoMeta{ID: id, StartDate: startDate.String}
		if forDays.Valid {
			v := int(forDays.Int64)
			m.ForDays = &v
		}
		ids = append(ids, id)
		meta = append(meta, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate cargo rows: %w", err)
	}
	return ids, meta, nil
}

// metaIndex indexes metadata by cargo id for insertion lookups.
func metaIndex(meta []models.CargoMeta) map[string]models.CargoMeta {
	out := make(map[string]models.CargoMeta, len(meta))
	for _, m := range meta {
		if m.ID != "" {
			if _, ok := out[m.ID]; !ok {
				out[m.ID] = m
			}
		}
	}
	return out
}
