package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/feeder/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanConfig scans a single row into a model.Config.
// The row must contain columns in the order defined by configColumns.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	var value []byte
	err := row.Scan(&c.Key, &value, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Value = json.RawMessage(value)
	return &c, nil
}

// scanConfigs scans multiple rows into a slice of model.Config pointers.
func scanConfigs(rows *sql.Rows) ([]*model.Config, error) {
	var configs []*model.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB
// columns. An empty value is stored as JSON null.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return []byte("null")
	}
	return []byte(m)
}
