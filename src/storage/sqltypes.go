package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Execer runs statements that don't return rows.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecQuerier is the full query surface the store needs: writes via Execer
// and reads via sqlscan. Both *sql.DB and *sql.Tx satisfy it.
type ExecQuerier interface {
	Execer
	sqlscan.Querier
}

// JSONStringArray stores a string slice as a JSON text column. Used for the
// guard's rolling window of recent messages.
type JSONStringArray []string

// Scan implements sql.Scanner. NULL and empty columns scan to an empty slice.
func (a *JSONStringArray) Scan(value any) error {
	if value == nil {
		*a = JSONStringArray{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into JSONStringArray", value)
	}

	if len(data) == 0 {
		*a = JSONStringArray{}
		return nil
	}
	return json.Unmarshal(data, a)
}

// Value implements driver.Valuer. A nil or empty slice is stored as "[]".
func (a JSONStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
