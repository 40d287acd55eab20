package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap stores an opaque record payload as a JSON column. The service never
// validates payload shape; record content is business data owned by the caller.
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(data, m)
}

// GormDataType tells gorm which column type to migrate for JSONMap fields.
func (JSONMap) GormDataType() string {
	return "jsonb"
}

// SyncedRecord is one row of a synced collection: an externally-supplied
// unique id plus the opaque payload. The same model backs all five collection
// tables; the table name is chosen per call with db.Table(collection).
type SyncedRecord struct {
	ID       string    `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Data     JSONMap   `json:"data" gorm:"type:jsonb"`
	SyncedAt time.Time `json:"synced_at"`
}

// Flatten merges the payload and id back into the wire shape {id, ...fields}.
func (r *SyncedRecord) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Data)+1)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	return out
}
