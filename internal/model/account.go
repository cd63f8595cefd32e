package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account 注册成功后保存的账号记录，Data 是完整的账号 JSON（token、device_id 等）
type Account struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// View flattens Data into a map and adds the record id, the shape the
// history panel edits and sends back.
func (a *Account) View() map[string]any {
	view := map[string]any{}
	if len(a.Data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(a.Data))
		dec.UseNumber()
		_ = dec.Decode(&view)
		if view == nil {
			view = map[string]any{}
		}
	}
	view["id"] = a.ID.String()
	view["created_at"] = a.CreatedAt
	return view
}
