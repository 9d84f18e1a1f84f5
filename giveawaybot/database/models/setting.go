package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Setting is a key-value row for operator configuration, e.g. the default
// broadcast channel.
type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

const SettingBroadcastChannel = "broadcast_channel"
