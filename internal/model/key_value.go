package model

import "time"

// KeyValue is a row of the device-local cache. Values are opaque strings.
type KeyValue struct {
	Key       string `gorm:"primaryKey;column:cache_key;size:191"`
	Value     string
	UpdatedAt time.Time
}
