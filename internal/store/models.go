package store

import (
	"encoding/json"
	"time"
)

// KVEntry is one persisted application state value, such as the auth flag or the profile.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName pins the table name.
func (KVEntry) TableName() string {
	return "kv_entries"
}

// Assessment is a completed listing analysis kept for the history view.
type Assessment struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Title        string    `gorm:"size:256"`
	Address      string    `gorm:"size:512"`
	Price        float64   `gorm:"not null"`
	Language     string    `gorm:"size:16"`
	RiskScore    int       `gorm:"index"`
	Verdict      string    `gorm:"size:256"`
	VerdictColor string    `gorm:"size:16;index"`
	Tier         string    `gorm:"size:16"`
	ResultJSON   string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index"`
}

// SetResult persists the full assessment payload as JSON.
func (a *Assessment) SetResult(result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	a.ResultJSON = string(payload)
	return nil
}

// Result decodes the stored payload into out.
func (a *Assessment) Result(out any) error {
	if a.ResultJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(a.ResultJSON), out)
}
