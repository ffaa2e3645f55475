package models

// Note is a short text owned by a single account.
type Note struct {
	BaseModel

	AccountID string `gorm:"type:uuid;not null;index" json:"account_id"`
	Title     string `gorm:"not null" json:"title"`
	Content   string `gorm:"type:text;not null" json:"content"`
	Pinned    bool   `gorm:"not null;default:false" json:"pinned"`
}
