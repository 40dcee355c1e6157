package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lead represents a scraped or manually added prospect.
// Identity is the opaque id issued when the row is first stored.
type Lead struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Company   string    `gorm:"type:varchar(255)" json:"company"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Phone     string    `gorm:"type:varchar(50);index" json:"phone"`
	Website   string    `gorm:"type:text" json:"website,omitempty"`
	Status    string    `gorm:"type:varchar(20);default:'new'" json:"status"`
	Priority  *string   `gorm:"type:varchar(10)" json:"priority"`
	Score     int       `json:"score,omitempty"`
	Tags      string    `gorm:"type:text" json:"tags,omitempty"` // Comma separated tags
	CreatedAt time.Time `gorm:"autoCreateTime" json:"date_added"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Notification represents a dashboard notification row
type Notification struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type      string    `gorm:"type:varchar(20);not null" json:"type"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"default:false" json:"read"`
	LeadID    *string   `gorm:"type:varchar(64)" json:"lead_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// SentLog records the last outbound WhatsApp message per lead.
// lead_id is the primary key, so a re-send overwrites the previous
// timestamp instead of appending a second row.
type SentLog struct {
	LeadID   string    `gorm:"primaryKey;type:varchar(64)" json:"lead_id"`
	LeadName string    `gorm:"type:varchar(255)" json:"lead_name"`
	SentAt   time.Time `gorm:"not null;index" json:"sent_at"`
}

func (SentLog) TableName() string {
	return "whatsapp_sent_log"
}

// QRCode holds the latest pairing image for a messaging instance,
// written by the session workflow via the inbound webhook.
type QRCode struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	InstanceName string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"instance_name"`
	QRBase64     string    `gorm:"type:text" json:"qr_base64"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (QRCode) TableName() string {
	return "qr_codes"
}
