package model

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserName     string    `gorm:"uniqueIndex;not null" json:"userName"`
	PasswordHash string    `gorm:"not null" json:"-"`
	PasswordSalt string    `json:"-"`
	Role         string    `gorm:"default:'user'" json:"role"` // admin, user
	IsDeleted    bool      `gorm:"default:false;index" json:"-"`
	CreateTime   time.Time `gorm:"autoCreateTime" json:"createTime"`
	UpdateTime   time.Time `gorm:"autoUpdateTime" json:"updateTime"`
}

// ComAllocation grants a non-admin user access to events whose
// (deviceId, comPort) match. ComPortsJson is a JSON array of strings.
type ComAllocation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"userId"`
	DeviceID     string    `gorm:"index;not null" json:"deviceId"`
	ComPortsJson string    `json:"comPortsJson"`
	IsDeleted    bool      `gorm:"default:false;index" json:"-"`
	CreateTime   time.Time `gorm:"autoCreateTime" json:"createTime"`
	UpdateTime   time.Time `gorm:"autoUpdateTime" json:"updateTime"`
}

// DeviceComSnapshot is the authoritative per-device catalog of ports.
// DataJson is a JSON array of PortInfo; writes are overwrite-semantic.
type DeviceComSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DeviceID   string    `gorm:"uniqueIndex;not null" json:"deviceId"`
	DataJson   string    `json:"dataJson"`
	UpdateTime time.Time `gorm:"autoUpdateTime" json:"updateTime"`
}

type SmsMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DeviceID       string    `gorm:"index;not null" json:"deviceId"`
	ComPort        string    `gorm:"index;not null" json:"comPort"`
	SenderNumber   string    `gorm:"index" json:"senderNumber"`
	MessageContent string    `json:"messageContent"`
	ReceivedTime   time.Time `gorm:"index" json:"receivedTime"`
	SmsTimestamp   string    `json:"smsTimestamp,omitempty"`
	// Operator is stamped once at ingest from the device snapshot and is
	// not refreshed if the snapshot changes later.
	Operator  string `json:"operator,omitempty"`
	IsDeleted bool   `gorm:"default:false;index" json:"-"`
}

const (
	HangupReasonAuto    = "AutoHangup"
	HangupReasonManual  = "Manual"
	HangupReasonUnknown = "Unknown"
)

type CallHangupRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DeviceID     string    `gorm:"index;not null" json:"deviceId"`
	ComPort      string    `gorm:"index;not null" json:"comPort"`
	CallerNumber string    `json:"callerNumber,omitempty"`
	HangupTime   time.Time `gorm:"index" json:"hangupTime"`
	Reason       string    `json:"reason"` // AutoHangup, Manual, Unknown
	RawLine      string    `json:"rawLine,omitempty"`
	IsDeleted    bool      `gorm:"default:false;index" json:"-"`
}

const (
	MessageTypeSms    = "Sms"
	MessageTypeHangup = "Hangup"
)

// MessageReadReceipt marks one (user, type, source) as read. The unique
// index makes duplicate marks idempotent.
type MessageReadReceipt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_receipt_key;not null" json:"userId"`
	MessageType string    `gorm:"uniqueIndex:idx_receipt_key;not null" json:"messageType"` // Sms, Hangup
	SourceID    uint      `gorm:"uniqueIndex:idx_receipt_key;not null" json:"sourceId"`
	ReadTimeUtc time.Time `json:"readTimeUtc"`
}

const (
	SendStatusPending = "Pending"
	SendStatusSuccess = "Success"
	SendStatusFailed  = "Failed"
)

type SmsSendRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DeviceID       string    `gorm:"index;not null" json:"deviceId"`
	ComPort        string    `gorm:"not null" json:"comPort"`
	TargetNumber   string    `gorm:"not null" json:"targetNumber"`
	MessageContent string    `json:"messageContent"`
	Status         string    `gorm:"default:'Pending'" json:"status"` // Pending, Success, Failed
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreateTime     time.Time `gorm:"autoCreateTime" json:"createTime"`
	UpdateTime     time.Time `gorm:"autoUpdateTime" json:"updateTime"`
}

type Note struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Title       string    `json:"title"`
	ContentHtml string    `json:"contentHtml"`
	IsDeleted   bool      `gorm:"default:false;index" json:"-"`
	CreateTime  time.Time `gorm:"autoCreateTime" json:"createTime"`
	UpdateTime  time.Time `gorm:"autoUpdateTime" json:"updateTime"`
}

type Webhook struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DeviceID   string    `gorm:"index;not null" json:"deviceId"`
	ComPort    string    `json:"comPort"` // empty matches any port on the device
	URL        string    `gorm:"not null" json:"url"`
	Template   string    `json:"template"` // "Msg from {{.SenderNumber}}: {{.MessageContent}}"
	Enabled    bool      `gorm:"default:true" json:"enabled"`
	CreateTime time.Time `gorm:"autoCreateTime" json:"createTime"`
}
