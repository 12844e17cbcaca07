package models

import "time"

// Session is one shopper conversation, possibly spanning channels.
type Session struct {
	ID           string    `json:"id" db:"id"`
	Channel      string    `json:"channel" db:"channel"`
	CurrentStage string    `json:"current_stage" db:"current_stage"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

const (
	ChannelMobile   = "mobile"
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
)
