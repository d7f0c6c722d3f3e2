package models

import "time"

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// OneTimeCode: отдельная запись на каждую отправку кода.
// Храним только bcrypt-хэш кода (CodeHash).
type OneTimeCode struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	Channel      Channel    `json:"channel"`
	CodeHash     string     `json:"-"`
	SentAt       time.Time  `json:"sentAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	ConsumedAt   *time.Time `json:"consumedAt,omitempty"`
	SupersededAt *time.Time `json:"-"`
	Attempts     int        `json:"attempts"`
}

func (c *OneTimeCode) Consumed() bool { return c.ConsumedAt != nil }

func (c *OneTimeCode) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }
