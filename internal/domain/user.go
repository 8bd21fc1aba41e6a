// Package domain defines shared domain types for the report bot.
package domain

import "time"

// User represents a Telegram user who has interacted with the bot. The id is
// immutable; username and first name are refreshed on every sighting.
type User struct {
	UserID     int64     `bson:"user_id" json:"user_id"`
	Username   string    `bson:"username,omitempty" json:"username,omitempty"`
	FirstName  string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	LastSeenAt time.Time `bson:"last_seen_at" json:"last_seen_at"`
	Banned     bool      `bson:"-" json:"banned,omitempty"`
}
