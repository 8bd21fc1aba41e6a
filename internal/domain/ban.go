package domain

import "time"

// DefaultBanReason is stored when an admin bans without giving a reason.
const DefaultBanReason = "-"

// BanRecord marks a user as banned. Its presence is the ban; removing the
// record lifts it. At most one record exists per user.
type BanRecord struct {
	UserID   int64     `bson:"user_id" json:"user_id"`
	Reason   string    `bson:"reason" json:"reason"`
	BannedAt time.Time `bson:"banned_at" json:"banned_at"`
}
