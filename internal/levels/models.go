package levels

import "time"

// UserLevel is the current standing of one user in one guild.
// Created on the first grant, mutated only by the ledger, never deleted.
type UserLevel struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  string `gorm:"uniqueIndex:idx_user_guild"`
	GuildID string `gorm:"uniqueIndex:idx_user_guild"`
	XP      int64
	Level   int
}

// XPGrant is a single awarded XP event. Rows are append-only and never
// mutated; total XP and activity stats derive from them.
type XPGrant struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index:idx_grant_user"`
	GuildID   string `gorm:"index:idx_grant_user"`
	Amount    int64
	Source    string
	CreatedAt time.Time
}

// Grant sources.
const (
	SourceMessage  = "message"
	SourceVoice    = "voice"
	SourceCommand  = "command"
	SourceDaily    = "daily"
	SourceReaction = "reaction"
	SourceBonus    = "bonus"
)

var validSources = map[string]bool{
	SourceMessage:  true,
	SourceVoice:    true,
	SourceCommand:  true,
	SourceDaily:    true,
	SourceReaction: true,
	SourceBonus:    true,
}
