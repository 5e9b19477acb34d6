package levels

import (
	"fmt"
	"time"
)

// MaxLeaderboardSize bounds leaderboard queries.
const MaxLeaderboardSize = 25

// LeaderboardEntry is one row of a guild leaderboard.
type LeaderboardEntry struct {
	UserID  string
	Level   int
	XP      int64
	TotalXP int64
}

// ActivityStats aggregates a user's grant history over the trailing week.
type ActivityStats struct {
	DailyAverageXP int64
	WeeklyTotalXP  int64
	MostActiveDay  string
	XPBySource     map[string]int64
}

// RankOf returns the user's 1-based position in the guild, ordered by
// level then xp. Users with identical standing share a rank.
func (l *Ledger) RankOf(userID, guildID string) (int, error) {
	rec, err := loadOrDefault(l.db, userID, guildID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	err = l.db.Model(&UserLevel{}).
		Where("guild_id = ? AND (level > ? OR (level = ? AND xp > ?))", guildID, rec.Level, rec.Level, rec.XP).
		Count(&ahead).Error
	if err != nil {
		return 0, fmt.Errorf("counting rank: %w", err)
	}
	return int(ahead) + 1, nil
}

// Leaderboard returns up to limit users ordered by (level desc, xp desc),
// ties broken by insertion order. limit is clamped to MaxLeaderboardSize.
func (l *Ledger) Leaderboard(guildID string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	var recs []UserLevel
	err := l.db.Where("guild_id = ?", guildID).
		Order("level DESC, xp DESC, id ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(recs))
	for _, rec := range recs {
		total, err := sumGrants(l.db, rec.UserID, guildID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			UserID:  rec.UserID,
			Level:   rec.Level,
			XP:      rec.XP,
			TotalXP: total,
		})
	}
	return entries, nil
}

// ActivityStats aggregates the user's grants from the trailing 7 days.
// MostActiveDay is "N/A" when there is no history in the window.
func (l *Ledger) ActivityStats(userID, guildID string) (ActivityStats, error) {
	since := l.now().AddDate(0, 0, -7)
	var grants []XPGrant
	err := l.db.Where("user_id = ? AND guild_id = ? AND created_at >= ?", userID, guildID, since).
		Find(&grants).Error
	if err != nil {
		return ActivityStats{}, fmt.Errorf("querying grant history: %w", err)
	}

	stats := ActivityStats{
		MostActiveDay: "N/A",
		XPBySource:    make(map[string]int64),
	}
	byWeekday := make(map[time.Weekday]int64)
	for _, g := range grants {
		stats.WeeklyTotalXP += g.Amount
		stats.XPBySource[g.Source] += g.Amount
		byWeekday[g.CreatedAt.Weekday()] += g.Amount
	}
	stats.DailyAverageXP = stats.WeeklyTotalXP / 7

	var best int64
	for day, total := range byWeekday {
		if total > best || (total == best && best > 0 && day.String() < stats.MostActiveDay) {
			best = total
			stats.MostActiveDay = day.String()
		}
	}
	return stats, nil
}
