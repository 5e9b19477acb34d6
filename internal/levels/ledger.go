package levels

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidAmount is returned for grants with a non-positive amount.
var ErrInvalidAmount = errors.New("xp amount must be positive")

// ErrInvalidSource is returned for grants with an unknown source tag.
var ErrInvalidSource = errors.New("unknown xp source")

// Ledger owns the user-level and grant-history tables. All writes to them
// go through it; a grant's read-modify-write on (xp, level) is serialized
// per user so near-simultaneous grants (message + voice tick) cannot lose
// updates.
type Ledger struct {
	db  *gorm.DB
	mu  [64]sync.Mutex
	now func() time.Time
}

// NewLedger creates a Ledger backed by db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// GrantResult describes the user's standing after a grant.
type GrantResult struct {
	XP        int64
	Level     int
	TotalXP   int64
	LeveledUp bool
	Milestone bool
}

// UserStanding is the read view of a user's progress.
type UserStanding struct {
	XP             int64
	Level          int
	TotalXP        int64
	XPForNextLevel int64
	Progress       int
	Rank           int
}

func userStripe(userID, guildID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(guildID))
	return h.Sum64() % 64
}

// Grant appends an XPGrant record and credits amount to the user's current
// level progress, carrying levels while the threshold is met. Levels clamp
// at MaxLevel with xp forced to 0 (saturation, not an error). Idempotency
// is not guaranteed; callers must deliver at most one grant per logical
// event.
func (l *Ledger) Grant(userID, guildID string, amount int64, source string) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, ErrInvalidAmount
	}
	if !validSources[source] {
		return GrantResult{}, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	stripe := &l.mu[userStripe(userID, guildID)]
	stripe.Lock()
	defer stripe.Unlock()

	var res GrantResult
	err := l.db.Transaction(func(tx *gorm.DB) error {
		grant := XPGrant{
			UserID:    userID,
			GuildID:   guildID,
			Amount:    amount,
			Source:    source,
			CreatedAt: l.now(),
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("recording grant: %w", err)
		}

		rec, err := loadOrDefault(tx, userID, guildID)
		if err != nil {
			return err
		}

		rec.XP += amount
		for rec.Level < MaxLevel && rec.XP >= XPForNextLevel(rec.Level) {
			rec.XP -= XPForNextLevel(rec.Level)
			rec.Level++
			res.LeveledUp = true
			if IsMilestone(rec.Level) {
				res.Milestone = true
			}
		}
		if rec.Level >= MaxLevel {
			rec.Level = MaxLevel
			rec.XP = 0
		}

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("saving user level: %w", err)
		}

		total, err := sumGrants(tx, userID, guildID)
		if err != nil {
			return err
		}
		res.XP = rec.XP
		res.Level = rec.Level
		res.TotalXP = total
		return nil
	})
	if err != nil {
		return GrantResult{}, err
	}
	return res, nil
}

// Read returns the user's standing. Users without any grant history read
// as a fresh level-1 record.
func (l *Ledger) Read(userID, guildID string) (UserStanding, error) {
	rec, err := loadOrDefault(l.db, userID, guildID)
	if err != nil {
		return UserStanding{}, err
	}
	total, err := sumGrants(l.db, userID, guildID)
	if err != nil {
		return UserStanding{}, err
	}
	rank, err := l.RankOf(userID, guildID)
	if err != nil {
		return UserStanding{}, err
	}
	return UserStanding{
		XP:             rec.XP,
		Level:          rec.Level,
		TotalXP:        total,
		XPForNextLevel: XPForNextLevel(rec.Level),
		Progress:       ProgressPercent(rec.XP, rec.Level),
		Rank:           rank,
	}, nil
}

// Reset returns the user to level 1 with no progress. Grant history is
// kept. Calling it again is a no-op.
func (l *Ledger) Reset(userID, guildID string) error {
	stripe := &l.mu[userStripe(userID, guildID)]
	stripe.Lock()
	defer stripe.Unlock()

	rec, err := loadOrDefault(l.db, userID, guildID)
	if err != nil {
		return err
	}
	rec.XP = 0
	rec.Level = 1
	if err := l.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("resetting user level: %w", err)
	}
	return nil
}

// AddLevelsDirect is the admin override: it shifts the level by delta,
// clamped to [1, MaxLevel], without touching xp or emitting a grant
// record. Deliberately bypasses the curve.
func (l *Ledger) AddLevelsDirect(userID, guildID string, delta int) error {
	if delta == 0 {
		return errors.New("level delta must be non-zero")
	}

	stripe := &l.mu[userStripe(userID, guildID)]
	stripe.Lock()
	defer stripe.Unlock()

	rec, err := loadOrDefault(l.db, userID, guildID)
	if err != nil {
		return err
	}
	rec.Level += delta
	if rec.Level < 1 {
		rec.Level = 1
	}
	if rec.Level >= MaxLevel {
		rec.Level = MaxLevel
		rec.XP = 0
	}
	if err := l.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("adjusting user level: %w", err)
	}
	return nil
}

func loadOrDefault(tx *gorm.DB, userID, guildID string) (UserLevel, error) {
	var rec UserLevel
	err := tx.Where("user_id = ? AND guild_id = ?", userID, guildID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserLevel{UserID: userID, GuildID: guildID, XP: 0, Level: 1}, nil
	}
	if err != nil {
		return UserLevel{}, fmt.Errorf("loading user level: %w", err)
	}
	return rec, nil
}

func sumGrants(tx *gorm.DB, userID, guildID string) (int64, error) {
	var total int64
	err := tx.Model(&XPGrant{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing grants: %w", err)
	}
	return total, nil
}
