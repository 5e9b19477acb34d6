package cleaner

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

// Logger provides leveled logging. If nil, log calls are no-ops.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// MessageAPI abstracts the Discord message-store operations the cleaner
// performs, for testing.
type MessageAPI interface {
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string) error
	ChannelMessageDelete(channelID, msgID string) error
}

// Task is a persisted cleanup schedule for one channel. LastRun advances
// only after a full purge tick completes.
type Task struct {
	ChannelID       string `gorm:"primaryKey"`
	IntervalSeconds int
	LastRun         time.Time
}

const (
	// MinInterval and MaxInterval bound how often a channel can be purged.
	MinInterval = 30 * time.Second
	MaxInterval = 30 * 24 * time.Hour

	// Discord refuses bulk deletion of messages older than 14 days; keep
	// a margin so messages near the boundary don't fail the whole batch.
	bulkDeleteMaxAge = 14*24*time.Hour - time.Minute

	bulkRounds = 3
	pageSize   = 100

	defaultDeleteDelay = 350 * time.Millisecond
)

// Cleaner maintains one recurring purge timer per configured channel.
type Cleaner struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cancelOnce sync.Once

	mu      sync.Mutex
	tickers map[string]*time.Ticker
	cancels map[string]context.CancelFunc

	db          *gorm.DB
	api         MessageAPI
	log         Logger
	deleteDelay time.Duration
	now         func() time.Time
}

// New creates a Cleaner over db and the given message API.
func New(db *gorm.DB, api MessageAPI) *Cleaner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cleaner{
		ctx:         ctx,
		cancel:      cancel,
		tickers:     make(map[string]*time.Ticker),
		cancels:     make(map[string]context.CancelFunc),
		db:          db,
		api:         api,
		deleteDelay: defaultDeleteDelay,
		now:         time.Now,
	}
}

// SetLogger sets the logger. If nil, logging is a no-op.
func (c *Cleaner) SetLogger(l Logger) {
	c.log = l
}

func (c *Cleaner) logDebug(msg string, keyvals ...interface{}) {
	if c.log != nil {
		c.log.Debug(msg, keyvals...)
	}
}

func (c *Cleaner) logInfo(msg string, keyvals ...interface{}) {
	if c.log != nil {
		c.log.Info(msg, keyvals...)
	}
}

func (c *Cleaner) logWarn(msg string, keyvals ...interface{}) {
	if c.log != nil {
		c.log.Warn(msg, keyvals...)
	}
}

func (c *Cleaner) logError(msg string, keyvals ...interface{}) {
	if c.log != nil {
		c.log.Error(msg, keyvals...)
	}
}

// Init restores all persisted tasks after a restart, arming one timer per
// row. Rows whose channel no longer resolves are dropped.
func (c *Cleaner) Init() error {
	var tasks []Task
	if err := c.db.Find(&tasks).Error; err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	restored := 0
	for _, task := range tasks {
		if _, err := c.api.Channel(task.ChannelID); err != nil {
			c.logWarn("dropping task for unresolvable channel", "channel_id", task.ChannelID, "error", err)
			c.deleteTaskDB(task.ChannelID)
			continue
		}
		c.armTaskLocked(task.ChannelID, time.Duration(task.IntervalSeconds)*time.Second)
		restored++
	}
	c.logInfo("restored cleanup tasks", "count", restored)
	return nil
}

// AddOrUpdateTask persists a schedule for channelID and (re)arms its
// timer. Any existing timer is cancelled first so exactly one timer runs
// per channel. Returns the effective (clamped) interval.
func (c *Cleaner) AddOrUpdateTask(channelID string, interval time.Duration) (time.Duration, error) {
	if interval < MinInterval {
		interval = MinInterval
	} else if interval > MaxInterval {
		interval = MaxInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTaskLocked(channelID)

	task := Task{ChannelID: channelID, IntervalSeconds: int(interval.Seconds())}
	var prev Task
	if err := c.db.First(&prev, "channel_id = ?", channelID).Error; err == nil {
		task.LastRun = prev.LastRun
	}
	if err := c.db.Save(&task).Error; err != nil {
		return interval, err
	}

	c.armTaskLocked(channelID, interval)
	c.logInfo("cleanup task set", "channel_id", channelID, "interval", interval)
	return interval, nil
}

// RemoveTask cancels the channel's timer and deletes its schedule.
func (c *Cleaner) RemoveTask(channelID string) {
	c.mu.Lock()
	c.stopTaskLocked(channelID)
	c.deleteTaskDB(channelID)
	c.mu.Unlock()
}

// Tasks returns all persisted schedules.
func (c *Cleaner) Tasks() ([]Task, error) {
	var tasks []Task
	err := c.db.Find(&tasks).Error
	return tasks, err
}

// Stop cancels every timer and releases resources. Safe to call multiple
// times.
func (c *Cleaner) Stop() {
	c.cancelOnce.Do(c.cancel)
	c.mu.Lock()
	defer c.mu.Unlock()
	for channelID, cancel := range c.cancels {
		cancel()
		delete(c.cancels, channelID)
	}
	for channelID, ticker := range c.tickers {
		ticker.Stop()
		delete(c.tickers, channelID)
	}
}

// armTaskLocked starts the ticker loop for channelID. Caller holds c.mu.
func (c *Cleaner) armTaskLocked(channelID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	taskCtx, taskCancel := context.WithCancel(c.ctx)
	c.tickers[channelID] = ticker
	c.cancels[channelID] = taskCancel

	go func() {
		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				c.runPurge(taskCtx, channelID)
			}
		}
	}()
}

// stopTaskLocked cancels the timer for channelID. Caller holds c.mu.
func (c *Cleaner) stopTaskLocked(channelID string) {
	if cancel, ok := c.cancels[channelID]; ok {
		cancel()
		delete(c.cancels, channelID)
	}
	if ticker, ok := c.tickers[channelID]; ok {
		ticker.Stop()
		delete(c.tickers, channelID)
	}
}

func (c *Cleaner) deleteTaskDB(channelID string) {
	if err := c.db.Delete(&Task{}, "channel_id = ?", channelID).Error; err != nil {
		c.logError("deleting task from database failed", "channel_id", channelID, "error", err)
	}
}

// runPurge executes one purge tick: bulk-delete recent messages, then
// pace through the backlog one delete at a time. LastRun advances only
// when both phases finish; an error aborts the tick and the next one
// retries from scratch.
func (c *Cleaner) runPurge(ctx context.Context, channelID string) {
	if _, err := c.api.Channel(channelID); err != nil {
		// Channel deleted or inaccessible: skip the tick, keep the schedule.
		c.logWarn("channel unresolvable, skipping tick", "channel_id", channelID, "error", err)
		return
	}

	if err := c.purgeRecent(ctx, channelID); err != nil {
		c.logError("bulk-delete phase failed", "channel_id", channelID, "error", err)
		return
	}
	if err := c.purgeBacklog(ctx, channelID); err != nil {
		c.logError("backlog phase failed", "channel_id", channelID, "error", err)
		return
	}

	err := c.db.Model(&Task{}).Where("channel_id = ?", channelID).
		Update("last_run", c.now()).Error
	if err != nil {
		c.logError("recording last run failed", "channel_id", channelID, "error", err)
	}
}

// purgeRecent is phase 1: bulk-delete messages young enough for the bulk
// endpoint, in batches of up to pageSize. Bounded to bulkRounds rounds so
// a busy channel cannot pin the tick forever.
func (c *Cleaner) purgeRecent(ctx context.Context, channelID string) error {
	cutoff := c.now().Add(-bulkDeleteMaxAge)

	for round := 0; round < bulkRounds; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := c.api.ChannelMessages(channelID, pageSize, "", "", "")
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		var young []string
		for _, msg := range messages {
			if msg.Timestamp.After(cutoff) {
				young = append(young, msg.ID)
			}
		}

		switch {
		case len(young) >= 2:
			if err := c.api.ChannelMessagesBulkDelete(channelID, young); err != nil {
				return err
			}
		case len(young) == 1:
			if err := c.deleteOne(channelID, young[0]); err != nil {
				return err
			}
		default:
			// Everything left is too old for bulk deletion.
			return nil
		}
		c.logDebug("bulk-deleted batch", "channel_id", channelID, "count", len(young))

		if len(messages) < pageSize {
			return nil
		}
	}
	return nil
}

// purgeBacklog is phase 2: paginate backward from the newest remaining
// message, deleting one at a time with a fixed delay to stay under the
// per-route rate limit.
func (c *Cleaner) purgeBacklog(ctx context.Context, channelID string) error {
	before := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := c.api.ChannelMessages(channelID, pageSize, before, "", "")
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		for _, msg := range messages {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := c.deleteOne(channelID, msg.ID); err != nil {
				return err
			}
			if c.deleteDelay > 0 {
				time.Sleep(c.deleteDelay)
			}
		}
		before = messages[len(messages)-1].ID
	}
}

// deleteOne deletes a single message, retrying once after the advertised
// delay on a rate-limit response. Already-deleted messages are a no-op.
func (c *Cleaner) deleteOne(channelID, msgID string) error {
	err := c.api.ChannelMessageDelete(channelID, msgID)
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		time.Sleep(rl.RetryAfter)
		err = c.api.ChannelMessageDelete(channelID, msgID)
	}
	if isUnknownMessage(err) {
		return nil
	}
	return err
}

// isUnknownMessage reports whether err is Discord telling us the message
// is already gone.
func isUnknownMessage(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
