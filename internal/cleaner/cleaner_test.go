package cleaner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arkov/levelbot/internal/testutil"
	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

// fakeStore simulates a channel's message store: fetches honor the
// before-cursor and deletions actually remove messages, so purge loops
// terminate the way they would against the real API.
type fakeStore struct {
	mu          sync.Mutex
	msgs        []*discordgo.Message // newest first, IDs zero-padded descending
	channelErr  error
	fetchErr    error
	bulkErr     error
	deleteErrs  map[string][]error // per-message queue of errors to return first
	fetchCount  int
	bulkCalls   [][]string
	deleteCalls []string
}

func (f *fakeStore) Channel(id string) (*discordgo.Channel, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeGuildText}, nil
}

func (f *fakeStore) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCount++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var page []*discordgo.Message
	for _, m := range f.msgs {
		if beforeID != "" && m.ID >= beforeID {
			continue
		}
		page = append(page, m)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeStore) ChannelMessagesBulkDelete(channelID string, messages []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulkCalls = append(f.bulkCalls, messages)
	f.removeLocked(messages)
	return nil
}

func (f *fakeStore) ChannelMessageDelete(channelID, msgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, msgID)
	if queue := f.deleteErrs[msgID]; len(queue) > 0 {
		err := queue[0]
		f.deleteErrs[msgID] = queue[1:]
		return err
	}
	f.removeLocked([]string{msgID})
	return nil
}

func (f *fakeStore) removeLocked(ids []string) {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := f.msgs[:0]
	for _, m := range f.msgs {
		if !gone[m.ID] {
			kept = append(kept, m)
		}
	}
	f.msgs = kept
}

// seedMessages fills the store with count messages at the given age,
// newest first, continuing the store's descending ID sequence.
func (f *fakeStore) seedMessages(count int, age time.Duration) {
	ts := time.Now().Add(-age)
	next := 99999 - len(f.msgs)
	for i := 0; i < count; i++ {
		f.msgs = append(f.msgs, &discordgo.Message{
			ID:        fmt.Sprintf("%05d", next-i),
			Timestamp: ts,
		})
	}
}

func newTestCleaner(t *testing.T, store *fakeStore) (*Cleaner, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t, &Task{})
	c := New(db, store)
	c.deleteDelay = 0
	return c, db
}

func lastRunOf(t *testing.T, db *gorm.DB, channelID string) time.Time {
	t.Helper()
	var task Task
	if err := db.First(&task, "channel_id = ?", channelID).Error; err != nil {
		t.Fatalf("loading task: %v", err)
	}
	return task.LastRun
}

func TestRunPurgeTwoPhases(t *testing.T) {
	store := &fakeStore{}
	store.seedMessages(150, time.Hour)       // bulk-eligible
	store.seedMessages(120, 20*24*time.Hour) // too old for bulk

	c, db := newTestCleaner(t, store)
	if err := db.Create(&Task{ChannelID: "chan", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}

	c.runPurge(context.Background(), "chan")

	if len(store.msgs) != 0 {
		t.Errorf("expected empty channel, %d messages remain", len(store.msgs))
	}
	if len(store.bulkCalls) != 2 {
		t.Errorf("expected 2 bulk-delete calls, got %d", len(store.bulkCalls))
	} else {
		if len(store.bulkCalls[0]) != 100 || len(store.bulkCalls[1]) != 50 {
			t.Errorf("expected bulk batches of 100 and 50, got %d and %d",
				len(store.bulkCalls[0]), len(store.bulkCalls[1]))
		}
	}
	if len(store.deleteCalls) != 120 {
		t.Errorf("expected 120 single deletes, got %d", len(store.deleteCalls))
	}
	if lastRunOf(t, db, "chan").IsZero() {
		t.Error("LastRun not advanced after successful purge")
	}
}

func TestRunPurgeEmptyChannelAdvancesLastRun(t *testing.T) {
	store := &fakeStore{}
	c, db := newTestCleaner(t, store)
	if err := db.Create(&Task{ChannelID: "chan", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}

	c.runPurge(context.Background(), "chan")

	if lastRunOf(t, db, "chan").IsZero() {
		t.Error("LastRun should advance on an already-empty channel")
	}
}

func TestRunPurgeFetchErrorLeavesLastRun(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("boom")}
	c, db := newTestCleaner(t, store)
	if err := db.Create(&Task{ChannelID: "chan", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}

	c.runPurge(context.Background(), "chan")

	if !lastRunOf(t, db, "chan").IsZero() {
		t.Error("LastRun must not advance when the tick aborts")
	}
}

func TestRunPurgeUnresolvableChannelSkipsTick(t *testing.T) {
	store := &fakeStore{channelErr: errors.New("missing access")}
	store.seedMessages(5, time.Hour)
	c, db := newTestCleaner(t, store)
	if err := db.Create(&Task{ChannelID: "chan", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}

	c.runPurge(context.Background(), "chan")

	if store.fetchCount != 0 {
		t.Errorf("expected no fetches for unresolvable channel, got %d", store.fetchCount)
	}
	var count int64
	db.Model(&Task{}).Count(&count)
	if count != 1 {
		t.Errorf("schedule must survive an unresolvable tick, %d rows remain", count)
	}
}

func TestRunPurgeCancelledContext(t *testing.T) {
	store := &fakeStore{}
	store.seedMessages(10, time.Hour)
	c, db := newTestCleaner(t, store)
	if err := db.Create(&Task{ChannelID: "chan", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.runPurge(ctx, "chan")

	if store.fetchCount != 0 {
		t.Errorf("cancelled tick should not fetch, got %d fetches", store.fetchCount)
	}
	if !lastRunOf(t, db, "chan").IsZero() {
		t.Error("LastRun must not advance on a cancelled tick")
	}
}

func TestRunPurgeSwallowsAlreadyDeleted(t *testing.T) {
	store := &fakeStore{deleteErrs: map[string][]error{}}
	store.seedMessages(3, 20*24*time.Hour)
	// First message reports unknown-message; something else deleted it.
	store.deleteErrs[store.msgs[0].ID] = []error{
		&discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage}},
	}

	c, db := newTestCleaner(t, store)
	if err := db.Create(&Task{ChannelID: "chan", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}

	c.runPurge(context.Background(), "chan")

	if lastRunOf(t, db, "chan").IsZero() {
		t.Error("unknown-message errors must not abort the tick")
	}
}

func TestDeleteOneRetriesAfterRateLimit(t *testing.T) {
	store := &fakeStore{deleteErrs: map[string][]error{}}
	store.seedMessages(1, 20*24*time.Hour)
	msgID := store.msgs[0].ID
	store.deleteErrs[msgID] = []error{
		&discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
			TooManyRequests: &discordgo.TooManyRequests{RetryAfter: time.Millisecond},
		}},
	}

	c, _ := newTestCleaner(t, store)
	if err := c.deleteOne("chan", msgID); err != nil {
		t.Fatalf("deleteOne after rate limit: %v", err)
	}
	if len(store.deleteCalls) != 2 {
		t.Errorf("expected retry after rate limit, got %d delete calls", len(store.deleteCalls))
	}
	if len(store.msgs) != 0 {
		t.Error("message should be deleted after retry")
	}
}

func TestAddOrUpdateTaskReplacesTimer(t *testing.T) {
	store := &fakeStore{}
	c, db := newTestCleaner(t, store)
	defer c.Stop()

	if _, err := c.AddOrUpdateTask("chan", time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddOrUpdateTask("chan", 2*time.Minute); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	active := len(c.tickers)
	c.mu.Unlock()
	if active != 1 {
		t.Errorf("expected exactly one active timer, got %d", active)
	}

	var count int64
	db.Model(&Task{}).Count(&count)
	if count != 1 {
		t.Errorf("expected one persisted task, got %d", count)
	}
	var task Task
	if err := db.First(&task, "channel_id = ?", "chan").Error; err != nil {
		t.Fatal(err)
	}
	if task.IntervalSeconds != 120 {
		t.Errorf("expected interval 120s, got %ds", task.IntervalSeconds)
	}
}

func TestAddOrUpdateTaskClampsInterval(t *testing.T) {
	store := &fakeStore{}
	c, _ := newTestCleaner(t, store)
	defer c.Stop()

	effective, err := c.AddOrUpdateTask("chan", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if effective != MinInterval {
		t.Errorf("expected interval clamped to %v, got %v", MinInterval, effective)
	}
}

func TestRemoveTask(t *testing.T) {
	store := &fakeStore{}
	c, db := newTestCleaner(t, store)
	defer c.Stop()

	if _, err := c.AddOrUpdateTask("chan", time.Minute); err != nil {
		t.Fatal(err)
	}
	c.RemoveTask("chan")

	c.mu.Lock()
	active := len(c.tickers)
	c.mu.Unlock()
	if active != 0 {
		t.Errorf("expected no active timers, got %d", active)
	}
	var count int64
	db.Model(&Task{}).Count(&count)
	if count != 0 {
		t.Errorf("expected task row deleted, %d remain", count)
	}
}

func TestInitRestoresTasks(t *testing.T) {
	store := &fakeStore{}
	c, db := newTestCleaner(t, store)
	defer c.Stop()

	for _, ch := range []string{"a", "b"} {
		if err := db.Create(&Task{ChannelID: ch, IntervalSeconds: 60}).Error; err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	active := len(c.tickers)
	c.mu.Unlock()
	if active != 2 {
		t.Errorf("expected 2 restored timers, got %d", active)
	}
}

func TestInitDropsUnresolvableChannels(t *testing.T) {
	store := &fakeStore{channelErr: errors.New("unknown channel")}
	c, db := newTestCleaner(t, store)
	defer c.Stop()

	if err := db.Create(&Task{ChannelID: "gone", IntervalSeconds: 60}).Error; err != nil {
		t.Fatal(err)
	}
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&Task{}).Count(&count)
	if count != 0 {
		t.Errorf("expected unresolvable task dropped, %d rows remain", count)
	}
}

func TestStopIdempotent(t *testing.T) {
	store := &fakeStore{}
	c, _ := newTestCleaner(t, store)
	if _, err := c.AddOrUpdateTask("chan", time.Minute); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	c.Stop() // second call must not panic
}
