package levels

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Logger provides leveled logging. If nil, log calls are no-ops.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// Config holds the accrual tunables. Zero values are replaced by
// DefaultConfig at engine construction.
type Config struct {
	MessageXP         int64
	ReplyBonus        int64
	MinMessageLength  int
	MessageCooldown   time.Duration
	MaxDailyMessageXP int64

	VoiceXPPerMinute int64
	MinVoiceSeconds  int
	MaxDailyVoiceXP  int64

	LinkCooldown time.Duration
	DedupWindow  time.Duration

	// EventDays marks special-event dates ("2006-01-02") that double XP.
	EventDays map[string]bool
	// ChannelBoosts maps channel IDs to a multiplier in [1.2, 1.5].
	ChannelBoosts map[string]float64
}

// DefaultConfig returns the standard accrual tuning.
func DefaultConfig() Config {
	return Config{
		MessageXP:         15,
		ReplyBonus:        5,
		MinMessageLength:  5,
		MessageCooldown:   60 * time.Second,
		MaxDailyMessageXP: 500,
		VoiceXPPerMinute:  10,
		MinVoiceSeconds:   60,
		MaxDailyVoiceXP:   600,
		LinkCooldown:      10 * time.Minute,
		DedupWindow:       10 * time.Minute,
	}
}

// Outcome classifies what the engine did with an event.
type Outcome int

const (
	// Credited means XP was granted.
	Credited Outcome = iota
	// Rejected means the event never qualifies (bot author, too short,
	// command prefix).
	Rejected
	// Throttled means the event qualifies but an anti-abuse gate dropped
	// it (cooldown, cap, duplicate). Not an error.
	Throttled
)

// Accrual is the typed result of handling an event. Result is only valid
// when Outcome is Credited.
type Accrual struct {
	Outcome Outcome
	Reason  string
	Amount  int64
	Result  GrantResult
}

// MessageEvent carries the fields of an inbound message the engine cares
// about.
type MessageEvent struct {
	MessageID string
	UserID    string
	GuildID   string
	ChannelID string
	Content   string
	Bot       bool
	Reply     bool
	Booster   bool
}

// LevelUp is passed to the level-up callback after a grant crosses a
// level boundary. ChannelID is empty for voice grants.
type LevelUp struct {
	UserID    string
	GuildID   string
	ChannelID string
	Level     int
	Milestone bool
}

// userState is transient per-user throttle bookkeeping. It only gates
// crediting; losing it on restart does not corrupt the ledger.
type userState struct {
	day            string
	lastMessageAt  time.Time
	messageXPToday int64
	voiceXPToday   int64

	inVoice        bool
	voiceChannelID string
	voiceJoinedAt  time.Time
	voiceCredited  int // whole minutes already credited this session
	voiceBooster   bool

	streakDays    int
	lastActiveDay string
	firstOfDay    bool // true until the first credited action of the day

	seenMessages map[uint64]time.Time
	seenLinks    map[string]time.Time
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

var commandPrefixes = []string{"!", "/", "."}

// Engine applies anti-abuse throttling and contextual multipliers before
// crediting the ledger. All throttle state lives on the instance so
// isolated engines (tests, shards) do not collide.
type Engine struct {
	ledger    *Ledger
	cfg       Config
	log       Logger
	now       func() time.Time
	onLevelUp func(LevelUp)

	mu    sync.Mutex
	users map[string]*userState
}

// NewEngine creates an accrual engine over ledger. cfg fields left at
// zero fall back to DefaultConfig values.
func NewEngine(ledger *Ledger, cfg Config, log Logger) *Engine {
	def := DefaultConfig()
	if cfg.MessageXP <= 0 {
		cfg.MessageXP = def.MessageXP
	}
	if cfg.ReplyBonus <= 0 {
		cfg.ReplyBonus = def.ReplyBonus
	}
	if cfg.MinMessageLength <= 0 {
		cfg.MinMessageLength = def.MinMessageLength
	}
	if cfg.MessageCooldown <= 0 {
		cfg.MessageCooldown = def.MessageCooldown
	}
	if cfg.MaxDailyMessageXP <= 0 {
		cfg.MaxDailyMessageXP = def.MaxDailyMessageXP
	}
	if cfg.VoiceXPPerMinute <= 0 {
		cfg.VoiceXPPerMinute = def.VoiceXPPerMinute
	}
	if cfg.MinVoiceSeconds <= 0 {
		cfg.MinVoiceSeconds = def.MinVoiceSeconds
	}
	if cfg.MaxDailyVoiceXP <= 0 {
		cfg.MaxDailyVoiceXP = def.MaxDailyVoiceXP
	}
	if cfg.LinkCooldown <= 0 {
		cfg.LinkCooldown = def.LinkCooldown
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = def.DedupWindow
	}
	return &Engine{
		ledger: ledger,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		users:  make(map[string]*userState),
	}
}

// SetLevelUpFunc registers the callback invoked after a grant levels the
// user up. Optional.
func (e *Engine) SetLevelUpFunc(fn func(LevelUp)) {
	e.onLevelUp = fn
}

// Run drives the per-minute voice sweep until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tickVoice(e.now())
		}
	}
}

func (e *Engine) logDebug(msg string, keyvals ...interface{}) {
	if e.log != nil {
		e.log.Debug(msg, keyvals...)
	}
}

func (e *Engine) logWarn(msg string, keyvals ...interface{}) {
	if e.log != nil {
		e.log.Warn(msg, keyvals...)
	}
}

func (e *Engine) state(userID, guildID string) *userState {
	key := userID + "\x00" + guildID
	st, ok := e.users[key]
	if !ok {
		st = &userState{
			seenMessages: make(map[uint64]time.Time),
			seenLinks:    make(map[string]time.Time),
		}
		e.users[key] = st
	}
	return st
}

// rollDay resets daily counters when t lands on a new calendar day and
// prunes expired dedup entries.
func (e *Engine) rollDay(st *userState, t time.Time) {
	day := t.Format("2006-01-02")
	if st.day == day {
		return
	}
	st.day = day
	st.messageXPToday = 0
	st.voiceXPToday = 0
	st.firstOfDay = true
	for h, seen := range st.seenMessages {
		if t.Sub(seen) > e.cfg.DedupWindow {
			delete(st.seenMessages, h)
		}
	}
	for link, seen := range st.seenLinks {
		if t.Sub(seen) > e.cfg.LinkCooldown {
			delete(st.seenLinks, link)
		}
	}
}

// prospectiveStreak returns the streak length day would have if an action
// is credited on it. State is only committed after the grant succeeds.
func (st *userState) prospectiveStreak(day string) int {
	if st.lastActiveDay == day {
		return st.streakDays
	}
	if st.lastActiveDay == yesterdayOf(day) {
		return st.streakDays + 1
	}
	return 1
}

func (st *userState) setActive(day string, streak int) {
	st.streakDays = streak
	st.lastActiveDay = day
}

func yesterdayOf(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// multiplier composes the contextual multipliers for a grant at t.
// Multipliers compose multiplicatively; the final amount is floored.
func (e *Engine) multiplier(st *userState, t time.Time, channelID string, booster bool, streak int) float64 {
	mult := 1.0
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		mult *= 1.5
	}
	if e.cfg.EventDays[t.Format("2006-01-02")] {
		mult *= 2.0
	}
	if streak > 1 {
		bonus := 0.10 * float64(streak-1)
		if bonus > 0.50 {
			bonus = 0.50
		}
		mult *= 1 + bonus
	}
	if st.firstOfDay {
		mult *= 2.0
	}
	if booster {
		mult *= 1.2
	}
	if boost, ok := e.cfg.ChannelBoosts[channelID]; ok && boost > 1 {
		mult *= boost
	}
	return mult
}

func messageHash(messageID, userID, guildID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(messageID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(guildID))
	return h.Sum64()
}

// HandleMessage runs the message-source policy and credits the ledger
// when the event passes every gate. Throttled and rejected events return
// a typed Accrual, not an error; an error means the store failed and the
// event is lost.
func (e *Engine) HandleMessage(ev MessageEvent) (Accrual, error) {
	if ev.Bot {
		return Accrual{Outcome: Rejected, Reason: "bot author"}, nil
	}
	content := strings.TrimSpace(ev.Content)
	if len(content) < e.cfg.MinMessageLength {
		return Accrual{Outcome: Rejected, Reason: "message too short"}, nil
	}
	for _, p := range commandPrefixes {
		if strings.HasPrefix(content, p) {
			return Accrual{Outcome: Rejected, Reason: "command prefix"}, nil
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.now()
	st := e.state(ev.UserID, ev.GuildID)
	e.rollDay(st, t)

	// Upstream delivery is at-least-once; the same message may arrive twice.
	hash := messageHash(ev.MessageID, ev.UserID, ev.GuildID)
	if seen, ok := st.seenMessages[hash]; ok && t.Sub(seen) <= e.cfg.DedupWindow {
		return Accrual{Outcome: Throttled, Reason: "duplicate event"}, nil
	}

	links := linkPattern.FindAllString(content, -1)
	for _, link := range links {
		if seen, ok := st.seenLinks[link]; ok && t.Sub(seen) < e.cfg.LinkCooldown {
			return Accrual{Outcome: Throttled, Reason: "repeated link"}, nil
		}
	}

	if !st.lastMessageAt.IsZero() && t.Sub(st.lastMessageAt) < e.cfg.MessageCooldown {
		return Accrual{Outcome: Throttled, Reason: "message cooldown"}, nil
	}
	if st.messageXPToday >= e.cfg.MaxDailyMessageXP {
		return Accrual{Outcome: Throttled, Reason: "daily message cap"}, nil
	}

	base := e.cfg.MessageXP
	if ev.Reply {
		base += e.cfg.ReplyBonus
	}
	streak := st.prospectiveStreak(st.day)
	amount := int64(math.Floor(float64(base) * e.multiplier(st, t, ev.ChannelID, ev.Booster, streak)))

	res, err := e.ledger.Grant(ev.UserID, ev.GuildID, amount, SourceMessage)
	if err != nil {
		// State untouched: a later retry of the same event may still credit.
		return Accrual{}, err
	}

	st.lastMessageAt = t
	st.messageXPToday += amount
	st.firstOfDay = false
	st.setActive(st.day, streak)
	st.seenMessages[hash] = t
	for _, link := range links {
		st.seenLinks[link] = t
	}

	e.logDebug("credited message xp",
		"user_id", ev.UserID, "guild_id", ev.GuildID, "amount", amount, "level", res.Level)
	e.fireLevelUp(ev.UserID, ev.GuildID, ev.ChannelID, res)

	return Accrual{Outcome: Credited, Amount: amount, Result: res}, nil
}

// VoiceJoin records the start of a voice session.
func (e *Engine) VoiceJoin(userID, guildID, channelID string, booster bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.now()
	st := e.state(userID, guildID)
	e.rollDay(st, t)
	st.inVoice = true
	st.voiceChannelID = channelID
	st.voiceJoinedAt = t
	st.voiceCredited = 0
	st.voiceBooster = booster
}

// VoiceLeave closes the session, crediting any elapsed minutes not yet
// swept. Sessions shorter than MinVoiceSeconds credit nothing.
func (e *Engine) VoiceLeave(userID, guildID string) (Accrual, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(userID, guildID)
	if !st.inVoice {
		return Accrual{Outcome: Rejected, Reason: "no active voice session"}, nil
	}
	acc, err := e.creditVoice(userID, guildID, st, e.now())
	st.inVoice = false
	st.voiceChannelID = ""
	st.voiceCredited = 0
	return acc, err
}

// tickVoice sweeps all active voice sessions, crediting elapsed minutes.
// Driven by Run's minute ticker; called directly in tests.
func (e *Engine) tickVoice(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, st := range e.users {
		if !st.inVoice {
			continue
		}
		sep := strings.IndexByte(key, 0)
		userID, guildID := key[:sep], key[sep+1:]
		if _, err := e.creditVoice(userID, guildID, st, now); err != nil {
			e.logWarn("voice sweep grant failed", "user_id", userID, "guild_id", guildID, "error", err)
		}
	}
}

// creditVoice grants XP for elapsed uncredited minutes of st's session.
// Caller holds e.mu.
func (e *Engine) creditVoice(userID, guildID string, st *userState, now time.Time) (Accrual, error) {
	e.rollDay(st, now)

	elapsed := now.Sub(st.voiceJoinedAt)
	if elapsed < time.Duration(e.cfg.MinVoiceSeconds)*time.Second {
		return Accrual{Outcome: Throttled, Reason: "session too short"}, nil
	}
	minutes := int(elapsed / time.Minute)
	pending := minutes - st.voiceCredited
	if pending <= 0 {
		return Accrual{Outcome: Throttled, Reason: "no uncredited minutes"}, nil
	}
	if st.voiceXPToday >= e.cfg.MaxDailyVoiceXP {
		return Accrual{Outcome: Throttled, Reason: "daily voice cap"}, nil
	}

	base := int64(pending) * e.cfg.VoiceXPPerMinute
	streak := st.prospectiveStreak(st.day)
	amount := int64(math.Floor(float64(base) * e.multiplier(st, now, "", st.voiceBooster, streak)))
	if remaining := e.cfg.MaxDailyVoiceXP - st.voiceXPToday; amount > remaining {
		amount = remaining
	}

	res, err := e.ledger.Grant(userID, guildID, amount, SourceVoice)
	if err != nil {
		return Accrual{}, err
	}

	st.voiceCredited = minutes
	st.voiceXPToday += amount
	st.firstOfDay = false
	st.setActive(st.day, streak)

	e.logDebug("credited voice xp",
		"user_id", userID, "guild_id", guildID, "amount", amount, "minutes", pending)
	e.fireLevelUp(userID, guildID, "", res)

	return Accrual{Outcome: Credited, Amount: amount, Result: res}, nil
}

func (e *Engine) fireLevelUp(userID, guildID, channelID string, res GrantResult) {
	if !res.LeveledUp || e.onLevelUp == nil {
		return
	}
	// Callbacks do I/O (announcements); run them off the engine lock.
	go e.onLevelUp(LevelUp{
		UserID:    userID,
		GuildID:   guildID,
		ChannelID: channelID,
		Level:     res.Level,
		Milestone: res.Milestone,
	})
}
