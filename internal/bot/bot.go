package bot

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arkov/levelbot/internal/cleaner"
	"github.com/arkov/levelbot/internal/levels"
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

// Bot wires Discord gateway events to the leveling engine and the channel
// cleaner, and serves mention commands.
type Bot struct {
	db      *gorm.DB
	session *discordgo.Session
	log     Logger

	ledger  *levels.Ledger
	engine  *levels.Engine
	cleaner *cleaner.Cleaner

	permErrorMu      sync.Mutex
	permErrorLastLog map[string]time.Time // channelID -> last time we logged permission error
}

// UserPermission grants a user the right to manage leveling and cleanup tasks.
type UserPermission struct {
	ID        uint `gorm:"primaryKey"`
	UserID    string
	GuildID   string
	CanManage bool
}

// RolePermission grants a role the right to manage leveling and cleanup tasks.
type RolePermission struct {
	ID        uint `gorm:"primaryKey"`
	RoleID    string
	GuildID   string
	CanManage bool
}

// NewBot creates a Bot over the shared database and engines. The engine's
// level-up callback is pointed at the bot's announcer.
func NewBot(db *gorm.DB, ledger *levels.Ledger, engine *levels.Engine, cln *cleaner.Cleaner) *Bot {
	b := &Bot{
		db:               db,
		ledger:           ledger,
		engine:           engine,
		cleaner:          cln,
		permErrorLastLog: make(map[string]time.Time),
	}
	engine.SetLevelUpFunc(b.announceLevelUp)
	return b
}

// SetSession sets the Discord session used for replies and lookups.
func (b *Bot) SetSession(s *discordgo.Session) {
	b.session = s
}

// SetLogger sets the logger. If nil, logging is a no-op.
func (b *Bot) SetLogger(l Logger) {
	b.log = l
}

func (b *Bot) logDebug(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Debug(msg, keyvals...)
	}
}

func (b *Bot) logInfo(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Info(msg, keyvals...)
	}
}

func (b *Bot) logWarn(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Warn(msg, keyvals...)
	}
}

func (b *Bot) logError(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Error(msg, keyvals...)
	}
}

const permErrorBackoff = 5 * time.Minute

// logPermissionErrorOnce logs a permission-denied warning at most once per
// channel per permErrorBackoff.
func (b *Bot) logPermissionErrorOnce(channelID, guildID, userID string) {
	if b.log == nil {
		return
	}
	b.permErrorMu.Lock()
	last := b.permErrorLastLog[channelID]
	now := time.Now()
	if now.Sub(last) < permErrorBackoff {
		b.permErrorMu.Unlock()
		return
	}
	b.permErrorLastLog[channelID] = now
	b.permErrorMu.Unlock()
	b.log.Warn("permission denied", "channel_id", channelID, "guild_id", guildID, "user_id", userID)
}

// sendChannelMessage sends a message to a channel and logs a warning on failure.
// Uses AllowedMentions with empty Parse to prevent @everyone/@here abuse from user-supplied text.
func (b *Bot) sendChannelMessage(s *discordgo.Session, channelID, content string) {
	msg := &discordgo.MessageSend{
		Content: content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
	if _, err := s.ChannelMessageSendComplex(channelID, msg); err != nil {
		b.logWarn("failed to send message", "channel_id", channelID, "error", err)
	}
}

// announceLevelUp posts the level-up notice in the channel where the
// activity happened. Voice grants carry no channel and stay silent.
func (b *Bot) announceLevelUp(up levels.LevelUp) {
	if b.session == nil || up.ChannelID == "" {
		return
	}
	content := fmt.Sprintf("<@%s> reached level **%d**!", up.UserID, up.Level)
	if up.Milestone {
		content = fmt.Sprintf("🎉 Milestone! <@%s> reached level **%d**!", up.UserID, up.Level)
	}
	msg := &discordgo.MessageSend{
		Content: content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}
	if _, err := b.session.ChannelMessageSendComplex(up.ChannelID, msg); err != nil {
		b.logWarn("failed to announce level-up", "channel_id", up.ChannelID, "user_id", up.UserID, "error", err)
	}
}

// Ready handles the Discord ready event.
func (b *Bot) Ready(s *discordgo.Session, event *discordgo.Ready) {
	b.logInfo("bot ready", "username", s.State.User.Username)
	if err := b.cleaner.Init(); err != nil {
		b.logError("restoring cleanup tasks failed", "error", err)
	}
}

// isBotMentionPrefix returns true if content (after trimming leading/trailing space)
// starts with the bot's mention. Discord format is <@USER_ID> or <@!USER_ID>.
func isBotMentionPrefix(content, botID string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "<@"+botID+">") || strings.HasPrefix(trimmed, "<@!"+botID+">")
}

// stripBotMentionPrefix removes the bot mention prefix from content and returns the rest.
func stripBotMentionPrefix(content, botID string) string {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range []string{"<@!" + botID + ">", "<@" + botID + ">"} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}

var userMentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// parseUserArg accepts a raw user ID or a <@id>/<@!id> mention.
func parseUserArg(arg string) string {
	if m := userMentionPattern.FindStringSubmatch(arg); m != nil {
		return m[1]
	}
	return arg
}

// MessageCreate handles incoming Discord messages: mention commands are
// dispatched, everything else feeds the accrual engine.
func (b *Bot) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}

	if isBotMentionPrefix(m.Content, s.State.User.ID) {
		b.handleCommand(s, m)
		return
	}

	ev := levels.MessageEvent{
		MessageID: m.ID,
		UserID:    m.Author.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Bot:       m.Author.Bot,
		Reply:     m.MessageReference != nil,
		Booster:   m.Member != nil && m.Member.PremiumSince != nil,
	}
	acc, err := b.engine.HandleMessage(ev)
	if err != nil {
		// XP is non-critical: log and drop the event.
		b.logError("crediting message xp failed", "user_id", m.Author.ID, "guild_id", m.GuildID, "error", err)
		return
	}
	if acc.Outcome == levels.Throttled {
		b.logDebug("message xp throttled", "user_id", m.Author.ID, "reason", acc.Reason)
	}
}

// VoiceStateUpdate feeds voice joins and leaves to the accrual engine.
func (b *Bot) VoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID == "" || v.GuildID == "" {
		return
	}
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}

	if v.ChannelID == "" {
		if _, err := b.engine.VoiceLeave(v.UserID, v.GuildID); err != nil {
			b.logError("crediting voice xp failed", "user_id", v.UserID, "guild_id", v.GuildID, "error", err)
		}
		return
	}
	// Channel-to-channel moves keep the running session.
	if v.BeforeUpdate == nil || v.BeforeUpdate.ChannelID == "" {
		booster := v.Member != nil && v.Member.PremiumSince != nil
		b.engine.VoiceJoin(v.UserID, v.GuildID, v.ChannelID, booster)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	rest := stripBotMentionPrefix(m.Content, s.State.User.ID)
	args := strings.Fields(rest)
	if len(args) < 1 {
		b.sendChannelMessage(s, m.ChannelID, "No command. Type @bot help for available commands.")
		return
	}

	command := strings.ToLower(args[0])

	// Read-only commands are open to everyone.
	switch command {
	case "help":
		b.sendHelp(s, m.ChannelID)
		return
	case "rank":
		target := m.Author.ID
		if len(args) > 1 {
			target = parseUserArg(args[1])
		}
		b.showRank(s, m.ChannelID, m.GuildID, target)
		return
	case "top":
		b.showLeaderboard(s, m.ChannelID, m.GuildID)
		return
	case "stats":
		target := m.Author.ID
		if len(args) > 1 {
			target = parseUserArg(args[1])
		}
		b.showStats(s, m.ChannelID, m.GuildID, target)
		return
	case "list":
		b.listCleanupTasks(s, m.GuildID, m.ChannelID)
		return
	}

	if !b.isAdminOrOwner(s, m.GuildID, m.Author.ID) && !b.checkUserPermission(s, m.GuildID, m.Author.ID) {
		b.logPermissionErrorOnce(m.ChannelID, m.GuildID, m.Author.ID)
		b.sendChannelMessage(s, m.ChannelID, "You don't have the necessary permissions for this command. You must be the server owner, an administrator, or a user with permissions assigned by an admin.")
		return
	}

	// Permission management stays admin/owner only.
	switch command {
	case "adduser", "removeuser", "addrole", "removerole", "listpermissions":
		if !b.isAdminOrOwner(s, m.GuildID, m.Author.ID) {
			b.sendChannelMessage(s, m.ChannelID, "Only server owners and administrators can manage permissions.")
			return
		}
	}

	switch command {
	case "clean":
		if len(args) < 2 {
			b.sendChannelMessage(s, m.ChannelID, "Please provide an interval (e.g., '6h') or 'stop'. Usage: @bot clean 6h or @bot clean stop")
			return
		}
		if strings.ToLower(args[1]) == "stop" {
			b.cleaner.RemoveTask(m.ChannelID)
			b.sendChannelMessage(s, m.ChannelID, "Cleanup stopped for this channel.")
			return
		}
		interval, err := ParseDuration(args[1])
		if err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Invalid interval: %v. Type @bot help for available commands.", err))
			return
		}
		effective, err := b.cleaner.AddOrUpdateTask(m.ChannelID, interval)
		if err != nil {
			b.logError("setting cleanup task failed", "channel_id", m.ChannelID, "error", err)
			b.sendChannelMessage(s, m.ChannelID, "Failed to save the cleanup task.")
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("This channel will be purged every %s.", FormatDuration(effective)))

	case "givelevels":
		if len(args) < 3 {
			b.sendChannelMessage(s, m.ChannelID, "Usage: @bot givelevels <user> <levels>")
			return
		}
		target := parseUserArg(args[1])
		delta, err := strconv.Atoi(args[2])
		if err != nil || delta == 0 {
			b.sendChannelMessage(s, m.ChannelID, "Levels must be a non-zero number.")
			return
		}
		if err := b.ledger.AddLevelsDirect(target, m.GuildID, delta); err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Failed to adjust levels: %v", err))
			return
		}
		standing, err := b.ledger.Read(target, m.GuildID)
		if err != nil {
			b.logError("reading standing after adjustment failed", "user_id", target, "error", err)
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("<@%s> is now level %d.", target, standing.Level))

	case "resetxp":
		if len(args) < 2 {
			b.sendChannelMessage(s, m.ChannelID, "Usage: @bot resetxp <user>")
			return
		}
		target := parseUserArg(args[1])
		if err := b.ledger.Reset(target, m.GuildID); err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Failed to reset: %v", err))
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("<@%s> is back to level 1.", target))

	case "adduser":
		if len(args) < 2 {
			b.sendChannelMessage(s, m.ChannelID, "Please provide a user ID or mention.")
			return
		}
		userID := parseUserArg(args[1])
		if err := b.addUserPermission(m.GuildID, userID); err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Failed to add permission: %v", err))
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("User %s can now manage leveling and cleanup.", userID))

	case "removeuser":
		if len(args) < 2 {
			b.sendChannelMessage(s, m.ChannelID, "Please provide a user ID or mention.")
			return
		}
		userID := parseUserArg(args[1])
		if err := b.removeUserPermission(m.GuildID, userID); err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Failed to remove permission: %v", err))
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("User %s can no longer manage leveling and cleanup.", userID))

	case "addrole":
		if len(args) < 2 {
			b.sendChannelMessage(s, m.ChannelID, "Please provide a role ID.")
			return
		}
		if err := b.addRolePermission(m.GuildID, args[1]); err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Failed to add permission: %v", err))
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Role %s can now manage leveling and cleanup.", args[1]))

	case "removerole":
		if len(args) < 2 {
			b.sendChannelMessage(s, m.ChannelID, "Please provide a role ID.")
			return
		}
		if err := b.removeRolePermission(m.GuildID, args[1]); err != nil {
			b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Failed to remove permission: %v", err))
			return
		}
		b.sendChannelMessage(s, m.ChannelID, fmt.Sprintf("Role %s can no longer manage leveling and cleanup.", args[1]))

	case "listpermissions":
		b.listPermissions(s, m.GuildID, m.ChannelID)

	default:
		b.sendChannelMessage(s, m.ChannelID, "Unknown command. Type @bot help for available commands.")
	}
}

func (b *Bot) sendHelp(s *discordgo.Session, channelID string) {
	botMention := fmt.Sprintf("<@%s>", s.State.User.ID)
	help := fmt.Sprintf(`**LEVELING**
%s rank [user] — your (or someone's) level, XP and rank
%s top — guild leaderboard
%s stats [user] — 7-day activity breakdown

**ADMIN — LEVELING**
%s givelevels <user> <n> — add or remove levels directly
%s resetxp <user> — back to level 1 (history kept)

**ADMIN — CHANNEL CLEANUP**
%s clean 6h — purge this channel every 6 hours (units: s, m, h, d)
%s clean stop — stop purging this channel
%s list — list cleanup schedules in this guild

**ADMIN — PERMISSIONS**
%s adduser <user> / removeuser <user>
%s addrole <role id> / removerole <role id>
%s listpermissions`,
		botMention, botMention, botMention,
		botMention, botMention,
		botMention, botMention, botMention,
		botMention, botMention, botMention)
	b.sendChannelMessage(s, channelID, help)
}

func (b *Bot) showRank(s *discordgo.Session, channelID, guildID, userID string) {
	standing, err := b.ledger.Read(userID, guildID)
	if err != nil {
		b.logError("reading standing failed", "user_id", userID, "guild_id", guildID, "error", err)
		b.sendChannelMessage(s, channelID, "Error retrieving rank.")
		return
	}
	var progress string
	if standing.Level >= levels.MaxLevel {
		progress = "max level"
	} else {
		progress = fmt.Sprintf("%d/%d XP (%d%%)", standing.XP, standing.XPForNextLevel, standing.Progress)
	}
	b.sendChannelMessage(s, channelID, fmt.Sprintf(
		"<@%s> — level **%d**, rank #%d · %s · %d total XP",
		userID, standing.Level, standing.Rank, progress, standing.TotalXP))
}

func (b *Bot) showLeaderboard(s *discordgo.Session, channelID, guildID string) {
	board, err := b.ledger.Leaderboard(guildID, 10)
	if err != nil {
		b.logError("querying leaderboard failed", "guild_id", guildID, "error", err)
		b.sendChannelMessage(s, channelID, "Error retrieving leaderboard.")
		return
	}
	if len(board) == 0 {
		b.sendChannelMessage(s, channelID, "Nobody has earned XP yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("**Leaderboard**\n")
	for i, entry := range board {
		fmt.Fprintf(&sb, "%d. <@%s> — level %d (%d XP)\n", i+1, entry.UserID, entry.Level, entry.TotalXP)
	}
	b.sendChannelMessage(s, channelID, sb.String())
}

func (b *Bot) showStats(s *discordgo.Session, channelID, guildID, userID string) {
	stats, err := b.ledger.ActivityStats(userID, guildID)
	if err != nil {
		b.logError("querying activity stats failed", "user_id", userID, "guild_id", guildID, "error", err)
		b.sendChannelMessage(s, channelID, "Error retrieving stats.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Last 7 days for <@%s>**\n", userID)
	fmt.Fprintf(&sb, "Total: %d XP · Daily average: %d XP · Most active: %s\n",
		stats.WeeklyTotalXP, stats.DailyAverageXP, stats.MostActiveDay)
	if len(stats.XPBySource) > 0 {
		sources := make([]string, 0, len(stats.XPBySource))
		for source := range stats.XPBySource {
			sources = append(sources, source)
		}
		sort.Strings(sources)
		parts := make([]string, 0, len(sources))
		for _, source := range sources {
			parts = append(parts, fmt.Sprintf("%s %d", source, stats.XPBySource[source]))
		}
		fmt.Fprintf(&sb, "By source: %s", strings.Join(parts, ", "))
	}
	b.sendChannelMessage(s, channelID, sb.String())
}

func (b *Bot) listCleanupTasks(s *discordgo.Session, guildID, channelID string) {
	tasks, err := b.cleaner.Tasks()
	if err != nil {
		b.logError("querying cleanup tasks failed", "guild_id", guildID, "error", err)
		b.sendChannelMessage(s, channelID, "Error retrieving cleanup tasks.")
		return
	}

	var sb strings.Builder
	// Tasks from other guilds or inaccessible channels are skipped.
	for _, task := range tasks {
		ch, err := s.State.Channel(task.ChannelID)
		if err != nil {
			ch, err = s.Channel(task.ChannelID)
			if err != nil {
				b.logError("fetching channel failed in list", "channel_id", task.ChannelID, "error", err)
				continue
			}
		}
		if ch.GuildID != guildID {
			continue
		}
		interval := time.Duration(task.IntervalSeconds) * time.Second
		fmt.Fprintf(&sb, "<#%s>: every %s\n", task.ChannelID, FormatDuration(interval))
	}

	if sb.Len() == 0 {
		b.sendChannelMessage(s, channelID, "No cleanup schedules found for this guild.")
		return
	}
	b.sendChannelMessage(s, channelID, sb.String())
}

func (b *Bot) isAdminOrOwner(s *discordgo.Session, guildID, userID string) bool {
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		b.logError("fetching member failed", "guild_id", guildID, "user_id", userID, "error", err)
		return false
	}

	guild, err := s.Guild(guildID)
	if err != nil {
		b.logError("fetching guild failed", "guild_id", guildID, "error", err)
		return false
	}

	if guild.OwnerID == userID {
		return true
	}

	// Local cache of guild roles for fallback when State is not populated
	var rolesByID map[string]*discordgo.Role

	for _, roleID := range member.Roles {
		role, err := s.State.Role(guildID, roleID)
		if err != nil {
			if rolesByID == nil {
				guildRoles, fetchErr := s.GuildRoles(guildID)
				if fetchErr != nil {
					b.logError("fetching guild roles failed", "guild_id", guildID, "error", fetchErr)
					return false
				}
				rolesByID = make(map[string]*discordgo.Role, len(guildRoles))
				for _, r := range guildRoles {
					rolesByID[r.ID] = r
				}
			}
			role = rolesByID[roleID]
			if role == nil {
				continue
			}
		}
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}

	return false
}

func (b *Bot) addUserPermission(guildID, userID string) error {
	permission := UserPermission{UserID: userID, GuildID: guildID, CanManage: true}
	if err := b.db.Save(&permission).Error; err != nil {
		return fmt.Errorf("failed to add user permission: %w", err)
	}
	return nil
}

func (b *Bot) removeUserPermission(guildID, userID string) error {
	if err := b.db.Where("guild_id = ? AND user_id = ?", guildID, userID).Delete(&UserPermission{}).Error; err != nil {
		return fmt.Errorf("failed to remove user permission: %w", err)
	}
	return nil
}

func (b *Bot) addRolePermission(guildID, roleID string) error {
	permission := RolePermission{RoleID: roleID, GuildID: guildID, CanManage: true}
	if err := b.db.Save(&permission).Error; err != nil {
		return fmt.Errorf("failed to add role permission: %w", err)
	}
	return nil
}

func (b *Bot) removeRolePermission(guildID, roleID string) error {
	if err := b.db.Where("guild_id = ? AND role_id = ?", guildID, roleID).Delete(&RolePermission{}).Error; err != nil {
		return fmt.Errorf("failed to remove role permission: %w", err)
	}
	return nil
}

// checkUserPermission checks the permission tables by user ID, then by
// the member's roles.
func (b *Bot) checkUserPermission(s *discordgo.Session, guildID, userID string) bool {
	var permission UserPermission
	if queryErr := b.db.Where("guild_id = ? AND user_id = ?", guildID, userID).First(&permission).Error; queryErr == nil {
		return permission.CanManage
	} else if !errors.Is(queryErr, gorm.ErrRecordNotFound) {
		b.logWarn("permission check: user query failed", "guild_id", guildID, "user_id", userID, "error", queryErr)
	}

	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}
	for _, roleID := range member.Roles {
		var rolePermission RolePermission
		if err := b.db.Where("guild_id = ? AND role_id = ?", guildID, roleID).First(&rolePermission).Error; err == nil {
			if rolePermission.CanManage {
				return true
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			b.logWarn("permission check: role query failed", "guild_id", guildID, "role_id", roleID, "error", err)
		}
	}
	return false
}

func (b *Bot) listPermissions(s *discordgo.Session, guildID, channelID string) {
	var users []UserPermission
	if err := b.db.Where("guild_id = ?", guildID).Find(&users).Error; err != nil {
		b.sendChannelMessage(s, channelID, fmt.Sprintf("Failed to retrieve user permissions: %v", err))
		return
	}
	var roles []RolePermission
	if err := b.db.Where("guild_id = ?", guildID).Find(&roles).Error; err != nil {
		b.sendChannelMessage(s, channelID, fmt.Sprintf("Failed to retrieve role permissions: %v", err))
		return
	}

	if len(users) == 0 && len(roles) == 0 {
		b.sendChannelMessage(s, channelID, "No users or roles are registered to manage the bot.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Registered users and roles:**\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "- user %s\n", u.UserID)
	}
	for _, r := range roles {
		fmt.Fprintf(&sb, "- role %s\n", r.RoleID)
	}
	b.sendChannelMessage(s, channelID, sb.String())
}

// ParseDuration parses a duration string (e.g., "30s", "5m", "24h", "2d") into a time.Duration.
func ParseDuration(input string) (time.Duration, error) {
	re := regexp.MustCompile(`^(\d+)([smhd])$`)
	match := re.FindStringSubmatch(input)
	if len(match) != 3 {
		return 0, fmt.Errorf("invalid duration format")
	}

	num, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("error parsing number: %w", err)
	}

	switch match[2] {
	case "s":
		return time.Duration(num) * time.Second, nil
	case "m":
		return time.Duration(num) * time.Minute, nil
	case "h":
		return time.Duration(num) * time.Hour, nil
	case "d":
		return time.Duration(num) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %s", match[2])
	}
}

// FormatDuration formats a time.Duration into a human-readable string.
func FormatDuration(duration time.Duration) string {
	if duration%(24*time.Hour) == 0 {
		days := duration / (24 * time.Hour)
		if days > 1 {
			return fmt.Sprintf("%d days", days)
		}
		return "1 day"
	}
	if duration%time.Hour == 0 {
		hours := duration / time.Hour
		if hours > 1 {
			return fmt.Sprintf("%d hours", hours)
		}
		return "1 hour"
	}
	if duration%time.Minute == 0 {
		minutes := duration / time.Minute
		if minutes > 1 {
			return fmt.Sprintf("%d minutes", minutes)
		}
		return "1 minute"
	}
	seconds := duration / time.Second
	if seconds > 1 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	return "1 second"
}
