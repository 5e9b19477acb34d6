package bot

import (
	"testing"
	"time"

	"github.com/arkov/levelbot/internal/testutil"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      time.Duration
		wantError bool
	}{
		{
			name:      "30 seconds",
			input:     "30s",
			want:      30 * time.Second,
			wantError: false,
		},
		{
			name:      "5 minutes",
			input:     "5m",
			want:      5 * time.Minute,
			wantError: false,
		},
		{
			name:      "24 hours",
			input:     "24h",
			want:      24 * time.Hour,
			wantError: false,
		},
		{
			name:      "2 days",
			input:     "2d",
			want:      2 * 24 * time.Hour,
			wantError: false,
		},
		{
			name:      "1 day",
			input:     "1d",
			want:      24 * time.Hour,
			wantError: false,
		},
		{
			name:      "invalid format - no unit",
			input:     "30",
			want:      0,
			wantError: true,
		},
		{
			name:      "invalid format - no number",
			input:     "s",
			want:      0,
			wantError: true,
		},
		{
			name:      "invalid format - wrong unit",
			input:     "30x",
			want:      0,
			wantError: true,
		},
		{
			name:      "invalid format - empty string",
			input:     "",
			want:      0,
			wantError: true,
		},
		{
			name:      "large number",
			input:     "1000s",
			want:      1000 * time.Second,
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseDuration() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if got != tt.want {
				t.Errorf("ParseDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{
			name:     "1 second",
			duration: 1 * time.Second,
			want:     "1 second",
		},
		{
			name:     "2 seconds",
			duration: 2 * time.Second,
			want:     "2 seconds",
		},
		{
			name:     "1 minute",
			duration: 1 * time.Minute,
			want:     "1 minute",
		},
		{
			name:     "5 minutes",
			duration: 5 * time.Minute,
			want:     "5 minutes",
		},
		{
			name:     "1 hour",
			duration: 1 * time.Hour,
			want:     "1 hour",
		},
		{
			name:     "24 hours",
			duration: 24 * time.Hour,
			want:     "1 day",
		},
		{
			name:     "2 days",
			duration: 2 * 24 * time.Hour,
			want:     "2 days",
		},
		{
			name:     "30 seconds",
			duration: 30 * time.Second,
			want:     "30 seconds",
		},
		{
			name:     "90 seconds",
			duration: 90 * time.Second,
			want:     "90 seconds",
		},
		{
			name:     "90 minutes",
			duration: 90 * time.Minute,
			want:     "90 minutes",
		},
		{
			name:     "25 hours",
			duration: 25 * time.Hour,
			want:     "25 hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDuration(tt.duration)
			if got != tt.want {
				t.Errorf("FormatDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsBotMentionPrefix(t *testing.T) {
	botID := "123456789"
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"direct mention no nick", "<@" + botID + "> help", true},
		{"direct mention with nick", "<@!" + botID + "> help", true},
		{"no space after mention", "<@" + botID + ">help", true},
		{"leading space", "  <@" + botID + "> cmd", true},
		{"other user mention then bot", "<@999> <@" + botID + "> help", false},
		{"contains bot id but not prefix", "help <@" + botID + ">", false},
		{"wrong id", "<@999> help", false},
		{"empty", "", false},
		{"only mention", "<@" + botID + ">", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBotMentionPrefix(tt.content, botID); got != tt.want {
				t.Errorf("isBotMentionPrefix(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestStripBotMentionPrefix(t *testing.T) {
	botID := "123456789"
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"mention then space and cmd", "<@" + botID + "> help", "help"},
		{"no space", "<@" + botID + ">help", "help"},
		{"with nick", "<@!" + botID + ">  clean 3d", "clean 3d"},
		{"leading space", "  <@" + botID + "> list", "list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripBotMentionPrefix(tt.content, botID)
			if got != tt.want {
				t.Errorf("stripBotMentionPrefix(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestParseUserArg(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"plain id", "123456789", "123456789"},
		{"mention", "<@123456789>", "123456789"},
		{"nick mention", "<@!123456789>", "123456789"},
		{"not a mention", "someword", "someword"},
		{"malformed mention", "<@abc>", "<@abc>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseUserArg(tt.arg); got != tt.want {
				t.Errorf("parseUserArg(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestUserPermissionLifecycle(t *testing.T) {
	db := testutil.OpenDB(t, &UserPermission{}, &RolePermission{})
	b := &Bot{db: db}

	if err := b.addUserPermission("guild-1", "user-1"); err != nil {
		t.Fatalf("addUserPermission: %v", err)
	}

	var perm UserPermission
	if err := db.Where("guild_id = ? AND user_id = ?", "guild-1", "user-1").First(&perm).Error; err != nil {
		t.Fatalf("expected permission row, got %v", err)
	}
	if !perm.CanManage {
		t.Error("expected CanManage = true")
	}

	if err := b.removeUserPermission("guild-1", "user-1"); err != nil {
		t.Fatalf("removeUserPermission: %v", err)
	}
	var count int64
	db.Model(&UserPermission{}).Count(&count)
	if count != 0 {
		t.Errorf("expected 0 permission rows after removal, got %d", count)
	}
}

func TestRolePermissionLifecycle(t *testing.T) {
	db := testutil.OpenDB(t, &UserPermission{}, &RolePermission{})
	b := &Bot{db: db}

	if err := b.addRolePermission("guild-1", "role-1"); err != nil {
		t.Fatalf("addRolePermission: %v", err)
	}

	var perm RolePermission
	if err := db.Where("guild_id = ? AND role_id = ?", "guild-1", "role-1").First(&perm).Error; err != nil {
		t.Fatalf("expected permission row, got %v", err)
	}
	if !perm.CanManage {
		t.Error("expected CanManage = true")
	}

	if err := b.removeRolePermission("guild-1", "role-1"); err != nil {
		t.Fatalf("removeRolePermission: %v", err)
	}
	var count int64
	db.Model(&RolePermission{}).Count(&count)
	if count != 0 {
		t.Errorf("expected 0 permission rows after removal, got %d", count)
	}
}
