package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DiscordKey string
	DBPath     string

	// XPBoostChannels maps channel IDs to XP multipliers, parsed from
	// XP_BOOST_CHANNELS ("id=mult" pairs, comma separated).
	XPBoostChannels map[string]float64

	// EventDays lists dates (YYYY-MM-DD, UTC) with doubled XP, parsed
	// from EVENT_DAYS (comma separated).
	EventDays []time.Time
}

// Load loads environment variables and returns a Config.
// If path is non-empty, it loads from that file and returns an error if the file cannot be loaded.
// If path is empty, it optionally loads .env from the current working directory; if no .env file
// exists, it does not error—DISCORD_KEY may be set in the process environment instead.
// DISCORD_KEY must be set (either from a .env file or from the environment).
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	} else {
		_ = godotenv.Load() // optional: ignore error if .env not present
	}

	discordKey := os.Getenv("DISCORD_KEY")
	if discordKey == "" {
		return nil, fmt.Errorf("DISCORD_KEY is not set (set it in your environment or use -env path to a .env file)")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "database.db" // Default value
	}

	boosts, err := parseChannelBoosts(os.Getenv("XP_BOOST_CHANNELS"))
	if err != nil {
		return nil, fmt.Errorf("invalid XP_BOOST_CHANNELS: %w", err)
	}

	eventDays, err := parseEventDays(os.Getenv("EVENT_DAYS"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_DAYS: %w", err)
	}

	return &Config{
		DiscordKey:      discordKey,
		DBPath:          dbPath,
		XPBoostChannels: boosts,
		EventDays:       eventDays,
	}, nil
}

// parseChannelBoosts parses "channelID=multiplier" pairs separated by commas,
// e.g. "123=1.5,456=2". Multipliers must be positive.
func parseChannelBoosts(raw string) (map[string]float64, error) {
	boosts := make(map[string]float64)
	if strings.TrimSpace(raw) == "" {
		return boosts, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected channelID=multiplier, got %q", pair)
		}
		channelID := strings.TrimSpace(parts[0])
		mult, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad multiplier in %q: %w", pair, err)
		}
		if channelID == "" || mult <= 0 {
			return nil, fmt.Errorf("bad boost entry %q", pair)
		}
		boosts[channelID] = mult
	}
	return boosts, nil
}

// parseEventDays parses comma separated YYYY-MM-DD dates, e.g. "2026-01-01,2026-07-04".
func parseEventDays(raw string) ([]time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var days []time.Time
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", entry, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", entry, err)
		}
		days = append(days, day)
	}
	return days, nil
}
