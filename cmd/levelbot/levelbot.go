package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkov/levelbot/internal/bot"
	"github.com/arkov/levelbot/internal/cleaner"
	"github.com/arkov/levelbot/internal/config"
	"github.com/arkov/levelbot/internal/levels"
	"github.com/arkov/levelbot/internal/logger"
	"github.com/bwmarrin/discordgo"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// discordgoAdapter adapts discordgo.Session to cleaner.MessageAPI.
type discordgoAdapter struct {
	session *discordgo.Session
}

func (a *discordgoAdapter) Channel(channelID string) (*discordgo.Channel, error) {
	return a.session.Channel(channelID)
}

func (a *discordgoAdapter) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error) {
	return a.session.ChannelMessages(channelID, limit, beforeID, afterID, aroundID)
}

func (a *discordgoAdapter) ChannelMessagesBulkDelete(channelID string, messages []string) error {
	return a.session.ChannelMessagesBulkDelete(channelID, messages)
}

func (a *discordgoAdapter) ChannelMessageDelete(channelID, msgID string) error {
	return a.session.ChannelMessageDelete(channelID, msgID)
}

func main() {
	envPath := flag.String("env", "", "Path to .env file (empty = load from current working directory)")
	dbPath := flag.String("db", "", "Path to database file (overrides DB_PATH)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	logFile := flag.String("log-file", "", "Optional path to log file (stdout/stderr if empty); supports rotation by size if using lumberjack")
	flag.Parse()

	// Build logger output (stderr or file with size-based rotation)
	var logOutput io.Writer = os.Stderr
	if *logFile != "" {
		logOutput = &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	l := logger.New(logger.Config{
		Level:  logger.ParseLevel(*logLevel),
		Format: *logFormat,
		Output: logOutput,
	})

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	// CLI flag overrides env/config value
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	l.Info("starting", "db_path", cfg.DBPath, "log_level", *logLevel, "log_format", *logFormat)

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatal("Error opening database: ", err)
	}

	if err := db.AutoMigrate(
		&levels.UserLevel{}, &levels.XPGrant{},
		&cleaner.Task{},
		&bot.UserPermission{}, &bot.RolePermission{},
	); err != nil {
		log.Fatal("Error migrating database: ", err)
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordKey)
	if err != nil {
		log.Fatal("Error creating Discord session: ", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	ledger := levels.NewLedger(db)

	eventDays := make(map[string]bool, len(cfg.EventDays))
	for _, day := range cfg.EventDays {
		eventDays[day.Format("2006-01-02")] = true
	}
	engine := levels.NewEngine(ledger, levels.Config{
		EventDays:     eventDays,
		ChannelBoosts: cfg.XPBoostChannels,
	}, l)

	cln := cleaner.New(db, &discordgoAdapter{session: dg})
	cln.SetLogger(l)

	b := bot.NewBot(db, ledger, engine, cln)
	b.SetSession(dg)
	b.SetLogger(l)

	dg.AddHandler(b.Ready)
	dg.AddHandler(b.MessageCreate)
	dg.AddHandler(b.VoiceStateUpdate)

	if err := dg.Open(); err != nil {
		log.Fatal("Error opening Discord session: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go engine.Run(ctx)

	l.Info("bot running")
	fmt.Println("Bot is now running. Press CTRL+C to exit.")
	<-ctx.Done()

	l.Info("shutting down")
	cln.Stop()
	if err := dg.Close(); err != nil {
		l.Warn("closing Discord session failed", "error", err)
	}
}
