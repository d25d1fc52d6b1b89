package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		// Channel is "sms" or "whatsapp"; both go through Twilio.
		Channel   string
		RateLimit int
	}
	Telegram struct {
		BotToken  string
		RateLimit int
	}
	Google struct {
		APIKey string
	}
	API struct {
		Port       string
		BasePath   string
		JWTSecret  string
		CORSOrigin string
	}
	Notification struct {
		QueueSize           int
		MaxWorkers          int
		DispatchConcurrency int
		Lookahead           time.Duration
		SweepCron           string
	}
	Feeds struct {
		File        string
		RefreshCron string
	}
	Timezone string
	Location *time.Location
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// Twilio settings
	cfg.SMS.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	cfg.SMS.Channel = os.Getenv("CONTACT_CHANNEL")
	if rl, err := strconv.Atoi(os.Getenv("TWILIO_RATE_LIMIT")); err == nil {
		cfg.SMS.RateLimit = rl
	}

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if rl, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = rl
	}

	cfg.Google.APIKey = os.Getenv("GOOGLE_API_KEY")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")
	cfg.API.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.API.CORSOrigin = os.Getenv("CORS_ORIGIN")

	// Notification worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Notification.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Notification.MaxWorkers = mw
	}
	if dc, err := strconv.Atoi(os.Getenv("DISPATCH_CONCURRENCY")); err == nil {
		cfg.Notification.DispatchConcurrency = dc
	}
	if lm, err := strconv.Atoi(os.Getenv("LOOKAHEAD_MINUTES")); err == nil {
		cfg.Notification.Lookahead = time.Duration(lm) * time.Minute
	}
	cfg.Notification.SweepCron = os.Getenv("SWEEP_CRON")

	cfg.Feeds.File = os.Getenv("FEEDS_FILE")
	cfg.Feeds.RefreshCron = os.Getenv("FEED_REFRESH_CRON")

	cfg.Timezone = os.Getenv("APP_TIMEZONE")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Kafka.Broker != "" && cfg.Kafka.Topic == "" {
		missing = append(missing, "KAFKA_TOPIC")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	cfg.applyDefaults()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "appointment-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.SMS.Channel == "" {
		cfg.SMS.Channel = "sms"
	}
	if cfg.SMS.RateLimit == 0 {
		cfg.SMS.RateLimit = 10
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 25
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers == 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if cfg.Notification.DispatchConcurrency == 0 {
		cfg.Notification.DispatchConcurrency = 8
	}
	if cfg.Notification.Lookahead == 0 {
		cfg.Notification.Lookahead = time.Hour
	}
	if cfg.Notification.SweepCron == "" {
		cfg.Notification.SweepCron = "@every 1m"
	}
	if cfg.Feeds.File == "" {
		cfg.Feeds.File = "feeds.yaml"
	}
	if cfg.Feeds.RefreshCron == "" {
		cfg.Feeds.RefreshCron = "*/15 * * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Kuala_Lumpur"
	}
}
