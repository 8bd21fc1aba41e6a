// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken   = "TELEGRAM_TOKEN"
	KeyAdminIDs        = "ADMIN_IDS"
	KeyChannelID       = "CHANNEL_ID"
	KeyMongoURI        = "MONGO_URI"
	KeyMongoDB         = "MONGO_DB"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyHTTPPort        = "HTTP_PORT"
	KeyStateTimeout    = "STATE_TIMEOUT_MINUTES"
	KeySweepInterval   = "SWEEP_INTERVAL_MINUTES"
	KeyBroadcastRate   = "BROADCAST_RATE"
	KeyBroadcastWindow = "BROADCAST_WINDOW_SECONDS"
	KeyMaxVehicleName  = "MAX_VEHICLE_NAME_LENGTH"
	KeyMaxComment      = "MAX_COMMENT_LENGTH"
	KeyMaxBroadcast    = "MAX_BROADCAST_LENGTH"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultHTTPPort        = 8080
	DefaultStateTimeout    = 30 * time.Minute
	DefaultSweepInterval   = 5 * time.Minute
	DefaultBroadcastRate   = 25
	DefaultBroadcastWindow = time.Second
	DefaultMaxVehicleName  = 100
	DefaultMaxComment      = 500
	DefaultMaxBroadcast    = 4000
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyAdminIDs,
		Example:     "123456789,987654321",
		Required:    true,
		Description: "Comma-separated Telegram user_ids allowed to run admin commands.",
	},
	{
		Key:         KeyChannelID,
		Example:     "-1001234567890",
		Required:    true,
		Description: "Chat id of the channel confirmed reports are published to.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     "metro_bot",
		Required:    true,
		Description: "MongoDB database name.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeyStateTimeout,
		Example:     "30",
		Default:     "30",
		Description: "Minutes after which an abandoned wizard conversation is swept.",
	},
	{
		Key:         KeySweepInterval,
		Example:     "5",
		Default:     "5",
		Description: "Minutes between staleness sweep runs.",
	},
	{
		Key:         KeyBroadcastRate,
		Example:     strconv.Itoa(DefaultBroadcastRate),
		Default:     strconv.Itoa(DefaultBroadcastRate),
		Description: "Broadcast messages allowed per throttle window.",
	},
	{
		Key:         KeyBroadcastWindow,
		Example:     "1",
		Default:     "1",
		Description: "Broadcast throttle window length in seconds.",
	},
	{
		Key:         KeyMaxVehicleName,
		Example:     strconv.Itoa(DefaultMaxVehicleName),
		Default:     strconv.Itoa(DefaultMaxVehicleName),
		Description: "Maximum length of a manually entered vehicle name.",
	},
	{
		Key:         KeyMaxComment,
		Example:     strconv.Itoa(DefaultMaxComment),
		Default:     strconv.Itoa(DefaultMaxComment),
		Description: "Maximum length of the free-text report comment.",
	},
	{
		Key:         KeyMaxBroadcast,
		Example:     strconv.Itoa(DefaultMaxBroadcast),
		Default:     strconv.Itoa(DefaultMaxBroadcast),
		Description: "Maximum length of a broadcast message.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken   string
	AdminIDs        []int64
	ChannelID       int64
	MongoURI        string
	MongoDB         string
	AppEnv          string
	LogLevel        string
	HTTPPort        int
	StateTimeout    time.Duration
	SweepInterval   time.Duration
	BroadcastRate   int
	BroadcastWindow time.Duration
	MaxVehicleName  int
	MaxComment      int
	MaxBroadcast    int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:   strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:        strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:         strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
		StateTimeout:    DefaultStateTimeout,
		SweepInterval:   DefaultSweepInterval,
		BroadcastRate:   DefaultBroadcastRate,
		BroadcastWindow: DefaultBroadcastWindow,
		MaxVehicleName:  DefaultMaxVehicleName,
		MaxComment:      DefaultMaxComment,
		MaxBroadcast:    DefaultMaxBroadcast,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	adminsRaw := strings.TrimSpace(os.Getenv(KeyAdminIDs))
	if adminsRaw == "" {
		missing = append(missing, KeyAdminIDs)
	} else {
		admins, parseErr := parseAdminIDs(adminsRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAdminIDs, parseErr)
		}
		cfg.AdminIDs = admins
	}

	channelRaw := strings.TrimSpace(os.Getenv(KeyChannelID))
	if channelRaw == "" {
		missing = append(missing, KeyChannelID)
	} else {
		channelID, parseErr := strconv.ParseInt(channelRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyChannelID, parseErr)
		}
		cfg.ChannelID = channelID
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	port, err := optionalPositiveInt(KeyHTTPPort, cfg.HTTPPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTPPort = port

	stateMinutes, err := optionalPositiveInt(KeyStateTimeout, int(DefaultStateTimeout/time.Minute))
	if err != nil {
		return Config{}, err
	}
	cfg.StateTimeout = time.Duration(stateMinutes) * time.Minute

	sweepMinutes, err := optionalPositiveInt(KeySweepInterval, int(DefaultSweepInterval/time.Minute))
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval = time.Duration(sweepMinutes) * time.Minute

	rate, err := optionalPositiveInt(KeyBroadcastRate, DefaultBroadcastRate)
	if err != nil {
		return Config{}, err
	}
	cfg.BroadcastRate = rate

	windowSeconds, err := optionalPositiveInt(KeyBroadcastWindow, int(DefaultBroadcastWindow/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg.BroadcastWindow = time.Duration(windowSeconds) * time.Second

	maxVehicle, err := optionalPositiveInt(KeyMaxVehicleName, DefaultMaxVehicleName)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxVehicleName = maxVehicle

	maxComment, err := optionalPositiveInt(KeyMaxComment, DefaultMaxComment)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxComment = maxComment

	maxBroadcast, err := optionalPositiveInt(KeyMaxBroadcast, DefaultMaxBroadcast)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBroadcast = maxBroadcast

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// IsAdmin reports whether the given user id is in the static admin set.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// FormatRedacted renders the resolved configuration with secrets masked,
// suitable for the -config-only startup check.
func (c Config) FormatRedacted() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", KeyTelegramToken, redactToken(c.TelegramToken))
	fmt.Fprintf(&b, "%s=%s\n", KeyAdminIDs, formatIDs(c.AdminIDs))
	fmt.Fprintf(&b, "%s=%d\n", KeyChannelID, c.ChannelID)
	fmt.Fprintf(&b, "%s=%s\n", KeyMongoURI, redactMongoURI(c.MongoURI))
	fmt.Fprintf(&b, "%s=%s\n", KeyMongoDB, c.MongoDB)
	fmt.Fprintf(&b, "%s=%s\n", KeyAppEnv, c.AppEnv)
	fmt.Fprintf(&b, "%s=%s\n", KeyLogLevel, c.LogLevel)
	fmt.Fprintf(&b, "%s=%d\n", KeyHTTPPort, c.HTTPPort)
	fmt.Fprintf(&b, "%s=%d\n", KeyStateTimeout, int(c.StateTimeout/time.Minute))
	fmt.Fprintf(&b, "%s=%d\n", KeySweepInterval, int(c.SweepInterval/time.Minute))
	fmt.Fprintf(&b, "%s=%d\n", KeyBroadcastRate, c.BroadcastRate)
	fmt.Fprintf(&b, "%s=%d\n", KeyBroadcastWindow, int(c.BroadcastWindow/time.Second))
	fmt.Fprintf(&b, "%s=%d\n", KeyMaxVehicleName, c.MaxVehicleName)
	fmt.Fprintf(&b, "%s=%d\n", KeyMaxComment, c.MaxComment)
	fmt.Fprintf(&b, "%s=%d", KeyMaxBroadcast, c.MaxBroadcast)
	return b.String()
}

func parseAdminIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	seen := make(map[int64]struct{}, len(parts))
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", part, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, errors.New("no admin ids provided")
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func optionalPositiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return value, nil
}

func redactToken(token string) string {
	if token == "" {
		return ""
	}
	if idx := strings.IndexByte(token, ':'); idx > 0 {
		return token[:idx] + ":***"
	}
	return "***"
}

func redactMongoURI(uri string) string {
	at := strings.Index(uri, "@")
	scheme := strings.Index(uri, "://")
	if at > 0 && scheme > 0 && at > scheme {
		return uri[:scheme+3] + "***" + uri[at:]
	}
	return uri
}

func formatIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
