package tavernkeeper

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/bump"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log  LogConfig         `toml:"log"`
	Bot  BotConfig         `toml:"bot"`
	DB   database.DBConfig `toml:"db"`
	Bump BumpConfig        `toml:"bump"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
	// OwnerID locks the /gift command to one user when set.
	OwnerID string `toml:"owner_id"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

// BumpConfig is the TOML surface of the bump engine knobs. Durations are
// plain integers (seconds/minutes as named); unset fields keep the engine
// defaults.
type BumpConfig struct {
	DefaultIntervalMinutes int  `toml:"default_interval_minutes"`
	MinIntervalMinutes     int  `toml:"min_interval_minutes"`
	GuardMinutes           int  `toml:"guard_minutes"`
	MinDelaySeconds        int  `toml:"min_delay_seconds"`
	MaxRetryDelayMinutes   int  `toml:"max_retry_delay_minutes"`
	JitterSeconds          int  `toml:"jitter_seconds"`
	PollPeriodSeconds      int  `toml:"poll_period_seconds"`
	PollCooldownMinutes    int  `toml:"poll_cooldown_minutes"`
	SendConcurrency        int  `toml:"send_concurrency"`
	KeepBumpMessage        bool `toml:"keep_bump_message"`
	DeleteDelaySeconds     int  `toml:"delete_delay_seconds"`
}

// Engine converts the TOML knobs into a bump.Config, starting from defaults.
func (c BumpConfig) Engine() bump.Config {
	cfg := bump.DefaultConfig()
	if c.DefaultIntervalMinutes > 0 {
		cfg.DefaultIntervalMinutes = c.DefaultIntervalMinutes
	}
	if c.MinIntervalMinutes > 0 {
		cfg.MinIntervalMinutes = c.MinIntervalMinutes
	}
	if c.GuardMinutes > 0 {
		cfg.GuardMinutes = c.GuardMinutes
	}
	if c.MinDelaySeconds > 0 {
		cfg.MinDelay = time.Duration(c.MinDelaySeconds) * time.Second
	}
	if c.MaxRetryDelayMinutes > 0 {
		cfg.MaxRetryDelay = time.Duration(c.MaxRetryDelayMinutes) * time.Minute
	}
	if c.JitterSeconds > 0 {
		cfg.Jitter = time.Duration(c.JitterSeconds) * time.Second
	}
	if c.PollPeriodSeconds > 0 {
		cfg.PollPeriod = time.Duration(c.PollPeriodSeconds) * time.Second
	}
	if c.PollCooldownMinutes > 0 {
		cfg.PollCooldown = time.Duration(c.PollCooldownMinutes) * time.Minute
	}
	if c.SendConcurrency > 0 {
		cfg.SendConcurrency = c.SendConcurrency
	}
	cfg.KeepBumpMessage = c.KeepBumpMessage
	if c.DeleteDelaySeconds > 0 {
		cfg.DeleteDelay = time.Duration(c.DeleteDelaySeconds) * time.Second
	}
	return cfg
}
