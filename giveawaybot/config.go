package giveawaybot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Bot      BotConfig      `toml:"bot"`
	DB       DBConfig       `toml:"db"`
	Giveaway GiveawayConfig `toml:"giveaway"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type GiveawayConfig struct {
	// TickIntervalSeconds is the scheduler period; a floor is enforced at
	// startup so a bad value cannot tight-loop the process.
	TickIntervalSeconds int `toml:"tick_interval_seconds"`
	// BroadcastChannel is the default channel for giveaway posts when a
	// command does not name one. Stored in the settings table on startup.
	BroadcastChannel snowflake.ID `toml:"broadcast_channel"`
	// Operators receive the private draw proof and may run operator-only
	// commands.
	Operators []snowflake.ID `toml:"operators"`
}
