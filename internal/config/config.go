// Package config loads plutarch settings from .env, config.yaml, and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full set of runtime settings.
type Config struct {
	DataDir    string           `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	Discord    DiscordConfig    `yaml:"discord" mapstructure:"discord"`
	Web        WebConfig        `yaml:"web" mapstructure:"web"`
	Audio      AudioConfig      `yaml:"audio" mapstructure:"audio"`
	Recording  RecordingConfig  `yaml:"recording" mapstructure:"recording"`
	Transcribe TranscribeConfig `yaml:"transcribe" mapstructure:"transcribe"`
	Arc        ArcConfig        `yaml:"arc" mapstructure:"arc"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DiscordConfig holds bot credentials and OAuth2 application settings.
type DiscordConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	BotName       string `yaml:"bot_name" mapstructure:"bot_name"`
	ClientID      string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURI   string `yaml:"redirect_uri" mapstructure:"redirect_uri"`
	CommandPrefix string `yaml:"command_prefix" mapstructure:"command_prefix"`
}

// WebConfig configures the OAuth2 callback and session API server.
type WebConfig struct {
	Addr    string `yaml:"addr" mapstructure:"addr"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AudioConfig names the external audio tools.
type AudioConfig struct {
	FFmpeg         string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	Opus           string `yaml:"opus" mapstructure:"opus"`
	YTDLP          string `yaml:"ytdlp" mapstructure:"ytdlp"`
	YouTubeEnabled bool   `yaml:"youtube_enabled" mapstructure:"youtube_enabled"`
}

// RecordingConfig controls where and how sessions are recorded.
type RecordingConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Composite bool   `yaml:"composite" mapstructure:"composite"`
}

// TranscribeConfig selects and configures the transcription backend.
type TranscribeConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"`
	WhisperModel  string `yaml:"whisper_model" mapstructure:"whisper_model"`
	WhisperBin    string `yaml:"whisper_bin" mapstructure:"whisper_bin"`
	OpenAIKey     string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIBaseURL string `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ArcConfig holds the ArcTracker keys and client tuning.
type ArcConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	AppKey        string `yaml:"app_key" mapstructure:"app_key"`
	UserKey       string `yaml:"user_key" mapstructure:"user_key"`
	OtherKey      string `yaml:"other_key" mapstructure:"other_key"`
	PrimaryUser   string `yaml:"primary_user" mapstructure:"primary_user"`
	RatePerMinute int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Refresh       string `yaml:"refresh" mapstructure:"refresh"`
}

// LogConfig configures the slog handler and the rotating log file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Validation errors.
var (
	ErrMissingToken       = errors.New("discord token is required (DISCORD_TOKEN)")
	ErrInvalidPrefix      = errors.New("command prefix must not be empty")
	ErrInvalidBackend     = errors.New("transcribe backend must be whisper or openai")
	ErrInvalidConcurrency = errors.New("transcribe concurrency must be positive")
	ErrInvalidRate        = errors.New("arc rate_per_minute must be positive")
)

// setting binds a config key to its default and, optionally, an env var.
type setting struct {
	key string
	env string
	def any
}

// settings lists every key with its env binding. Env names follow the .env
// file the bot has always shipped with.
var settings = []setting{
	{"data_dir", "", ""},
	{"discord.token", "DISCORD_TOKEN", ""},
	{"discord.bot_name", "DISCORD_BOT_NAME", "plutarch"},
	{"discord.client_id", "DISCORD_CLIENT_ID", ""},
	{"discord.client_secret", "DISCORD_CLIENT_SECRET", ""},
	{"discord.redirect_uri", "OAUTH2_REDIRECT_URI", ""},
	{"discord.command_prefix", "", "%"},
	{"web.addr", "WEB_ADDR", ":8080"},
	{"web.base_url", "API_BASE_URL", "http://localhost:8080"},
	{"audio.ffmpeg", "FFMPEG", "ffmpeg"},
	{"audio.opus", "OPUS", ""},
	{"audio.ytdlp", "YTDLP", "yt-dlp"},
	{"audio.youtube_enabled", "YOUTUBE_DL", true},
	{"recording.output_dir", "RECORDING_OUTPUT_DIR", "./recordings"},
	{"recording.composite", "", true},
	{"transcribe.backend", "TRANSCRIBE_BACKEND", "whisper"},
	{"transcribe.whisper_model", "WHISPER_MODEL", "base"},
	{"transcribe.whisper_bin", "WHISPER_BIN", "whisper"},
	{"transcribe.openai_key", "OPENAI_API_KEY", ""},
	{"transcribe.openai_base_url", "OPENAI_BASE_URL", ""},
	{"transcribe.concurrency", "", 2},
	{"arc.base_url", "ARC_BASE_URL", "https://arctracker.io"},
	{"arc.app_key", "ARC_API_KEY", ""},
	{"arc.user_key", "ARC_USER_KEY", ""},
	{"arc.other_key", "API_OTHER_KEY", ""},
	{"arc.primary_user", "", "shonas."},
	{"arc.rate_per_minute", "", 60},
	{"arc.refresh", "", "@every 6h"},
	{"log.level", "LOGGING_LEVEL", "info"},
	{"log.file", "", "discord.log"},
	{"log.max_size_mb", "", 32},
	{"log.max_backups", "", 5},
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Bind registers defaults and env bindings for every setting on v.
func Bind(v *viper.Viper) error {
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if s.env == "" {
			continue
		}
		if err := v.BindEnv(s.key, s.env); err != nil {
			return fmt.Errorf("bind %s: %w", s.env, err)
		}
	}
	return nil
}

// Load decodes v into a Config. Call Bind on v first.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Transcribe.Backend = strings.ToLower(strings.TrimSpace(cfg.Transcribe.Backend))
	return cfg, cfg.Validate()
}

// Defaults returns a Config populated only from the built-in defaults.
func Defaults() Config {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
	}
	var cfg Config
	// Decoding literal defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// DefaultYAML renders the default settings as a config.yaml document.
// Secrets stay empty so they are supplied through .env or the environment.
func DefaultYAML() ([]byte, error) {
	body, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	header := "# plutarch configuration\n" +
		"# Secrets (tokens, keys) are read from .env or the environment.\n\n"
	return append([]byte(header), body...), nil
}

// Validate checks settings needed by every command.
func (c Config) Validate() error {
	if c.Discord.CommandPrefix == "" {
		return ErrInvalidPrefix
	}
	switch c.Transcribe.Backend {
	case "whisper", "openai":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Transcribe.Backend)
	}
	if c.Transcribe.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Arc.RatePerMinute <= 0 {
		return ErrInvalidRate
	}
	return nil
}

// ValidateBot checks the additional settings the Discord bot needs to run.
func (c Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Discord.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// OAuthEnabled reports whether the OAuth2 login flow has enough settings.
func (c Config) OAuthEnabled() bool {
	return c.Discord.ClientID != "" && c.Discord.ClientSecret != "" && c.Discord.RedirectURI != ""
}
