package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks every bound env var so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range settings {
		if s.env != "" {
			t.Setenv(s.env, "")
			os.Unsetenv(s.env)
		}
	}
}

func load(t *testing.T, configDir string) (Config, error) {
	t.Helper()
	v := viper.New()
	require.NoError(t, Bind(v))
	if configDir != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		require.NoError(t, v.ReadInConfig())
	}
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "%", cfg.Discord.CommandPrefix)
	assert.Equal(t, "plutarch", cfg.Discord.BotName)
	assert.Equal(t, "./recordings", cfg.Recording.OutputDir)
	assert.True(t, cfg.Recording.Composite)
	assert.Equal(t, "base", cfg.Transcribe.WhisperModel)
	assert.Equal(t, "whisper", cfg.Transcribe.Backend)
	assert.Equal(t, "https://arctracker.io", cfg.Arc.BaseURL)
	assert.Equal(t, "shonas.", cfg.Arc.PrimaryUser)
	assert.Equal(t, 32, cfg.Log.MaxSizeMB)
	assert.Equal(t, 5, cfg.Log.MaxBackups)
	assert.True(t, cfg.Audio.YouTubeEnabled)

	assert.ErrorIs(t, cfg.ValidateBot(), ErrMissingToken)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("WHISPER_MODEL", "small")
	t.Setenv("YOUTUBE_DL", "false")
	t.Setenv("ARC_API_KEY", "app")
	t.Setenv("API_OTHER_KEY", "other")
	t.Setenv("LOGGING_LEVEL", "DEBUG")
	t.Setenv("RECORDING_OUTPUT_DIR", "/srv/rec")

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Discord.Token)
	assert.Equal(t, "small", cfg.Transcribe.WhisperModel)
	assert.False(t, cfg.Audio.YouTubeEnabled)
	assert.Equal(t, "app", cfg.Arc.AppKey)
	assert.Equal(t, "other", cfg.Arc.OtherKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/srv/rec", cfg.Recording.OutputDir)
	assert.NoError(t, cfg.ValidateBot())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yml := "web:\n  addr: \":9090\"\ntranscribe:\n  whisper_model: medium\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o644))

	cfg, err := load(t, dir)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Web.Addr)
	assert.Equal(t, "medium", cfg.Transcribe.WhisperModel)

	t.Setenv("WHISPER_MODEL", "large")
	cfg, err = load(t, dir)
	require.NoError(t, err)
	assert.Equal(t, "large", cfg.Transcribe.WhisperModel, "env beats config.yaml")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty prefix", mutate: func(c *Config) { c.Discord.CommandPrefix = "" }, wantErr: ErrInvalidPrefix},
		{name: "unknown backend", mutate: func(c *Config) { c.Transcribe.Backend = "vosk" }, wantErr: ErrInvalidBackend},
		{name: "zero concurrency", mutate: func(c *Config) { c.Transcribe.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "zero rate", mutate: func(c *Config) { c.Arc.RatePerMinute = 0 }, wantErr: ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")), "missing file is fine")

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISCORD_BOT_NAME=scribe\n"), 0o644))
	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("DISCORD_BOT_NAME") })

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "scribe", cfg.Discord.BotName)
}

func TestDefaultYAML(t *testing.T) {
	data, err := DefaultYAML()
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, Defaults(), decoded)
	assert.Contains(t, string(data), "whisper_model: base")
}

func TestOAuthEnabled(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.OAuthEnabled())
	cfg.Discord.ClientID = "id"
	cfg.Discord.ClientSecret = "secret"
	cfg.Discord.RedirectURI = "http://localhost:8080/oauth2/callback"
	assert.True(t, cfg.OAuthEnabled())
}
