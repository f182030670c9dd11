package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const appName = "voicechat"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Database DatabaseConfig `mapstructure:"database"`
	Blobs    BlobsConfig    `mapstructure:"blobs"`
	Preview  PreviewConfig  `mapstructure:"preview"`
	Calls    CallsConfig    `mapstructure:"calls"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Upload   UploadConfig   `mapstructure:"upload"`
	RTC      RTCConfig      `mapstructure:"rtc"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type BlobsConfig struct {
	Path string `mapstructure:"path"`
}

type PreviewConfig struct {
	MaxWidth  int `mapstructure:"max_width"`
	MaxHeight int `mapstructure:"max_height"`
}

type CallsConfig struct {
	RingTimeout time.Duration `mapstructure:"ring_timeout"`
}

type ChatConfig struct {
	MaxMessageLen int           `mapstructure:"max_message_len"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RateInterval  time.Duration `mapstructure:"rate_interval"`
}

type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

type RTCConfig struct {
	ICEServers []string `mapstructure:"ice_servers"`
}

// Load reads config/config.<env>.yaml. An empty env falls back to CONFIG_ENV
// and then to "dev". VOICECHAT_* environment variables override file values,
// e.g. VOICECHAT_DATABASE_PATH.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("database", cfg.Database.Path).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(xdg.DataHome, appName)

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("database.path", filepath.Join(dataDir, appName+".sqlite"))
	v.SetDefault("blobs.path", filepath.Join(dataDir, "blobs.db"))
	v.SetDefault("preview.max_width", 700)
	v.SetDefault("preview.max_height", 500)
	v.SetDefault("calls.ring_timeout", "30s")
	v.SetDefault("chat.max_message_len", 4000)
	v.SetDefault("chat.rate_limit", 5)
	v.SetDefault("chat.rate_interval", "1s")
	v.SetDefault("upload.max_size", 64<<20)
	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Secret == "" {
		if c.Mode == "release" {
			return errors.New("secret must be set in release mode")
		}
		log.Warn().Str("module", "config").Msg("no secret configured, using an insecure development secret")
		c.Secret = "voicechat-dev-secret"
	}
	if c.Database.Path == "" || c.Blobs.Path == "" {
		return errors.New("database.path and blobs.path must be set")
	}
	return nil
}
