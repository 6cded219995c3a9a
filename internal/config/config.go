// Package config loads aptledger settings from flags, environment variables
// and an optional .aptledger.yaml file through viper, and validates the
// settings each command needs.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrMissingSetting is returned by Validate when a required setting is empty.
var ErrMissingSetting = errors.New("missing required setting")

// EnvPrefix prefixes every setting's environment variable, e.g.
// APTLEDGER_BROWSER_HEADLESS.
const EnvPrefix = "APTLEDGER"

// Config is the full set of settings.
type Config struct {
	Apti    AptiConfig    `mapstructure:"apti"`
	Notion  NotionConfig  `mapstructure:"notion"`
	Browser BrowserConfig `mapstructure:"browser"`
	Output  OutputConfig  `mapstructure:"output"`
}

// AptiConfig holds the portal account.
type AptiConfig struct {
	UserID   string `mapstructure:"user_id" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	// SessionCookies lists the cookie names that mark a logged-in session.
	SessionCookies []string `mapstructure:"session_cookies"`
	BaseURL        string   `mapstructure:"base_url"`
}

// NotionConfig holds the Notion destination.
type NotionConfig struct {
	Token              string `mapstructure:"token" validate:"required"`
	DatabaseID         string `mapstructure:"database_id" validate:"required"`
	DashboardParentID  string `mapstructure:"dashboard_parent_id" validate:"required_if=DashboardEnabled true"`
	DashboardEnabled   bool   `mapstructure:"dashboard_enabled"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// BrowserConfig tunes the headless browser.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	ChromePath string        `mapstructure:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	DebugDir   string        `mapstructure:"debug_dir"`
}

// OutputConfig controls the record file written by scrape.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
	Format string `mapstructure:"format"`
}

// envNames are the unprefixed variable names each setting also answers to.
var envNames = map[string]string{
	"apti.user_id":               "APTI_USER_ID",
	"apti.password":              "APTI_PASSWORD",
	"notion.token":               "NOTION_TOKEN",
	"notion.database_id":         "NOTION_DATABASE_ID",
	"notion.dashboard_parent_id": "NOTION_DASHBOARD_PARENT_ID",
	"notion.dashboard_enabled":   "NOTION_DASHBOARD_ENABLED",
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	// every key gets a default so AutomaticEnv can supply it to Unmarshal
	v.SetDefault("apti.session_cookies", []string{"se_token"})
	v.SetDefault("apti.base_url", "")
	v.SetDefault("notion.insecure_skip_verify", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.debug_dir", "")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.prefix", "apti_result")
	v.SetDefault("output.format", "json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envNames {
		_ = v.BindEnv(key, prefixedEnv(key), env)
	}
}

func prefixedEnv(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads the settings from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Mode selects which settings Validate requires.
type Mode int

const (
	// ModeScrape needs only the portal account.
	ModeScrape Mode = iota
	// ModeSync also needs the Notion token and database.
	ModeSync
	// ModePublish needs the Notion settings but no portal account, for a
	// sync that replays saved pages.
	ModePublish
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the settings required by mode. A missing setting yields an
// error wrapping ErrMissingSetting that names its environment variable.
func (c *Config) Validate(mode Mode) error {
	var fields []string
	if mode != ModePublish {
		fields = append(fields, "Apti.UserID", "Apti.Password")
	}
	if mode != ModeScrape {
		fields = append(fields, "Notion.Token", "Notion.DatabaseID", "Notion.DashboardParentID")
	}

	err := validate.StructPartial(c, fields...)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	missing := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		key := strings.TrimPrefix(e.Namespace(), "Config.")
		if env, ok := envNames[key]; ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", key, env))
		} else {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
}
