package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for key, env := range envNames {
		t.Setenv(env, "")
		t.Setenv(prefixedEnv(key), "")
	}
}

func load(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := load(t)

	if len(cfg.Apti.SessionCookies) != 1 || cfg.Apti.SessionCookies[0] != "se_token" {
		t.Errorf("SessionCookies = %v", cfg.Apti.SessionCookies)
	}
	if !cfg.Browser.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.Browser.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Browser.Timeout)
	}
	if cfg.Output.Prefix != "apti_result" || cfg.Output.Format != "json" {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestLoad_PlainEnvNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("APTI_USER_ID", "01012345678")
	t.Setenv("APTI_PASSWORD", "pw")
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_DATABASE_ID", "db")
	t.Setenv("NOTION_DASHBOARD_PARENT_ID", "parent")
	t.Setenv("NOTION_DASHBOARD_ENABLED", "true")

	cfg := load(t)
	if cfg.Apti.UserID != "01012345678" || cfg.Apti.Password != "pw" {
		t.Errorf("Apti = %+v", cfg.Apti)
	}
	if cfg.Notion.Token != "secret" || cfg.Notion.DatabaseID != "db" {
		t.Errorf("Notion = %+v", cfg.Notion)
	}
	if !cfg.Notion.DashboardEnabled || cfg.Notion.DashboardParentID != "parent" {
		t.Errorf("dashboard settings = %+v", cfg.Notion)
	}
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("APTI_USER_ID", "plain")
	t.Setenv("APTLEDGER_APTI_USER_ID", "prefixed")

	if got := load(t).Apti.UserID; got != "prefixed" {
		t.Errorf("UserID = %q, want prefixed", got)
	}
}

func TestLoad_PrefixedOnlySettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("APTLEDGER_BROWSER_HEADLESS", "false")
	t.Setenv("APTLEDGER_BROWSER_TIMEOUT", "45s")

	cfg := load(t)
	if cfg.Browser.Headless {
		t.Error("Headless should be false")
	}
	if cfg.Browser.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Browser.Timeout)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".aptledger.yaml")
	content := `apti:
  user_id: fileuser
  session_cookies: [se_token, apti_sess]
notion:
  database_id: filedb
output:
  format: yaml
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Apti.UserID != "fileuser" || cfg.Notion.DatabaseID != "filedb" || cfg.Output.Format != "yaml" {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.Apti.SessionCookies) != 2 {
		t.Errorf("SessionCookies = %v", cfg.Apti.SessionCookies)
	}
}

// --- Validate Tests ---

func TestValidate_Scrape(t *testing.T) {
	cfg := &Config{Apti: AptiConfig{UserID: "user"}}

	err := cfg.Validate(ModeScrape)
	if !errors.Is(err, ErrMissingSetting) {
		t.Fatalf("Validate() error = %v, want ErrMissingSetting", err)
	}
	if !strings.Contains(err.Error(), "APTI_PASSWORD") {
		t.Errorf("error should name APTI_PASSWORD: %v", err)
	}
	if strings.Contains(err.Error(), "NOTION") {
		t.Errorf("scrape should not require Notion settings: %v", err)
	}

	cfg.Apti.Password = "pw"
	if err := cfg.Validate(ModeScrape); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Sync(t *testing.T) {
	cfg := &Config{Apti: AptiConfig{UserID: "user", Password: "pw"}}

	err := cfg.Validate(ModeSync)
	if !errors.Is(err, ErrMissingSetting) {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, env := range []string{"NOTION_TOKEN", "NOTION_DATABASE_ID"} {
		if !strings.Contains(err.Error(), env) {
			t.Errorf("error should name %s: %v", env, err)
		}
	}
	if strings.Contains(err.Error(), "NOTION_DASHBOARD_PARENT_ID") {
		t.Errorf("dashboard parent is optional while disabled: %v", err)
	}

	cfg.Notion = NotionConfig{Token: "secret", DatabaseID: "db"}
	if err := cfg.Validate(ModeSync); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_PublishSkipsPortalAccount(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate(ModePublish)
	if !errors.Is(err, ErrMissingSetting) {
		t.Fatalf("Validate() error = %v", err)
	}
	if !strings.Contains(err.Error(), "NOTION_TOKEN") {
		t.Errorf("error should name NOTION_TOKEN: %v", err)
	}
	if strings.Contains(err.Error(), "APTI_") {
		t.Errorf("publish should not require the portal account: %v", err)
	}

	cfg.Notion = NotionConfig{Token: "secret", DatabaseID: "db"}
	if err := cfg.Validate(ModePublish); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_DashboardNeedsParent(t *testing.T) {
	cfg := &Config{
		Apti:   AptiConfig{UserID: "user", Password: "pw"},
		Notion: NotionConfig{Token: "secret", DatabaseID: "db", DashboardEnabled: true},
	}

	err := cfg.Validate(ModeSync)
	if !errors.Is(err, ErrMissingSetting) || !strings.Contains(err.Error(), "NOTION_DASHBOARD_PARENT_ID") {
		t.Errorf("Validate() error = %v", err)
	}
}
