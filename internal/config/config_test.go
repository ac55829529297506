package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
server:
  port: 8081

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: sf
  password: secret
  name: storyforge_prod

ado:
  timeout: 45s
  auth: bearer

cache:
  schedule: "*/30 * * * *"
  warmup_delay: 5s

secrets:
  backend: keyring
  keyring_dir: /var/lib/storyforge/keys

notify:
  slack:
    bot_token: xoxb-123
    channel_id: C0FUNNEL
  discord:
    bot_token: disc-456
    channel_id: "998877"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database host/port = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "storyforge_prod" {
		t.Errorf("Database.Name = %q, want storyforge_prod", cfg.Database.Name)
	}
	if cfg.ADO.Timeout != 45*time.Second {
		t.Errorf("ADO.Timeout = %v, want 45s", cfg.ADO.Timeout)
	}
	if cfg.ADO.Auth != "bearer" {
		t.Errorf("ADO.Auth = %q, want bearer", cfg.ADO.Auth)
	}
	if cfg.Cache.Schedule != "*/30 * * * *" {
		t.Errorf("Cache.Schedule = %q", cfg.Cache.Schedule)
	}
	if cfg.Cache.WarmupDelay != 5*time.Second {
		t.Errorf("Cache.WarmupDelay = %v, want 5s", cfg.Cache.WarmupDelay)
	}
	if cfg.Secrets.Backend != "keyring" {
		t.Errorf("Secrets.Backend = %q, want keyring", cfg.Secrets.Backend)
	}
	if cfg.Notify.Slack.ChannelID != "C0FUNNEL" {
		t.Errorf("Notify.Slack.ChannelID = %q", cfg.Notify.Slack.ChannelID)
	}
	if cfg.Notify.Discord.ChannelID != "998877" {
		t.Errorf("Notify.Discord.ChannelID = %q", cfg.Notify.Discord.ChannelID)
	}
}

func TestParse_Empty_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001 (default)", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "./storage/storyforge.db" {
		t.Errorf("Database.Path = %q, want ./storage/storyforge.db (default)", cfg.Database.Path)
	}
	if cfg.ADO.Timeout != 30*time.Second {
		t.Errorf("ADO.Timeout = %v, want 30s (default)", cfg.ADO.Timeout)
	}
	if cfg.ADO.Auth != "basic" {
		t.Errorf("ADO.Auth = %q, want basic (default)", cfg.ADO.Auth)
	}
	if cfg.Cache.Schedule != "0 * * * *" {
		t.Errorf("Cache.Schedule = %q, want hourly (default)", cfg.Cache.Schedule)
	}
	if cfg.Secrets.Backend != "db" {
		t.Errorf("Secrets.Backend = %q, want db (default)", cfg.Secrets.Backend)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("mysql host/port = %s:%d, want 127.0.0.1:3306", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "root" {
		t.Errorf("mysql user = %q, want root", cfg.Database.User)
	}
	if cfg.Database.Name != "storyforge" {
		t.Errorf("mysql name = %q, want storyforge", cfg.Database.Name)
	}
	if cfg.Database.Path != "" {
		t.Errorf("mysql path = %q, want empty", cfg.Database.Path)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad auth", "ado:\n  auth: ntlm\n", "ado.auth"},
		{"bad secrets backend", "secrets:\n  backend: vault\n", "secrets.backend"},
		{"slack without channel", "notify:\n  slack:\n    bot_token: x\n", "notify.slack.channel_id"},
		{"discord without channel", "notify:\n  discord:\n    bot_token: x\n", "notify.discord.channel_id"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: x\nado:\n  auth: y\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined errors, got %q", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storyforge.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/storyforge.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want default 3001", cfg.Server.Port)
	}
}

func TestLoadOrDefault_BadFileStillErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatal("expected validation error for existing bad file")
	}
}
