package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/dataloom/internal/ai"
)

func TestLoadDefaultsAndFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("default_model: gpt-4o-mini\nsession_ttl_min: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DefaultModel != "gpt-4o-mini" {
		t.Fatalf("file value ignored: %q", c.DefaultModel)
	}
	if c.DefaultProvider != ai.ProviderOpenAI || c.MaxUploadMB != 200 || c.SampleSeed != 42 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.SessionTTL() != 5*time.Minute {
		t.Fatalf("ttl: %v", c.SessionTTL())
	}
	if filepath.Base(c.LibraryDir) != "library" {
		t.Fatalf("library dir default: %q", c.LibraryDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DATALOOM_SERVER_ADDR", ":9999")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ServerAddr != ":9999" {
		t.Fatalf("env override ignored: %q", c.ServerAddr)
	}
	if c.OpenAIAPIKey != "sk-from-env" {
		t.Fatalf("conventional key env ignored: %q", c.OpenAIAPIKey)
	}
	rc := c.RuntimeConfig("openai")
	if rc.APIKey != "sk-from-env" || rc.HTTPTimeout != 60*time.Second {
		t.Fatalf("runtime config: %+v", rc)
	}
}

func TestDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DATALOOM_TEST_DOTENV=yes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("DATALOOM_TEST_DOTENV") })
	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if os.Getenv("DATALOOM_TEST_DOTENV") != "yes" {
		t.Fatalf("variable not loaded")
	}
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	c := &Global{}
	if err := c.Set("temperature", "0.3"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("api_key", "12345"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if err := c.Set("max_tokens", "lots"); err == nil {
		t.Fatalf("expected type error")
	}
	if c.Temperature != 0.3 || c.APIKey != "12345" {
		t.Fatalf("unexpected config: %+v", c)
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := Save(c, path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Temperature != 0.3 || back.APIKey != "12345" {
		t.Fatalf("round trip lost values: %+v", back)
	}
	if m := c.Masked(); m.APIKey != "****" {
		t.Fatalf("mask: %q", m.APIKey)
	}
}
