package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: :9999
assets_dir: /models/minimind
runtime_url: http://127.0.0.1:8000
generation:
  temperature: 0.5
  do_sample: false
  eos_token_id: 2
cors:
  enabled: true
  allowed_origins: ["http://localhost:3000"]
generate_timeout_seconds: 0
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.AssetsDir != "/models/minimind" || cfg.RuntimeURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Generation.Temperature != 0.5 || cfg.Generation.DoSample == nil || *cfg.Generation.DoSample {
		t.Fatalf("unexpected generation: %+v", cfg.Generation)
	}
	if cfg.Generation.EOSTokenID == nil || *cfg.Generation.EOSTokenID != 2 {
		t.Fatalf("eos_token_id not loaded")
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("unexpected cors: %+v", cfg.CORS)
	}
	cfg.ApplyDefaults()
	if cfg.GenerateTimeout() != 0 {
		t.Fatalf("explicit zero timeout must survive defaults, got %v", cfg.GenerateTimeout())
	}
	if *cfg.Generation.DoSample {
		t.Fatalf("explicit do_sample=false must survive defaults")
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","tokenizer":"tok.json","max_queue_depth":4,"generation":{"top_p":0.9}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.Tokenizer != "tok.json" || cfg.MaxQueueDepth != 4 || cfg.Generation.TopP != 0.9 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmax_wait_ms=250\n[generation]\nmax_new_tokens=512\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.MaxWaitMS != 250 || cfg.Generation.MaxNewTokens != 512 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	d := t.TempDir()
	bad := map[string]string{
		"cfg.txt":  "not supported",
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "assets_dir": }`,
		"bad.toml": "addr=:8080\nassets_dir\n",
	}
	for name, content := range bad {
		if _, err := Load(writeTempFile(t, d, name, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	b, err := Marshal(Defaults())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), ":5000") || !strings.Contains(string(b), "generation:") {
		t.Fatalf("unexpected yaml:\n%s", b)
	}
	p := writeTempFile(t, t.TempDir(), "round.yaml", string(b))
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("round-tripped defaults invalid: %v", err)
	}
}
