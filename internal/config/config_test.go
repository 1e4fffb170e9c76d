package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHATTER_AUTH_ENDPOINT", "http://auth.internal/verify")
	t.Setenv("CHATTER_AUTH_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Fatalf("ListenAddr = %q, want :3000", cfg.ListenAddr)
	}
	if cfg.HistorySize != 100 || cfg.QueueSize != 1024 || cfg.SendBuffer != 64 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AuthBackend != BackendHTTP {
		t.Fatalf("AuthBackend = %q, want http", cfg.AuthBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHATTER_LISTEN_ADDR", ":9000")
	t.Setenv("CHATTER_HISTORY_SIZE", "25")
	t.Setenv("CHATTER_AUTH_BACKEND", "etcd")
	t.Setenv("CHATTER_ETCD_ENDPOINTS", "http://e1:2379, http://e2:2379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.HistorySize != 25 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.EtcdEndpoints) != 2 || cfg.EtcdEndpoints[1] != "http://e2:2379" {
		t.Fatalf("EtcdEndpoints = %v", cfg.EtcdEndpoints)
	}
}

func TestLoadRejectsMissingHTTPSettings(t *testing.T) {
	// http backend without endpoint/token must not boot.
	if _, err := Load(); err == nil {
		t.Fatal("Load = nil error without auth endpoint")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CHATTER_AUTH_BACKEND", "ldap")
	if _, err := Load(); err == nil {
		t.Fatal("Load = nil error for unknown backend")
	}
}
