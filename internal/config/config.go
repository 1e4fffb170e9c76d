// Package config loads server settings from CHATTER_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	BackendHTTP = "http"
	BackendEtcd = "etcd"
)

type Config struct {
	ListenAddr string

	HistorySize       int
	ConversationCache int
	QueueSize         int
	SendBuffer        int
	ProfileCache      int

	AuthBackend      string
	AuthEndpoint     string
	AuthToken        string
	EtcdEndpoints    []string
	EtcdSecretPrefix string

	ProfileEndpoint string

	DevLog bool
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHATTER")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("history_size", 100)
	v.SetDefault("conversation_cache", 4096)
	v.SetDefault("queue_size", 1024)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("profile_cache", 1024)
	v.SetDefault("auth_backend", BackendHTTP)
	v.SetDefault("etcd_endpoints", "http://etcd:2379")
	v.SetDefault("etcd_secret_prefix", "/chatter/secrets/")
	v.SetDefault("dev_log", false)

	cfg := Config{
		ListenAddr:        v.GetString("listen_addr"),
		HistorySize:       v.GetInt("history_size"),
		ConversationCache: v.GetInt("conversation_cache"),
		QueueSize:         v.GetInt("queue_size"),
		SendBuffer:        v.GetInt("send_buffer"),
		ProfileCache:      v.GetInt("profile_cache"),
		AuthBackend:       v.GetString("auth_backend"),
		AuthEndpoint:      v.GetString("auth_endpoint"),
		AuthToken:         v.GetString("auth_token"),
		EtcdEndpoints:     splitList(v.GetString("etcd_endpoints")),
		EtcdSecretPrefix:  v.GetString("etcd_secret_prefix"),
		ProfileEndpoint:   v.GetString("profile_endpoint"),
		DevLog:            v.GetBool("dev_log"),
	}

	switch cfg.AuthBackend {
	case BackendHTTP:
		if cfg.AuthEndpoint == "" {
			return Config{}, fmt.Errorf("CHATTER_AUTH_ENDPOINT is required with the %s auth backend", BackendHTTP)
		}
		if cfg.AuthToken == "" {
			return Config{}, fmt.Errorf("CHATTER_AUTH_TOKEN is required with the %s auth backend", BackendHTTP)
		}
	case BackendEtcd:
		if len(cfg.EtcdEndpoints) == 0 {
			return Config{}, fmt.Errorf("CHATTER_ETCD_ENDPOINTS is required with the %s auth backend", BackendEtcd)
		}
	default:
		return Config{}, fmt.Errorf("unknown auth backend %q (want %s or %s)", cfg.AuthBackend, BackendHTTP, BackendEtcd)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
