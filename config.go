package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ventura3351/multiapps/pkg/bundle"
)

type Config struct {
	ListenAddr string
	ServerName string
	Services   []bundle.Service
	// CORS
	CORSOrigins []string
	// Browser
	BrowserEnabled        bool
	BrowserHeadless       bool
	BrowserExecPath       string
	BrowserAllowedDomains []string
	BrowserTimeout        time.Duration
	// HTTP
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPUpstreamTimeout time.Duration
	ShutdownTimeout     time.Duration
	LogLevel            string
	LogFormat           string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvCSV(key string) []string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// getenvMap reads "name=value,name=value".
func getenvMap(key string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range getenvCSV(key) {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("%s: malformed entry %q", key, p)
		}
		out[k] = v
	}
	return out, nil
}

func loadServices() ([]bundle.Service, error) {
	bundles, err := getenvMap("SERVICE_URLS")
	if err != nil {
		return nil, err
	}
	targets, err := getenvMap("SERVICE_TARGETS")
	if err != nil {
		return nil, err
	}
	for name := range targets {
		if _, ok := bundles[name]; !ok {
			return nil, fmt.Errorf("SERVICE_TARGETS: %q has no entry in SERVICE_URLS", name)
		}
	}
	out := make([]bundle.Service, 0, len(bundles))
	for name, u := range bundles {
		out = append(out, bundle.Service{Name: name, BundleURL: u, TargetURL: targets[name]})
	}
	return out, nil
}

func loadConfig() (*Config, error) {
	services, err := loadServices()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		ListenAddr: getenv("LISTEN_ADDR", ":"+getenv("PORT", "5000")),
		ServerName: getenv("SERVER_NAME", "Heroku"),
		Services:   services,
		// CORS
		CORSOrigins: getenvCSV("CORS_ORIGINS"),
		// Browser
		BrowserEnabled:        getenvBool("BROWSER_ENABLED", false),
		BrowserHeadless:       getenvBool("BROWSER_HEADLESS", true),
		BrowserExecPath:       os.Getenv("BROWSER_EXEC_PATH"),
		BrowserAllowedDomains: getenvCSV("BROWSER_ALLOWED_DOMAINS"),
		BrowserTimeout:        getenvDuration("BROWSER_TIMEOUT", 60*time.Second),
		// HTTP
		HTTPReadTimeout:     getenvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout:    getenvDuration("HTTP_WRITE_TIMEOUT", 90*time.Second),
		HTTPUpstreamTimeout: getenvDuration("HTTP_UPSTREAM_TIMEOUT", 30*time.Second),
		ShutdownTimeout:     getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFormat:           getenv("LOG_FORMAT", "text"),
	}

	if cfg.BrowserEnabled && len(cfg.BrowserAllowedDomains) == 0 {
		return nil, errors.New("missing required ENV by browser: BROWSER_ALLOWED_DOMAINS")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT: want text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}
