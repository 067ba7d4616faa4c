package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/gql_sniffer/internal/match"
)

const envPrefix = "SNIFFER_"

// Config holds configuration shared by the sniffer and sniffproxy binaries.
type Config struct {
	// CDP connection settings
	CDPAddress     string
	CDPPort        int
	TabURLFilter   string
	ReloadOnAttach bool

	// Optional browser launch
	LaunchBrowser bool
	StartURL      string
	ProfileDir    string
	Headless      bool

	// Operator console
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	LogLevel         string
	LogFile          string

	// Matching and capture
	Origin           string
	OnlyOperation    string
	DropErrorStatus  bool
	RulesFile        string
	MaxBodyChars     int
	MaxResponseChars int
	StoreCapacity    int

	// Spill and journal storage
	DataDir       string
	BufferSize    int
	MaxFileSizeMB int
	Journal       bool

	// Export artifacts
	ExportDir      string
	ExportFilename string
	Bucket         BucketConfig
	NotifyURL      string
}

// BucketConfig describes the optional S3-compatible export destination.
// An empty Name disables uploads.
type BucketConfig struct {
	Name            string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Enabled reports whether exports should be uploaded.
func (b BucketConfig) Enabled() bool { return b.Name != "" }

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:     getEnvOrDefault("CDP_ADDRESS", "127.0.0.1"),
		CDPPort:        getEnvIntOrDefault("CDP_PORT", 9220),
		TabURLFilter:   getEnvOrDefault("TAB_URL_FILTER", "x.com"),
		ReloadOnAttach: getEnvBoolOrDefault("RELOAD_ON_ATTACH", false),

		LaunchBrowser: getEnvBoolOrDefault("LAUNCH_BROWSER", false),
		StartURL:      getEnvOrDefault("START_URL", "https://x.com"),
		ProfileDir:    getEnvOrDefault("PROFILE_DIR", "./browser_profile"),
		Headless:      getEnvBoolOrDefault("HEADLESS", false),

		BindAddr:         getEnvOrDefault("BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback: getEnvBoolOrDefault("PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("LOG_FILE", "logs/sniffer.log"),

		Origin:           getEnvOrDefault("ORIGIN", "https://x.com"),
		OnlyOperation:    getEnvOrDefault("ONLY_OPERATION", ""),
		DropErrorStatus:  getEnvBoolOrDefault("DROP_ERROR_STATUS", true),
		RulesFile:        getEnvOrDefault("RULES_FILE", ""),
		MaxBodyChars:     getEnvIntOrDefault("MAX_BODY_CHARS", 64*1024),
		MaxResponseChars: getEnvIntOrDefault("MAX_RESPONSE_CHARS", 10*1024*1024),
		StoreCapacity:    getEnvIntOrDefault("STORE_CAPACITY", 0),

		DataDir:       getEnvOrDefault("DATA_DIR", "./sniff_data"),
		BufferSize:    getEnvIntOrDefault("BUFFER_SIZE", 5000),
		MaxFileSizeMB: getEnvIntOrDefault("MAX_FILE_SIZE_MB", 200),
		Journal:       getEnvBoolOrDefault("JOURNAL", false),

		ExportDir:      getEnvOrDefault("EXPORT_DIR", "./exports"),
		ExportFilename: getEnvOrDefault("EXPORT_FILENAME", "UserMedia-responses.txt"),
		Bucket: BucketConfig{
			Name:            getEnvOrDefault("BUCKET_NAME", ""),
			Endpoint:        getEnvOrDefault("BUCKET_ENDPOINT", ""),
			Region:          getEnvOrDefault("BUCKET_REGION", "us-east-1"),
			AccessKeyID:     getEnvOrDefault("BUCKET_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnvOrDefault("BUCKET_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBoolOrDefault("BUCKET_USE_PATH_STYLE", false),
		},
		NotifyURL: getEnvOrDefault("NOTIFY_URL", ""),
	}

	if cfg.StoreCapacity < 0 {
		return nil, fmt.Errorf("%sSTORE_CAPACITY must be >= 0, got %d", envPrefix, cfg.StoreCapacity)
	}
	if _, err := cfg.OriginURL(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

// OriginURL parses Origin. An empty Origin yields nil.
func (c *Config) OriginURL() (*url.URL, error) {
	if c.Origin == "" {
		return nil, nil
	}
	u, err := url.Parse(c.Origin)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%sORIGIN must be an absolute URL, got %q", envPrefix, c.Origin)
	}
	return u, nil
}

// Rule builds the match rule from the environment and, when set, the
// YAML rules file, which overrides the fields it names.
func (c *Config) Rule() (match.Rule, error) {
	origin, err := c.OriginURL()
	if err != nil {
		return match.Rule{}, err
	}
	rule := match.Rule{
		Predicates:      match.DefaultPredicates(),
		DropErrorStatus: c.DropErrorStatus,
		Origin:          origin,
	}
	if c.OnlyOperation != "" {
		op := c.OnlyOperation
		rule.OnlyOperation = &op
	}
	if c.RulesFile != "" {
		return match.LoadRules(c.RulesFile, rule)
	}
	return rule, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
