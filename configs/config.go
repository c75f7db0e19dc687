package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Workspace       string
	SettingsPath    string
	BuildCommand    string
	Shell           string
	AdvisorySeconds int
	APIPort         string
	APIToken        string
	LogLevel        string
	LogEncoding     string
	TracingEnabled  bool
	OTLPEndpoint    string
	Environment     string
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory if one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	workspace := getEnv("SCOPE_WORKSPACE", "")
	if workspace == "" {
		if wd, err := os.Getwd(); err == nil {
			workspace = wd
		}
	}

	return &Config{
		Workspace:       workspace,
		SettingsPath:    getEnv("SCOPE_SETTINGS_PATH", DefaultSettingsPath(workspace)),
		BuildCommand:    getEnv("SCOPE_BUILD_COMMAND", "forge build"),
		Shell:           getEnv("SCOPE_SHELL", "sh"),
		AdvisorySeconds: getEnvAsInt("SCOPE_ADVISORY_SECONDS", 10),
		APIPort:         getEnv("SCOPE_API_PORT", "7345"),
		APIToken:        getEnv("SCOPE_API_TOKEN", ""),
		LogLevel:        getEnv("SCOPE_LOG_LEVEL", "info"),
		LogEncoding:     getEnv("SCOPE_LOG_ENCODING", "console"),
		TracingEnabled:  getEnvAsBool("SCOPE_TRACING_ENABLED", false),
		OTLPEndpoint:    getEnv("SCOPE_OTLP_ENDPOINT", "localhost:4318"),
		Environment:     getEnv("SCOPE_ENV", "local"),
	}
}

// DefaultSettingsPath is the workspace settings file of the editor.
func DefaultSettingsPath(workspace string) string {
	if workspace == "" {
		return ""
	}
	return filepath.Join(workspace, ".vscode", "settings.json")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
