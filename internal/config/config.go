package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Capture CaptureConfig
	Polling PollingConfig
}

// ServerConfig covers the localhost control surface.
type ServerConfig struct {
	Host     string
	Port     string
	LogLevel string
}

// BackendConfig covers the external platform services the agent talks to.
// Token is the platform-issued bearer JWT for the signed-in user.
type BackendConfig struct {
	AIBaseURL       string
	StorageBaseURL  string
	ExerciseBaseURL string
	Token           string
	TimeoutSeconds  int
}

// CaptureConfig covers the microphone capture command and artifact format.
type CaptureConfig struct {
	Command       string
	Args          []string
	MIMEType      string
	FileExtension string
	// MaxSeconds caps a recording; the tick observer auto-stops at the cap.
	// Zero disables the cap.
	MaxSeconds int
}

// PollingConfig covers the evaluation status polling loop.
type PollingConfig struct {
	IntervalSeconds int
}

func Load() (*Config, error) {
	// Read Docker/Swarm secrets from _FILE env vars before Viper binds
	readSecret("IELTSGO_API_TOKEN")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.host", "AGENT_HOST")
	_ = viper.BindEnv("server.port", "AGENT_PORT")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("backend.ai_base_url", "AI_BASE_URL")
	_ = viper.BindEnv("backend.storage_base_url", "STORAGE_BASE_URL")
	_ = viper.BindEnv("backend.exercise_base_url", "EXERCISE_BASE_URL")
	_ = viper.BindEnv("backend.token", "IELTSGO_API_TOKEN")
	_ = viper.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = viper.BindEnv("capture.command", "CAPTURE_COMMAND")
	_ = viper.BindEnv("capture.args", "CAPTURE_ARGS")
	_ = viper.BindEnv("capture.max_seconds", "CAPTURE_MAX_SECONDS")
	_ = viper.BindEnv("polling.interval_seconds", "POLL_INTERVAL_SECONDS")

	// Defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8700")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("backend.ai_base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("backend.storage_base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("backend.exercise_base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("backend.timeout", 30)
	viper.SetDefault("capture.command", "ffmpeg")
	viper.SetDefault("capture.args", "-f pulse -i default -f webm -c:a libopus -")
	viper.SetDefault("capture.mime_type", "audio/webm")
	viper.SetDefault("capture.file_extension", ".webm")
	viper.SetDefault("capture.max_seconds", 0)
	viper.SetDefault("polling.interval_seconds", 5)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:     viper.GetString("server.host"),
			Port:     viper.GetString("server.port"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Backend: BackendConfig{
			AIBaseURL:       viper.GetString("backend.ai_base_url"),
			StorageBaseURL:  viper.GetString("backend.storage_base_url"),
			ExerciseBaseURL: viper.GetString("backend.exercise_base_url"),
			Token:           viper.GetString("backend.token"),
			TimeoutSeconds:  viper.GetInt("backend.timeout"),
		},
		Capture: CaptureConfig{
			Command:       viper.GetString("capture.command"),
			Args:          strings.Fields(viper.GetString("capture.args")),
			MIMEType:      viper.GetString("capture.mime_type"),
			FileExtension: viper.GetString("capture.file_extension"),
			MaxSeconds:    viper.GetInt("capture.max_seconds"),
		},
		Polling: PollingConfig{
			IntervalSeconds: viper.GetInt("polling.interval_seconds"),
		},
	}

	return cfg, nil
}
