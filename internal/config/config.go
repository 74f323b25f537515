package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

// Config struct is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Proctor   ProctorConfig   `mapstructure:"proctor"`
	Models    ModelsConfig    `mapstructure:"models"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Interview InterviewConfig `mapstructure:"interview"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
}

// DatabaseConfig holds database connection settings. The interview archive is
// optional; when Enabled is false completed interviews are not persisted.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ProctorConfig holds settings for the live video monitor.
type ProctorConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// ModelsConfig bounds the external model calls.
type ModelsConfig struct {
	GenerationTimeout   time.Duration `mapstructure:"generation_timeout"`
	VerificationTimeout time.Duration `mapstructure:"verification_timeout"`
	// InferenceURL points at the face/emotion inference service.
	InferenceURL string `mapstructure:"inference_url"`
	// ArtifactDir is where per-candidate verification images are written.
	ArtifactDir string `mapstructure:"artifact_dir"`
}

// SpeechConfig holds settings for spoken answers.
type SpeechConfig struct {
	ListenTimeout time.Duration `mapstructure:"listen_timeout"`
}

// InterviewConfig holds settings for the question loop.
type InterviewConfig struct {
	QuestionCount int    `mapstructure:"question_count"`
	TopicsFile    string `mapstructure:"topics_file"`
}

// GeminiConfig holds settings for the question/answer generation model.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.session_secret", "")

	// Database defaults (archive disabled unless configured)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "proctorview-db")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Proctoring defaults
	v.SetDefault("proctor.sample_interval", 3*time.Second)

	// Model call bounds
	v.SetDefault("models.generation_timeout", 30*time.Second)
	v.SetDefault("models.verification_timeout", 15*time.Second)
	v.SetDefault("models.inference_url", "http://localhost:8501")
	v.SetDefault("models.artifact_dir", "user_data")

	// Speech defaults
	v.SetDefault("speech.listen_timeout", 5*time.Second)

	// Interview defaults
	v.SetDefault("interview.question_count", 3)
	v.SetDefault("interview.topics_file", "config/topics.yaml")

	// Gemini defaults (API key must come from env or file)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
}

// Init initializes the configuration with Viper.
func Init(projectRoot string, log *zap.Logger) error {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config") // Name of config file (without extension)
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("PROCTORVIEW") // e.g., PROCTORVIEW_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the initial configuration from the file.
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into our global Conf variable
	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Set up a watch for configuration changes for hot-reloading
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := v.Unmarshal(&Conf); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
		}
	})

	log.Info("Configuration loaded successfully")
	return nil
}
