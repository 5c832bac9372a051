// Package config provides configuration loading, validation, and management
// for jobsift. Values come from defaults, an optional YAML file, an optional
// .env file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every configuration load or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration for all components.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Bot        BotConfig        `mapstructure:"bot"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Backfill   BackfillConfig   `mapstructure:"backfill"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the MTProto user-session credentials.
type TelegramConfig struct {
	APIID       int    `mapstructure:"api_id"       validate:"required,gt=0"`
	APIHash     string `mapstructure:"api_hash"     validate:"required"`
	SessionName string `mapstructure:"session_name" validate:"required"`
	Phone       string `mapstructure:"phone"`
	Password    string `mapstructure:"password"`
}

// BotConfig holds the Bot API credentials used for commands and digests.
type BotConfig struct {
	Token            string `mapstructure:"token"              validate:"required"`
	AdminUserID      int64  `mapstructure:"admin_user_id"      validate:"required,gt=0"`
	MaxMessageLength int    `mapstructure:"max_message_length" validate:"min=64,max=4096"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ClassifierConfig configures the remote classification service.
type ClassifierConfig struct {
	Backend           string        `mapstructure:"backend"            validate:"oneof=openai gemini"`
	URL               string        `mapstructure:"url"                validate:"omitempty,url"`
	Token             string        `mapstructure:"token"              validate:"required"`
	Model             string        `mapstructure:"model"              validate:"required"`
	Temperature       float32       `mapstructure:"temperature"        validate:"min=0,max=2"`
	Timeout           time.Duration `mapstructure:"timeout"            validate:"min=1s,max=10m"`
	BatchSize         int           `mapstructure:"batch_size"         validate:"min=1,max=1000"`
	SystemInstruction string        `mapstructure:"system_instruction" validate:"required"`
	PromptHeader      string        `mapstructure:"prompt_header"`
}

// BackfillConfig configures the archived-channel scan.
type BackfillConfig struct {
	LookbackHours int  `mapstructure:"lookback_hours" validate:"min=1,max=8760"`
	FolderID      int  `mapstructure:"folder_id"      validate:"min=0"`
	OnStartup     bool `mapstructure:"on_startup"`
}

// IngestConfig configures live message delivery.
type IngestConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"min=1,max=100000"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a scheduled task with a six-field cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing bot replies.
type MessagesConfig struct {
	Welcome              string `mapstructure:"welcome"               validate:"required"`
	Help                 string `mapstructure:"help"                  validate:"required"`
	ErrorUnauthorized    string `mapstructure:"error_unauthorized"    validate:"required"`
	ErrorGeneral         string `mapstructure:"error_general"         validate:"required"`
	Searching            string `mapstructure:"searching"             validate:"required"`
	Busy                 string `mapstructure:"busy"                  validate:"required"`
	NothingToDo          string `mapstructure:"nothing_to_do"         validate:"required"`
	NothingFound         string `mapstructure:"nothing_found"         validate:"required"`
	DigestHeader         string `mapstructure:"digest_header"         validate:"required"`
	ClassifierFailed     string `mapstructure:"classifier_failed"     validate:"required"`
	ClassifierUnparsable string `mapstructure:"classifier_unparsable" validate:"required"`
	StatsFmt             string `mapstructure:"stats_fmt"             validate:"required"`
	BackfillStarted      string `mapstructure:"backfill_started"      validate:"required"`
	BackfillDoneFmt      string `mapstructure:"backfill_done_fmt"     validate:"required"`
	BackfillFailed       string `mapstructure:"backfill_failed"       validate:"required"`
	BackfillBusy         string `mapstructure:"backfill_busy"         validate:"required"`
}
