package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable derived from a config key,
// e.g. JOBSIFT_CLASSIFIER_BATCH_SIZE for classifier.batch_size.
const EnvPrefix = "JOBSIFT"

// legacyEnv maps config keys to the environment names earlier deployments use.
var legacyEnv = map[string]string{
	"telegram.api_id":       "TG_API_ID",
	"telegram.api_hash":     "TG_API_HASH",
	"telegram.session_name": "TG_SESSION_NAME",
	"telegram.phone":        "TG_PHONE",
	"telegram.password":     "TG_PASSWORD",
	"database.path":         "TG_DB_PATH",
	"classifier.url":        "PROXYAPI_BASE_URL",
	"classifier.token":      "PROXYAPI_TOKEN",
	"classifier.model":      "PROXYAPI_MODEL",
	"bot.token":             "BOT_TOKEN",
	"bot.admin_user_id":     "BOT_ADMIN_ID",
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, the optional dotenv file at envPath and the environment, then
// validates it. Missing files are not an error.
func Load(configPath, envPath string) (*Config, error) {
	startTime := time.Now()

	if envPath != "" {
		if err := loadDotEnv(envPath); err != nil {
			return nil, fmt.Errorf("%w: failed to load env file: %v", ErrConfiguration, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("%w: failed to bind environment: %v", ErrConfiguration, err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, configPath, err)
			}
			slog.Debug("configuration file loaded", "path", configPath)
		} else if errors.Is(err, fs.ErrNotExist) {
			slog.Info("configuration file not found, using defaults and environment", "path", configPath)
		} else {
			return nil, fmt.Errorf("%w: failed to stat config file %s: %v", ErrConfiguration, configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Info("configuration loaded successfully",
		"log_level", cfg.Logger.Level,
		"classifier_backend", cfg.Classifier.Backend,
		"classifier_model", cfg.Classifier.Model,
		"db_path", cfg.Database.Path,
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Classifier.Backend == "openai" && c.Classifier.URL == "" {
		return errors.New("classifier.url is required for the openai backend")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.api_id", 0)
	v.SetDefault("telegram.api_hash", "")
	v.SetDefault("telegram.session_name", DefaultSessionName)
	v.SetDefault("telegram.phone", "")
	v.SetDefault("telegram.password", "")

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.admin_user_id", 0)
	v.SetDefault("bot.max_message_length", DefaultBotMaxMessageLength)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("classifier.backend", DefaultClassifierBackend)
	v.SetDefault("classifier.url", DefaultClassifierURL)
	v.SetDefault("classifier.token", "")
	v.SetDefault("classifier.model", DefaultClassifierModel)
	v.SetDefault("classifier.temperature", DefaultClassifierTemperature)
	v.SetDefault("classifier.timeout", DefaultClassifierTimeout)
	v.SetDefault("classifier.batch_size", DefaultClassifierBatchSize)
	v.SetDefault("classifier.system_instruction", DefaultSystemInstruction)
	v.SetDefault("classifier.prompt_header", DefaultPromptHeader)

	v.SetDefault("backfill.lookback_hours", DefaultBackfillLookbackHours)
	v.SetDefault("backfill.folder_id", DefaultBackfillFolderID)
	v.SetDefault("backfill.on_startup", true)

	v.SetDefault("ingest.queue_size", DefaultIngestQueueSize)

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.error_unauthorized", DefaultMessages.ErrorUnauthorized)
	v.SetDefault("messages.error_general", DefaultMessages.ErrorGeneral)
	v.SetDefault("messages.searching", DefaultMessages.Searching)
	v.SetDefault("messages.busy", DefaultMessages.Busy)
	v.SetDefault("messages.nothing_to_do", DefaultMessages.NothingToDo)
	v.SetDefault("messages.nothing_found", DefaultMessages.NothingFound)
	v.SetDefault("messages.digest_header", DefaultMessages.DigestHeader)
	v.SetDefault("messages.classifier_failed", DefaultMessages.ClassifierFailed)
	v.SetDefault("messages.classifier_unparsable", DefaultMessages.ClassifierUnparsable)
	v.SetDefault("messages.stats_fmt", DefaultMessages.StatsFmt)
	v.SetDefault("messages.backfill_started", DefaultMessages.BackfillStarted)
	v.SetDefault("messages.backfill_done_fmt", DefaultMessages.BackfillDoneFmt)
	v.SetDefault("messages.backfill_failed", DefaultMessages.BackfillFailed)
	v.SetDefault("messages.backfill_busy", DefaultMessages.BackfillBusy)
}

// bindEnv enables JOBSIFT_* variables for every known key and adds the
// legacy names as fallbacks.
func bindEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// loadDotEnv copies KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return err
	}

	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}
