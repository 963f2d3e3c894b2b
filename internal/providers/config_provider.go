package providers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"anonbot/internal/structures"

	"github.com/spf13/viper"
)

const AppName = "AnonFeedbackBot"

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", structures.ModePrivate)
	v.SetDefault("rateLimit.messages", 10)
	v.SetDefault("rateLimit.windowSeconds", 60)
	v.SetDefault("persistence.filePath", "bot_data.json")
	v.SetDefault("persistence.autoSaveIntervalSeconds", 300)
	v.SetDefault("persistence.writeTimeoutSeconds", 0)
	v.SetDefault("persistence.compression", "none")
	v.SetDefault("webServer.host", "127.0.0.1")
	v.SetDefault("webServer.port", 8090)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", 0644)
	v.SetDefault("logger.dir", "")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 16)
	v.SetDefault("cache.ttlSeconds", 7*24*3600)
	v.SetDefault("metrics.enabled", false)
}

// Environment names follow the variables the bot has always been deployed with.
func bindEnv(v *viper.Viper) {
	v.BindEnv("bot.mode", "BOT_MODE")
	v.BindEnv("bot.targetGroupId", "TARGET_GROUP_ID")
	v.BindEnv("bot.adminIds", "ADMIN_IDS")
	v.BindEnv("bot.ownerId", "OWNER_ID")
	v.BindEnv("rateLimit.messages", "RATE_LIMIT_MESSAGES")
	v.BindEnv("rateLimit.windowSeconds", "RATE_LIMIT_WINDOW")
	v.BindEnv("persistence.filePath", "DATA_FILE")
	v.BindEnv("persistence.autoSaveIntervalSeconds", "AUTO_SAVE_INTERVAL")
	v.BindEnv("persistence.compression", "DATA_COMPRESSION")
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("webServer.port", "CONTROL_PORT")
	v.BindEnv("metrics.enabled", "METRICS_ENABLED")
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if flags.ConfigPath != "" {
		filename := filepath.Base(flags.ConfigPath)
		v.AddConfigPath(filepath.Dir(flags.ConfigPath))
		v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	err := v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	conf.Bot.Mode = strings.ToLower(strings.TrimSpace(conf.Bot.Mode))

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = AppName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
