package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rapidaai/capture/pkg/configs"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// Loopback serves synthetic media instead of a platform provider,
	// for dry runs and integration tests.
	Loopback bool `mapstructure:"loopback"`

	SqliteConfig  configs.SqliteConfig  `mapstructure:"sqlite" validate:"required"`
	RedisConfig   configs.RedisConfig   `mapstructure:"redis"`
	CaptureConfig configs.CaptureConfig `mapstructure:"capture"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "capture-api")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("LOOPBACK", false)

	v.SetDefault("SQLITE__PATH", "capture.db")

	v.SetDefault("REDIS__ENABLED", false)
	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DATABASE", 0)

	v.SetDefault("CAPTURE__CHUNK_FLUSH_INTERVAL", 100*time.Millisecond)
	v.SetDefault("CAPTURE__SIGNAL_FLUSH_INTERVAL", 100*time.Millisecond)
	v.SetDefault("CAPTURE__POINTER_THROTTLE", 8*time.Millisecond)
	v.SetDefault("CAPTURE__VELOCITY_GAP_LIMIT", 100*time.Millisecond)
	v.SetDefault("CAPTURE__SMOOTHING_ALPHA", 0.3)
	v.SetDefault("CAPTURE__STOP_GRACE", 5*time.Second)
	v.SetDefault("CAPTURE__RESET_VELOCITY_ON_RESUME", false)
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
