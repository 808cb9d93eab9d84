package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Hangup   HangupConfig   `mapstructure:"hangup"`
	Log      LogConfig      `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	Key              string `mapstructure:"key"`
	ExpireMinutes    int    `mapstructure:"expire_minutes"`
	RefreshTokenDays int    `mapstructure:"refresh_token_days"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	InstanceName string `mapstructure:"instance_name"`
}

type AgentConfig struct {
	ServerURL string `mapstructure:"server_url"`
	DeviceID  string `mapstructure:"device_id"`
}

type ScannerConfig struct {
	BaudRates    []int    `mapstructure:"baud_rates"`
	ExcludePorts []string `mapstructure:"exclude_ports"`
}

type ReceiverConfig struct {
	AutoStartOnScan bool `mapstructure:"auto_start_on_scan"`
}

type HangupConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	DelayMs    int      `mapstructure:"delay_ms"`
	CooldownMs int      `mapstructure:"cooldown_ms"`
	Whitelist  []string `mapstructure:"whitelist"`
}

var AppConfig Config

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("hangup.enabled", true)
	viper.SetDefault("receiver.auto_start_on_scan", true)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	applyDefaults()

	log.Println("Configuration loaded successfully")
}

func applyDefaults() {
	if AppConfig.Server.Port == "" {
		AppConfig.Server.Port = ":8080"
	}
	if AppConfig.JWT.ExpireMinutes <= 0 {
		AppConfig.JWT.ExpireMinutes = 60
	}
	if AppConfig.JWT.RefreshTokenDays <= 0 {
		AppConfig.JWT.RefreshTokenDays = 7
	}
	if AppConfig.Redis.InstanceName == "" {
		AppConfig.Redis.InstanceName = "smsfleet"
	}
	if AppConfig.Agent.DeviceID == "" {
		if host, err := os.Hostname(); err == nil {
			AppConfig.Agent.DeviceID = host
		}
	}
	if len(AppConfig.Scanner.BaudRates) == 0 {
		AppConfig.Scanner.BaudRates = []int{115200, 9600, 19200, 38400, 57600}
	}
	if AppConfig.Hangup.DelayMs <= 0 {
		AppConfig.Hangup.DelayMs = 200
	}
	if AppConfig.Hangup.CooldownMs <= 0 {
		AppConfig.Hangup.CooldownMs = 5000
	}
}
