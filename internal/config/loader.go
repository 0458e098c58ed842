package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/qiwen-dev/recycleprice/internal/db"
)

// Server holds the HTTP API settings.
type Server struct {
	Addr           string
	AllowedOrigins []string
}

// Kafka holds the observation topic settings for the consumer.
type Kafka struct {
	Brokers string
	Topic   string
	GroupID string
}

// App is the full application configuration.
type App struct {
	Database db.Config
	Server   Server
	Kafka    Kafka
}

// Default returns the configuration used when no config file or environment
// overrides are present.
func Default() App {
	return App{
		Database: db.DefaultConfig(),
		Server: Server{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Kafka: Kafka{
			Brokers: "localhost:9092",
			Topic:   "recycleprice.observations",
			GroupID: "recycleprice-ingest",
		},
	}
}

// Load reads config.yaml from configPath, then applies environment
// overrides (RP_DATABASE_HOST, RP_KAFKA_BROKERS, ...).
func Load(configPath string) (App, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("RP")

	v.BindEnv("database.host", "RP_DATABASE_HOST")
	v.BindEnv("database.port", "RP_DATABASE_PORT")
	v.BindEnv("database.user", "RP_DATABASE_USER")
	v.BindEnv("database.password", "RP_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "RP_DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "RP_DATABASE_SSLMODE")
	v.BindEnv("server.addr", "RP_SERVER_ADDR")
	v.BindEnv("kafka.brokers", "RP_KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "RP_KAFKA_TOPIC")
	v.BindEnv("kafka.group_id", "RP_KAFKA_GROUP_ID")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just note it, use defaults + env.
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("kafka.brokers") {
		cfg.Kafka.Brokers = v.GetString("kafka.brokers")
	}
	if v.IsSet("kafka.topic") {
		cfg.Kafka.Topic = v.GetString("kafka.topic")
	}
	if v.IsSet("kafka.group_id") {
		cfg.Kafka.GroupID = v.GetString("kafka.group_id")
	}

	return cfg, nil
}
