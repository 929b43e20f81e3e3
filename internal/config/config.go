package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	configFileEnvKey  = "CONFIG_FILE"
	defaultConfigFile = "data/config.yaml"

	tokenEnvKey       = "TELEGRAM_BOT_TOKEN"
	databaseURLEnvKey = "DATABASE_URL"
	databaseEnvKey    = "DATABASE_NAME"
)

type config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Server    ServerConfig    `yaml:"server"`
	App       AppConfig       `yaml:"app"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Memcached MemcachedConfig `yaml:"memcached"`
}

type Service struct {
	config config
}

// New reads the yaml config file and applies the environment overrides.
// A missing file is not an error: the hosted deployment is configured
// through environment variables only.
func New() (*Service, error) {
	s := &Service{}

	file := os.Getenv(configFileEnvKey)
	if file == "" {
		file = defaultConfigFile
	}

	rawYAML, err := os.ReadFile(file)
	if err == nil {
		if err = yaml.Unmarshal(rawYAML, &s.config); err != nil {
			return nil, errors.Wrap(err, "parsing yaml")
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "reading config file")
	}

	s.applyEnv()
	return s, nil
}

func (s *Service) applyEnv() {
	if v := os.Getenv(tokenEnvKey); v != "" {
		s.config.Telegram.ApiToken = v
	}
	if v := os.Getenv(databaseURLEnvKey); v != "" {
		s.config.Postgres.ConnURI = v
	}
	if v := os.Getenv(databaseEnvKey); v != "" {
		s.config.Postgres.Db = v
	}
}

func (s *Service) Telegram() *TelegramConfig {
	return &s.config.Telegram
}

func (s *Service) Postgres() *PostgresConfig {
	return &s.config.Postgres
}

func (s *Service) Server() *ServerConfig {
	return &s.config.Server
}

func (s *Service) App() *AppConfig {
	return &s.config.App
}

func (s *Service) Kafka() *KafkaConfig {
	return &s.config.Kafka
}

func (s *Service) Memcached() *MemcachedConfig {
	return &s.config.Memcached
}
