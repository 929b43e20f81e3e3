package config

import (
	"fmt"
	"time"
)

const (
	dsnTemplate                  = "user=%s password=%s host=%s dbname=%s sslmode=disable"
	defaultConnectTimeoutSeconds = 5
)

type PostgresConfig struct {
	ConnURI        string `yaml:"uri"`
	Hostname       string `yaml:"host"`
	Db             string `yaml:"db"`
	User           string `yaml:"username"`
	Pswd           string `yaml:"password"`
	TimeoutSeconds int64  `yaml:"connect-timeout-seconds"`
}

// DSN prefers the full connection URI when one is provided and falls
// back to assembling the DSN from the separate fields.
func (s *PostgresConfig) DSN() string {
	if s.ConnURI != "" {
		return s.ConnURI
	}
	return fmt.Sprintf(dsnTemplate, s.User, s.Pswd, s.Hostname, s.Db)
}

func (s *PostgresConfig) ConnectTimeout() time.Duration {
	secs := s.TimeoutSeconds
	if secs <= 0 {
		secs = defaultConnectTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}
