package config

type ServerConfig struct {
	ListenAddr string `yaml:"addr"`
	Strict     bool   `yaml:"strict-ready"`
}

const defaultListenAddr = ":8080"

func (s *ServerConfig) Addr() string {
	if s.ListenAddr == "" {
		return defaultListenAddr
	}
	return s.ListenAddr
}

// StrictReady makes the webhook refuse deliveries with a 500 before
// acknowledging when the store cannot be reached at all.
func (s *ServerConfig) StrictReady() bool {
	return s.Strict
}
