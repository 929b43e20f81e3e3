package config

type AppConfig struct {
	TimezoneName string `yaml:"timezone"`
	RecentCount  int    `yaml:"history-limit"`
}

const (
	defaultTimezone     = "Asia/Jakarta"
	defaultHistoryLimit = 5
)

func (s *AppConfig) Timezone() string {
	if s.TimezoneName == "" {
		return defaultTimezone
	}
	return s.TimezoneName
}

func (s *AppConfig) HistoryLimit() int {
	if s.RecentCount <= 0 {
		return defaultHistoryLimit
	}
	return s.RecentCount
}
