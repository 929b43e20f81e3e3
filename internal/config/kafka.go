package config

type KafkaConfig struct {
	BrokerList []string `yaml:"brokers"`
	ExpTopic   string   `yaml:"expenses-topic"`
}

func (s *KafkaConfig) Brokers() []string {
	return s.BrokerList
}

func (s *KafkaConfig) ExpensesTopic() string {
	return s.ExpTopic
}

// Enabled reports whether the optional expense event stream is configured.
func (s *KafkaConfig) Enabled() bool {
	return len(s.BrokerList) > 0
}
