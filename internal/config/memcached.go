package config

type MemcachedConfig struct {
	NodeHosts []string `yaml:"hosts"`
}

func (s *MemcachedConfig) Hosts() []string {
	return s.NodeHosts
}

// Enabled reports whether the optional reply cache is configured.
func (s *MemcachedConfig) Enabled() bool {
	return len(s.NodeHosts) > 0
}
