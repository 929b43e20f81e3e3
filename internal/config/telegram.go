package config

type TelegramConfig struct {
	ApiToken  string `yaml:"token"`
	PublicURL string `yaml:"webhook-url"`
}

func (t *TelegramConfig) Token() string {
	return t.ApiToken
}

// WebhookURL is the public URL Telegram should deliver updates to.
// Empty means the webhook is registered out of band.
func (t *TelegramConfig) WebhookURL() string {
	return t.PublicURL
}
