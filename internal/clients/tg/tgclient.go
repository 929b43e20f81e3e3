package tg

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
)

type config interface {
	Token() string
}

type Client struct {
	client *tgbotapi.BotAPI
}

func New(cfg config) (*Client, error) {
	client, err := tgbotapi.NewBotAPI(cfg.Token())
	if err != nil {
		return nil, errors.Wrap(err, "cannot NewBotApi")
	}
	return &Client{client}, nil
}

// RegisterWebhook points Telegram at the public URL. A no-op when the
// webhook is managed out of band.
func (c *Client) RegisterWebhook(url string) error {
	if url == "" {
		return nil
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return errors.Wrap(err, "cannot build webhook config")
	}
	if _, err = c.client.Request(wh); err != nil {
		return errors.Wrap(err, "cannot register webhook")
	}
	logger.Info("webhook registered", zap.String("url", url))
	return nil
}

func (c *Client) SendMessage(text string, chatID int64) error {
	_, err := c.client.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return errors.Wrap(err, "client.Send")
	}
	return nil
}

// SendMenu sends text with the persistent reply keyboard attached.
func (c *Client) SendMenu(text string, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = menuKeyboard()
	if _, err := c.client.Send(msg); err != nil {
		return errors.Wrap(err, "client.Send")
	}
	return nil
}

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("➕ Catat Pengeluaran"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗓️ Pengeluaran Hari Ini"),
			tgbotapi.NewKeyboardButton("📜 Riwayat Pengeluaran"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("ℹ️ Bantuan"),
		),
	)
	kb.OneTimeKeyboard = false
	return kb
}
