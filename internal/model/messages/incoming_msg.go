package messages

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/user"
)

type messageSender interface {
	SendMessage(text string, chatID int64) error
	SendMenu(text string, chatID int64) error
}

// Message is one inbound delivery, reduced to what the handlers need.
type Message struct {
	Text   string
	ChatID int64
	From   user.Identity
}

// Reply is what a handler wants sent back. WithMenu attaches the
// persistent reply keyboard.
type Reply struct {
	Text     string
	WithMenu bool
}

type Service struct {
	tgClient messageSender
	handler  *HandlerService
}

func NewService(tgClient messageSender, storage expenseStorage, config appConfig) *Service {
	return &Service{
		tgClient: tgClient,
		handler:  newHandler(storage, config),
	}
}

// WithReplyCache enables the optional memcached reply cache.
func (s *Service) WithReplyCache(c replyCache) {
	s.handler.cache = c
}

// WithEventPublisher enables the optional expense event stream.
func (s *Service) WithEventPublisher(p eventPublisher) {
	s.handler.events = p
}

// HandleIncomingMessage routes one message and sends the reply. Store
// and connection failures become the generic apology reply; the error is
// still returned so the caller can log it.
func (s *Service) HandleIncomingMessage(ctx context.Context, msg Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "handleMessage")
	defer span.Finish()

	start := time.Now()
	err := s.handle(ctx, msg)
	elapsed := time.Since(start)

	observeResponse(elapsed, err != nil)
	if err != nil {
		ext.Error.Set(span, true)
	}
	return err
}

func (s *Service) handle(ctx context.Context, msg Message) error {
	reply, err := s.handler.HandleMessage(ctx, msg)
	if err != nil {
		_ = s.tgClient.SendMessage(apologyMessage, msg.ChatID)
		return err
	}
	if reply.Text == "" {
		return nil
	}
	if reply.WithMenu {
		return s.tgClient.SendMenu(reply.Text, msg.ChatID)
	}
	return s.tgClient.SendMessage(reply.Text, msg.ChatID)
}
