package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/user"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/messages"
)

type dispatcher interface {
	HandleIncomingMessage(ctx context.Context, msg messages.Message) error
}

type readiness interface {
	Acquire(ctx context.Context) (*sql.DB, error)
}

type serverConfig interface {
	Addr() string
	StrictReady() bool
}

// Server is the webhook boundary. A delivery is acknowledged with
// 200 "OK" before any command or database work starts; the update is then
// dispatched on its own goroutine whose failures are logged, never
// surfaced upstream.
type Server struct {
	dispatch dispatcher
	store    readiness
	strict   bool
	srv      *http.Server

	wg sync.WaitGroup
}

func New(cfg serverConfig, dispatch dispatcher, store readiness) *Server {
	s := &Server{
		dispatch: dispatch,
		store:    store,
		strict:   cfg.StrictReady(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.HandleWebhook)
	mux.Handle("/metrics", promhttp.Handler())
	s.srv = &http.Server{Addr: cfg.Addr(), Handler: mux}

	return s
}

func (s *Server) ListenAndServe() error {
	logger.Info("webhook server listening", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting deliveries and waits for in-flight background
// dispatches to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// ack anyway: Telegram would redeliver an unparseable payload forever
		logger.Warn("cannot decode update", zap.Error(err))
	}

	if s.strict {
		if _, err := s.store.Acquire(r.Context()); err != nil {
			logger.Error("store unreachable, refusing delivery", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))

	msg, ok := reduceUpdate(update)
	if !ok {
		return
	}

	s.wg.Add(1)
	go s.dispatchAsync(msg)
}

func (s *Server) dispatchAsync(msg messages.Message) {
	defer s.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic during dispatch", zap.Any("panic", rec))
		}
	}()

	// the acknowledgment is already on the wire, so the dispatch gets a
	// fresh context rather than the request's
	if err := s.dispatch.HandleIncomingMessage(context.Background(), msg); err != nil {
		logger.Error("error processing update", zap.Error(err))
	}
}

func reduceUpdate(update tgbotapi.Update) (messages.Message, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return messages.Message{}, false
	}
	return messages.Message{
		Text:   m.Text,
		ChatID: m.Chat.ID,
		From: user.Identity{
			TelegramID: m.From.ID,
			FirstName:  m.From.FirstName,
			LastName:   m.From.LastName,
			UserName:   m.From.UserName,
		},
	}, true
}
