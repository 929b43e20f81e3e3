package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/expense"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/user"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/customerr"
)

const (
	startCommand   = "/start"
	addCommand     = "/add"
	todayCommand   = "/today"
	historyCommand = "/history"
)

// Menu button labels, kept byte-identical to the reply keyboard.
const (
	addButton     = "➕ Catat Pengeluaran"
	todayButton   = "🗓️ Pengeluaran Hari Ini"
	historyButton = "📜 Riwayat Pengeluaran"
	helpButton    = "ℹ️ Bantuan"
)

const (
	greetingMessage = "Halo %s! 👋 Aku siap membantu mencatat pengeluaran harianmu.\n" +
		"Pilih menu di bawah atau ketik perintah langsung."
	usageMessage = "Format: /add <jumlah> <deskripsi> [#kategori]\n" +
		"Contoh: /add 50000 Makan siang mie ayam"
	savedMessage        = "✅ Tercatat: %s — %s (%s)"
	todayHeader         = "🗓️ Pengeluaran hari ini:"
	historyHeader       = "📜 %d pengeluaran terakhir:"
	totalLine           = "Total: %s"
	emptyTodayMessage   = "Belum ada pengeluaran hari ini."
	emptyHistoryMessage = "Belum ada riwayat pengeluaran."
	fallbackMessage     = "Maaf, aku tidak mengerti. Ketik /start untuk melihat menu."
	apologyMessage      = "Maaf, terjadi kesalahan. Silakan coba lagi nanti."
	helpMessage         = "Aku mencatat pengeluaran harianmu.\n\n" +
		"/add <jumlah> <deskripsi> [#kategori] — catat pengeluaran\n" +
		"/today — pengeluaran hari ini beserta totalnya\n" +
		"/history — 5 pengeluaran terakhir\n" +
		"/start — tampilkan menu"
)

const historyDateLayout = "02.01.2006"

type userStorage interface {
	ResolveUser(ctx context.Context, id user.Identity) (int64, error)
}

type expenseStorage interface {
	userStorage
	SaveExpense(ctx context.Context, userID int64, rec expense.Record) (int64, error)
	TodayExpenses(ctx context.Context, userID int64, loc *time.Location) ([]expense.Record, error)
	RecentExpenses(ctx context.Context, userID int64, limit int) ([]expense.Record, error)
}

// replyCache and eventPublisher are optional collaborators; a nil value
// disables the concern.
type replyCache interface {
	CacheReply(userID int64, command, text string) error
	GetReply(userID int64, command string) (string, error)
	InvalidateReplies(userID int64, commands []string) error
}

type eventPublisher interface {
	ProduceMessage(message []byte) error
}

type appConfig interface {
	Timezone() string
	HistoryLimit() int
}

type handlerFunc func(ctx context.Context, arg string, msg Message) (Reply, error)

// route is one row of the dispatch table: the first matcher that accepts
// the text wins, and unmatched text falls through to the fallback reply.
type route struct {
	name   string
	match  func(text string) (arg string, ok bool)
	handle handlerFunc
}

type HandlerService struct {
	routes       []route
	storage      expenseStorage
	cache        replyCache
	events       eventPublisher
	loc          *time.Location
	historyLimit int
}

func newHandler(storage expenseStorage, config appConfig) *HandlerService {
	s := &HandlerService{
		storage:      storage,
		loc:          location(config.Timezone()),
		historyLimit: config.HistoryLimit(),
	}
	s.routes = newRoutes(s)
	return s
}

func newRoutes(s *HandlerService) []route {
	return []route{
		{name: "start", match: exact(startCommand), handle: s.handleStart},
		{name: "add", match: command(addCommand), handle: s.handleAdd},
		{name: "today", match: exact(todayCommand), handle: s.handleToday},
		{name: "history", match: exact(historyCommand), handle: s.handleHistory},
		{name: "add-button", match: exact(addButton), handle: s.handleAddHint},
		{name: "today-button", match: exact(todayButton), handle: s.handleToday},
		{name: "history-button", match: exact(historyButton), handle: s.handleHistory},
		{name: "help-button", match: exact(helpButton), handle: s.handleHelp},
	}
}

// HandleMessage walks the route table in order and runs the first match.
// Every command is handled independently; no conversation state is kept.
func (s *HandlerService) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Reply{}, nil
	}
	for _, r := range s.routes {
		if arg, ok := r.match(text); ok {
			return r.handle(ctx, arg, msg)
		}
	}
	return Reply{Text: fallbackMessage}, nil
}

func (s *HandlerService) handleStart(ctx context.Context, _ string, msg Message) (Reply, error) {
	if _, err := s.storage.ResolveUser(ctx, msg.From); err != nil {
		return Reply{}, errors.Wrap(err, "handle start")
	}
	return Reply{
		Text:     fmt.Sprintf(greetingMessage, msg.From.DisplayName()),
		WithMenu: true,
	}, nil
}

func (s *HandlerService) handleAdd(ctx context.Context, arg string, msg Message) (Reply, error) {
	amount, description, category, err := parseAdd(arg)
	if err != nil {
		return Reply{Text: usageMessage}, nil
	}

	userID, err := s.storage.ResolveUser(ctx, msg.From)
	if err != nil {
		return Reply{}, errors.Wrap(err, "handle add")
	}

	rec := expense.Record{
		Amount:      amount,
		Description: description,
		Category:    category,
		Date:        time.Now().In(s.loc),
	}
	expenseID, err := s.storage.SaveExpense(ctx, userID, rec)
	if err != nil {
		if customerr.IsValidation(err) {
			return Reply{Text: usageMessage}, nil
		}
		return Reply{}, errors.Wrap(err, "handle add")
	}

	s.invalidateReplies(userID)
	s.publishExpenseEvent(userID, expenseID, rec)

	if category == "" {
		category = expense.DefaultCategory
	}
	return Reply{Text: fmt.Sprintf(savedMessage, description, formatRupiah(amount), category)}, nil
}

func (s *HandlerService) handleToday(ctx context.Context, _ string, msg Message) (Reply, error) {
	userID, err := s.storage.ResolveUser(ctx, msg.From)
	if err != nil {
		return Reply{}, errors.Wrap(err, "handle today")
	}

	if text, ok := s.cachedReply(userID, todayCommand); ok {
		return Reply{Text: text}, nil
	}

	exps, err := s.storage.TodayExpenses(ctx, userID, s.loc)
	if err != nil {
		return Reply{}, errors.Wrap(err, "handle today")
	}
	if len(exps) == 0 {
		return Reply{Text: emptyTodayMessage}, nil
	}

	lines := make([]string, 0, len(exps)+2)
	lines = append(lines, todayHeader)
	total := decimal.Zero
	for _, e := range exps {
		lines = append(lines, fmt.Sprintf("• %s — %s (%s)", e.Description, formatRupiah(e.Amount), e.Category))
		total = total.Add(e.Amount)
	}
	lines = append(lines, "", fmt.Sprintf(totalLine, formatRupiah(total)))

	text := strings.Join(lines, "\n")
	s.cacheReply(userID, todayCommand, text)
	return Reply{Text: text}, nil
}

func (s *HandlerService) handleHistory(ctx context.Context, _ string, msg Message) (Reply, error) {
	userID, err := s.storage.ResolveUser(ctx, msg.From)
	if err != nil {
		return Reply{}, errors.Wrap(err, "handle history")
	}

	if text, ok := s.cachedReply(userID, historyCommand); ok {
		return Reply{Text: text}, nil
	}

	exps, err := s.storage.RecentExpenses(ctx, userID, s.historyLimit)
	if err != nil {
		return Reply{}, errors.Wrap(err, "handle history")
	}
	if len(exps) == 0 {
		return Reply{Text: emptyHistoryMessage}, nil
	}

	lines := make([]string, 0, len(exps)+1)
	lines = append(lines, fmt.Sprintf(historyHeader, len(exps)))
	for _, e := range exps {
		lines = append(lines, fmt.Sprintf("• %s — %s — %s (%s)",
			e.Date.In(s.loc).Format(historyDateLayout), e.Description, formatRupiah(e.Amount), e.Category))
	}

	text := strings.Join(lines, "\n")
	s.cacheReply(userID, historyCommand, text)
	return Reply{Text: text}, nil
}

func (s *HandlerService) handleAddHint(_ context.Context, _ string, _ Message) (Reply, error) {
	return Reply{Text: usageMessage}, nil
}

func (s *HandlerService) handleHelp(_ context.Context, _ string, _ Message) (Reply, error) {
	return Reply{Text: helpMessage}, nil
}

func (s *HandlerService) cachedReply(userID int64, command string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	text, err := s.cache.GetReply(userID, command)
	if err != nil {
		return "", false
	}
	return text, true
}

func (s *HandlerService) cacheReply(userID int64, command, text string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheReply(userID, command, text); err != nil {
		logger.Warn("failed to cache reply", zap.Error(err))
	}
}

func (s *HandlerService) invalidateReplies(userID int64) {
	if s.cache == nil {
		return
	}
	err := s.cache.InvalidateReplies(userID, []string{todayCommand, historyCommand})
	if err != nil {
		logger.Warn("failed to invalidate reply cache", zap.Error(err))
	}
}

type expenseEvent struct {
	UserID      int64  `json:"user_id"`
	ExpenseID   int64  `json:"expense_id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (s *HandlerService) publishExpenseEvent(userID, expenseID int64, rec expense.Record) {
	if s.events == nil {
		return
	}
	category := rec.Category
	if category == "" {
		category = expense.DefaultCategory
	}
	payload, err := json.Marshal(expenseEvent{
		UserID:      userID,
		ExpenseID:   expenseID,
		Amount:      rec.Amount.String(),
		Category:    category,
		Description: rec.Description,
		Date:        rec.Date.Format("2006-01-02"),
	})
	if err != nil {
		logger.Error("failed to marshal expense event", zap.Error(err))
		return
	}
	if err = s.events.ProduceMessage(payload); err != nil {
		logger.Error("failed to publish expense event", zap.Error(err))
	}
}
