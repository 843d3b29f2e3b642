package bot

import (
	"context"
	"sync"
	"time"

	"mex-balancer-bot-go/internal/analyzer"
	"mex-balancer-bot-go/internal/binance"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/fees"
	"mex-balancer-bot-go/internal/models"
	"mex-balancer-bot-go/internal/sniper"
	"mex-balancer-bot-go/internal/trader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotAPI is the part of the Telegram client the bot uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ BotAPI = (*tgbotapi.BotAPI)(nil)

// Store is the persistence the handlers need.
type Store interface {
	EnsureUser(ctx context.Context, userID int64, username string) (*models.User, error)
	RecordTrade(ctx context.Context, trade *models.Trade) (uint, error)
	ActivePositions(ctx context.Context, userID int64) ([]models.Trade, error)
	ClosedTrades(ctx context.Context, userID int64) ([]models.Trade, error)
	CountTradesSince(ctx context.Context, userID int64, since time.Time) (int64, error)
	SetUserTier(ctx context.Context, userID int64, tier string, expires *time.Time) error
	Revenue(ctx context.Context, since time.Time) (database.RevenueStats, error)
	VolumeSince(ctx context.Context, since time.Time) (float64, error)
	Overview(ctx context.Context) (database.Overview, error)
}

var _ Store = (*database.Store)(nil)

// Monitor is the auto-sell engine as seen from the chat.
type Monitor interface {
	AddPosition(p *trader.Position)
	ActiveCount() int
	IsRunning() bool
	ValueOf(ctx context.Context, p trader.Position) (float64, float64, error)
}

var _ Monitor = (*trader.Engine)(nil)

// Deps are the services the bot drives.
type Deps struct {
	Store    Store
	Analyzer analyzer.TokenAnalyzer
	Executor sniper.TradeExecutor
	Monitor  Monitor
	Fees     *fees.Manager
	Prices   binance.PriceSource
	Notifier *Notifier
}

// Bot routes Telegram updates to command and conversation handlers.
type Bot struct {
	api      BotAPI
	cfg      *config.Config
	store    Store
	analyzer analyzer.TokenAnalyzer
	executor sniper.TradeExecutor
	monitor  Monitor
	fees     *fees.Manager
	prices   binance.PriceSource
	notifier *Notifier
	convs    *ConversationStore
	logger   *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// New creates a bot. A nil Notifier in deps is built from api and the configured channel.
func New(api BotAPI, cfg *config.Config, deps Deps, logger *zap.Logger) *Bot {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewNotifier(api, cfg.Telegram.ChannelID, logger)
	}
	return &Bot{
		api:      api,
		cfg:      cfg,
		store:    deps.Store,
		analyzer: deps.Analyzer,
		executor: deps.Executor,
		monitor:  deps.Monitor,
		fees:     deps.Fees,
		prices:   deps.Prices,
		notifier: notifier,
		convs:    NewConversationStore(time.Duration(cfg.Telegram.ConversationTTL) * time.Second),
		logger:   logger.Named("bot"),
		now:      time.Now,
	}
}

// Run long-polls Telegram and handles each update in its own goroutine until ctx is done.
// It waits for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.UpdateTimeout
	updates := b.api.GetUpdatesChan(u)

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	b.logger.Info("Listening for Telegram updates")
	defer b.wg.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping Telegram bot...")
			return
		case <-sweep.C:
			if n := b.convs.Sweep(); n > 0 {
				b.logger.Debug("Expired conversations", zap.Int("count", n))
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked", zap.Any("panic", r), zap.Int("update_id", update.UpdateID))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// RunHeartbeat posts a silent status message to the channel every heartbeat interval.
func (b *Bot) RunHeartbeat(ctx context.Context) {
	interval := b.cfg.Trading.HeartbeatEvery()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sendHeartbeat(ctx)
		}
	}
}

func (b *Bot) sendHeartbeat(ctx context.Context) {
	var balance *float64
	if bal, err := b.executor.WalletBalance(ctx); err != nil {
		b.logger.Warn("Heartbeat balance lookup failed", zap.Error(err))
	} else {
		balance = &bal
	}
	text := heartbeatText(balance, b.monitor.ActiveCount(), b.cfg.Trading.DryRun)
	if err := b.notifier.NotifyChannel(ctx, text, true); err != nil {
		b.logger.Error("Heartbeat failed", zap.Error(err))
	}
}
