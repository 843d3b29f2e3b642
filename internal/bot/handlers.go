package bot

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/models"
	"mex-balancer-bot-go/internal/security"
	"mex-balancer-bot-go/internal/trader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback data of the inline keyboards.
const (
	cbStartSnipe = "start_snipe"
	cbPortfolio  = "portfolio"
	cbStats      = "stats"
	cbUpgrade    = "upgrade"
	cbPayPro     = "pay_pro"
	cbPayWhale   = "pay_whale"
	cbSlippage   = "slippage_"
)

var defaultSlippageOptions = []int{50, 100, 200, 500}

// request is the sender and chat an update came from.
type request struct {
	chatID   int64
	userID   int64
	username string
	args     string
}

func newRequest(chatID int64, u *tgbotapi.User) request {
	name := u.UserName
	if name == "" {
		name = u.FirstName
	}
	return request{chatID: chatID, userID: u.ID, username: name}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil {
		return
	}
	r := newRequest(m.Chat.ID, m.From)

	if m.IsCommand() {
		r.args = strings.TrimSpace(m.CommandArguments())
		b.logger.Debug("Command", zap.String("command", m.Command()), zap.Int64("user_id", r.userID))
		b.handleCommand(ctx, m.Command(), r)
		return
	}

	c, ok := b.convs.Get(r.userID)
	if !ok {
		return
	}
	text := strings.TrimSpace(m.Text)
	switch c.State {
	case StateWaitingToken:
		b.onToken(ctx, r, text)
	case StateWaitingAmount:
		b.onAmount(ctx, r, c, text)
	case StateWaitingSlippage:
		b.reply(r.chatID, "📊 Pick a slippage option above, or /cancel")
	}
}

func (b *Bot) handleCommand(ctx context.Context, command string, r request) {
	switch command {
	case "start":
		b.cmdStart(ctx, r)
	case "snipe":
		b.cmdSnipe(ctx, r)
	case "wallet":
		b.cmdWallet(ctx, r)
	case "positions":
		b.cmdPositions(ctx, r)
	case "stats":
		b.cmdStats(ctx, r)
	case "upgrade":
		b.cmdUpgrade(r)
	case "revenue":
		b.cmdRevenue(ctx, r)
	case "admin":
		b.cmdAdmin(ctx, r)
	case "cancel":
		b.convs.Delete(r.userID)
		b.reply(r.chatID, msgCancelled)
	case "help":
		b.reply(r.chatID, helpText(b.cfg.Trading, b.feePercent(), b.cfg.Telegram.SupportContact))
	default:
		b.reply(r.chatID, msgUnknownCommand)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	b.answer(cq.ID)
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	r := newRequest(cq.Message.Chat.ID, cq.From)

	switch data := cq.Data; {
	case data == cbStartSnipe:
		b.cmdSnipe(ctx, r)
	case data == cbPortfolio:
		b.cmdPositions(ctx, r)
	case data == cbStats:
		b.cmdStats(ctx, r)
	case data == cbUpgrade:
		b.cmdUpgrade(r)
	case data == cbPayPro:
		b.payment(ctx, r, models.TierPro)
	case data == cbPayWhale:
		b.payment(ctx, r, models.TierWhale)
	case strings.HasPrefix(data, cbSlippage):
		b.onSlippage(ctx, r, cq.Message.MessageID, strings.TrimPrefix(data, cbSlippage))
	default:
		b.logger.Debug("Unknown callback", zap.String("data", data))
	}
}

func (b *Bot) cmdStart(ctx context.Context, r request) {
	if _, err := b.store.EnsureUser(ctx, r.userID, r.username); err != nil {
		b.logger.Error("Failed to register user", zap.Int64("user_id", r.userID), zap.Error(err))
	}
	name := strings.ReplaceAll(r.username, "`", "'")
	text := welcomeText(name, r.userID, b.feePercent(), b.cfg.Telegram.IsAdmin(r.userID))
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎯 START SNIPING", cbStartSnipe)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 PORTFOLIO", cbPortfolio)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📈 STATS", cbStats),
			tgbotapi.NewInlineKeyboardButtonData("💎 UPGRADE", cbUpgrade),
		),
	)
	b.replyWithKeyboard(r.chatID, text, kb)
}

func (b *Bot) cmdSnipe(ctx context.Context, r request) {
	user, err := b.store.EnsureUser(ctx, r.userID, r.username)
	if err != nil {
		b.logger.Error("Failed to load user", zap.Int64("user_id", r.userID), zap.Error(err))
		b.reply(r.chatID, "⚠️ Service temporarily unavailable, please try again later")
		return
	}

	now := b.now()
	limit := b.cfg.Subscription.FreeDailySnipes
	if limit > 0 && !b.cfg.Telegram.IsAdmin(r.userID) && user.EffectiveTier(now) == models.TierFree {
		n, err := b.store.CountTradesSince(ctx, r.userID, now.Add(-24*time.Hour))
		if err != nil {
			b.logger.Warn("Failed to count recent snipes", zap.Int64("user_id", r.userID), zap.Error(err))
		} else if n >= int64(limit) {
			b.reply(r.chatID, limitReachedText(limit))
			return
		}
	}

	b.convs.Set(r.userID, Conversation{State: StateWaitingToken})
	if r.args != "" {
		b.onToken(ctx, r, r.args)
		return
	}
	b.reply(r.chatID, msgSnipePrompt)
}

func (b *Bot) onToken(ctx context.Context, r request, mint string) {
	if err := security.ValidateSolanaAddress(mint); err != nil {
		b.convs.Delete(r.userID)
		b.reply(r.chatID, msgInvalidAddress)
		return
	}

	pending := b.reply(r.chatID, msgAnalyzing)
	a := b.analyzer.FullAnalysis(ctx, mint)
	l := b.logger.With(zap.Int64("user_id", r.userID), zap.String("mint", mint))

	if !a.IsSafe {
		b.convs.Delete(r.userID)
		l.Info("Trade blocked", zap.Float64("risk_score", a.RiskScore), zap.String("reason", a.DangerReason))
		b.replace(r.chatID, pending.MessageID, dangerText(mint, a))
		if err := b.notifier.NotifyChannel(ctx, rugBlockedText(mint, a), false); err != nil {
			l.Warn("Failed to announce blocked rug", zap.Error(err))
		}
		return
	}

	b.convs.Set(r.userID, Conversation{State: StateWaitingAmount, Mint: mint, Symbol: a.DisplayName()})
	b.replace(r.chatID, pending.MessageID, analysisText(mint, a))
}

func (b *Bot) onAmount(ctx context.Context, r request, c Conversation, text string) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(text), "SOL")), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		b.convs.Set(r.userID, c)
		b.reply(r.chatID, msgInvalidNumber)
		return
	}
	if amount < b.cfg.Trading.MinAmountSOL {
		b.convs.Set(r.userID, c)
		b.reply(r.chatID, fmt.Sprintf("❌ Minimum investment is %s SOL", trimFloat(b.cfg.Trading.MinAmountSOL)))
		return
	}
	if !b.cfg.Trading.DryRun {
		balance, err := b.executor.WalletBalance(ctx)
		if err != nil {
			b.logger.Warn("Balance unavailable, skipping check", zap.Error(err))
		} else if amount > balance {
			b.convs.Set(r.userID, c)
			b.reply(r.chatID, fmt.Sprintf("❌ Insufficient balance: wallet holds %.4f SOL", balance))
			return
		}
	}

	c.AmountSOL = amount
	c.State = StateWaitingSlippage
	b.convs.Set(r.userID, c)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, bps := range b.slippageOptions() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(slippageLabel(bps), cbSlippage+strconv.Itoa(bps)),
		))
	}
	text = fmt.Sprintf("💰 Investment: `%s` SOL\n\n📊 Select slippage tolerance:", trimFloat(amount))
	b.replyWithKeyboard(r.chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) onSlippage(ctx context.Context, r request, messageID int, arg string) {
	bps, err := strconv.Atoi(arg)
	if err != nil || !b.allowedSlippage(bps) {
		b.reply(r.chatID, "❌ Unknown slippage option")
		return
	}
	c, ok := b.convs.Take(r.userID, StateWaitingSlippage)
	if !ok {
		b.reply(r.chatID, msgSessionExpired)
		return
	}
	l := b.logger.With(zap.Int64("user_id", r.userID), zap.String("mint", c.Mint), zap.Float64("amount_sol", c.AmountSOL), zap.Int("slippage_bps", bps))

	b.replace(r.chatID, messageID, executingText(c, bps))

	res, err := b.executor.Snipe(ctx, c.Mint, c.AmountSOL, bps)
	if err != nil {
		l.Error("Snipe failed", zap.Error(err))
		b.replace(r.chatID, messageID, snipeFailedText(err))
		return
	}

	trade := &models.Trade{
		UserID:          r.userID,
		TokenAddress:    c.Mint,
		AmountSOL:       c.AmountSOL,
		EntryPrice:      res.EntryPrice,
		TokenAmount:     models.RawAmount(res.TokenAmount),
		TokenDecimals:   res.TokenDecimals,
		TxSignature:     res.Signature,
		Status:          models.StatusActive,
		AutoSellEnabled: true,
		IsSimulation:    res.Simulated,
	}
	text := snipeSuccessText(c, res, b.cfg.Trading, b.feePercent())
	if _, err := b.store.RecordTrade(ctx, trade); err != nil {
		l.Error("Failed to record trade", zap.String("signature", res.Signature), zap.Error(err))
		text += "\n\n⚠️ The trade could not be saved, auto-sell is not active for it."
	} else {
		b.monitor.AddPosition(trader.PositionFromTrade(*trade))
		l.Info("Snipe executed", zap.Uint("trade_id", trade.ID), zap.String("signature", res.Signature), zap.Bool("simulated", res.Simulated))
	}
	b.replace(r.chatID, messageID, text)

	if err := b.notifier.NotifyChannel(ctx, newTradeChannelText(r.userID, c, res.Simulated), false); err != nil {
		l.Warn("Failed to announce trade", zap.Error(err))
	}
}

func (b *Bot) cmdWallet(ctx context.Context, r request) {
	var balance, price *float64
	if bal, err := b.executor.WalletBalance(ctx); err != nil {
		b.logger.Warn("Balance lookup failed", zap.Error(err))
	} else {
		balance = &bal
	}
	if b.prices != nil {
		if p, err := b.prices.SOLPrice(ctx); err != nil {
			b.logger.Warn("SOL price lookup failed", zap.Error(err))
		} else {
			price = &p
		}
	}
	b.reply(r.chatID, walletText(b.executor.WalletAddress(), balance, price))
}

func (b *Bot) cmdPositions(ctx context.Context, r request) {
	trades, err := b.store.ActivePositions(ctx, r.userID)
	if err != nil {
		b.logger.Error("Failed to load positions", zap.Int64("user_id", r.userID), zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not load positions, please try again later")
		return
	}
	if len(trades) == 0 {
		b.reply(r.chatID, msgNoPositions)
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 *ACTIVE POSITIONS*\n\n")
	for _, t := range trades {
		p := trader.PositionFromTrade(t)
		value, pnl, err := b.monitor.ValueOf(ctx, *p)
		sb.WriteString(positionLine(*p, value, pnl, err))
	}
	b.reply(r.chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) cmdStats(ctx context.Context, r request) {
	user, err := b.store.EnsureUser(ctx, r.userID, r.username)
	if err != nil {
		b.logger.Error("Failed to load user", zap.Int64("user_id", r.userID), zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not load statistics, please try again later")
		return
	}
	trades, err := b.store.ClosedTrades(ctx, r.userID)
	if err != nil {
		b.logger.Error("Failed to load closed trades", zap.Int64("user_id", r.userID), zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not load statistics, please try again later")
		return
	}
	now := b.now()
	b.reply(r.chatID, statsText(user, database.ComputeStatistics(trades, now), user.EffectiveTier(now)))
}

func (b *Bot) cmdUpgrade(r request) {
	sub := b.cfg.Subscription
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⚡ BUY PRO (%s SOL)", trimFloat(sub.ProPriceSOL)), cbPayPro)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🐋 BUY WHALE (%s SOL)", trimFloat(sub.WhalePriceSOL)), cbPayWhale)),
	}
	if contact := strings.TrimPrefix(b.cfg.Telegram.SupportContact, "@"); contact != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💬 Contact Admin", "https://t.me/"+contact)))
	}
	b.replyWithKeyboard(r.chatID, upgradeText(sub, b.feePercent()), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) payment(ctx context.Context, r request, tier string) {
	wallet := ""
	if b.fees != nil {
		wallet = b.fees.Wallet()
	}
	if wallet == "" {
		b.reply(r.chatID, msgPaymentsDisabled)
		return
	}
	price := b.cfg.Subscription.ProPriceSOL
	if tier == models.TierWhale {
		price = b.cfg.Subscription.WhalePriceSOL
	}
	b.reply(r.chatID, paymentText(tier, price, wallet, r.userID, b.cfg.Subscription.PeriodDays))

	if admin := b.cfg.Telegram.AdminID; admin != 0 {
		text := fmt.Sprintf("💳 User `%d` requested *%s* (%s SOL, memo `MEX-%d`)", r.userID, strings.ToUpper(tier), trimFloat(price), r.userID)
		if err := b.notifier.NotifyUser(ctx, admin, text); err != nil {
			b.logger.Warn("Failed to notify admin of upgrade request", zap.Error(err))
		}
	}
}

func (b *Bot) requireAdmin(r request) bool {
	if b.cfg.Telegram.IsAdmin(r.userID) {
		return true
	}
	b.logger.Warn("Admin command refused", zap.Int64("user_id", r.userID))
	b.reply(r.chatID, msgAdminOnly)
	return false
}

func (b *Bot) cmdRevenue(ctx context.Context, r request) {
	if !b.requireAdmin(r) {
		return
	}
	text, err := b.revenueReport(ctx)
	if err != nil {
		b.logger.Error("Failed to compute revenue", zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not compute revenue")
		return
	}
	b.reply(r.chatID, text)
}

func (b *Bot) revenueReport(ctx context.Context) (string, error) {
	now := b.now()
	day, err := b.store.Revenue(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return "", err
	}
	month, err := b.store.Revenue(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return "", err
	}
	all, err := b.store.Revenue(ctx, time.Time{})
	if err != nil {
		return "", err
	}
	volume, err := b.store.VolumeSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return "", err
	}
	return revenueText(day, month, all, b.fees.Projections(volume), b.solPrice(ctx)), nil
}

func (b *Bot) cmdAdmin(ctx context.Context, r request) {
	if !b.requireAdmin(r) {
		return
	}
	fields := strings.Fields(r.args)
	if len(fields) == 0 {
		b.adminOverview(ctx, r)
		return
	}
	switch strings.ToLower(fields[0]) {
	case "tier":
		b.adminTier(ctx, r, fields[1:])
	case "token":
		b.adminToken(r)
	default:
		b.reply(r.chatID, escape("Usage:\n/admin\n/admin tier <user_id> <free|pro|whale> [days]\n/admin token"))
	}
}

func (b *Bot) adminOverview(ctx context.Context, r request) {
	o, err := b.store.Overview(ctx)
	if err != nil {
		b.logger.Error("Failed to load overview", zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not load overview")
		return
	}
	var balance *float64
	if bal, err := b.executor.WalletBalance(ctx); err == nil {
		balance = &bal
	}
	b.reply(r.chatID, adminText(o, balance, b.monitor.IsRunning(), b.monitor.ActiveCount(), b.cfg.Trading.DryRun))
}

func (b *Bot) adminTier(ctx context.Context, r request, args []string) {
	usage := escape("Usage: /admin tier <user_id> <free|pro|whale> [days]")
	if len(args) < 2 {
		b.reply(r.chatID, usage)
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	tier := strings.ToLower(args[1])
	if err != nil || !models.ValidTier(tier) {
		b.reply(r.chatID, usage)
		return
	}
	days := b.cfg.Subscription.PeriodDays
	if len(args) > 2 {
		if days, err = strconv.Atoi(args[2]); err != nil || days <= 0 {
			b.reply(r.chatID, usage)
			return
		}
	}

	var expires *time.Time
	until := "forever"
	if tier != models.TierFree && days > 0 {
		t := b.now().AddDate(0, 0, days)
		expires = &t
		until = t.Format("2006-01-02")
	}
	if err := b.store.SetUserTier(ctx, userID, tier, expires); err != nil {
		b.logger.Error("Failed to set tier", zap.Int64("target", userID), zap.String("tier", tier), zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not update tier: "+escape(err.Error()))
		return
	}
	b.logger.Info("Tier updated", zap.Int64("target", userID), zap.String("tier", tier), zap.String("until", until))
	b.reply(r.chatID, fmt.Sprintf("✅ User `%d` is now *%s* (until %s)", userID, strings.ToUpper(tier), until))

	if tier != models.TierFree {
		msg := fmt.Sprintf("🎉 Your subscription is now *%s* until %s. Happy sniping!", strings.ToUpper(tier), until)
		if err := b.notifier.NotifyUser(ctx, userID, msg); err != nil {
			b.logger.Warn("Failed to notify upgraded user", zap.Int64("target", userID), zap.Error(err))
		}
	}
}

func (b *Bot) adminToken(r request) {
	secret := b.cfg.Security.JWTSecret
	if secret == "" {
		b.reply(r.chatID, "⚠️ JWT\\_SECRET is not configured")
		return
	}
	ttl := time.Duration(b.cfg.Security.TokenTTL) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tok, err := security.IssueAdminToken(secret, r.userID, ttl)
	if err != nil {
		b.logger.Error("Failed to issue admin token", zap.Error(err))
		b.reply(r.chatID, "⚠️ Could not issue token")
		return
	}
	b.reply(r.chatID, fmt.Sprintf("🔑 *Dashboard token* (valid %s)\n\n`%s`", ttl, tok))
}

func (b *Bot) solPrice(ctx context.Context) *float64 {
	if b.prices == nil {
		return nil
	}
	p, err := b.prices.SOLPrice(ctx)
	if err != nil {
		b.logger.Warn("SOL price lookup failed", zap.Error(err))
		return nil
	}
	return &p
}

func (b *Bot) feePercent() float64 {
	if b.fees == nil {
		return b.cfg.Fees.Percent
	}
	return b.fees.Percent()
}

func (b *Bot) slippageOptions() []int {
	if len(b.cfg.Trading.SlippageOptions) == 0 {
		return defaultSlippageOptions
	}
	return b.cfg.Trading.SlippageOptions
}

func (b *Bot) allowedSlippage(bps int) bool {
	for _, o := range b.slippageOptions() {
		if o == bps {
			return true
		}
	}
	return false
}

// reply sends a Markdown message and returns it; the zero Message is returned on failure.
func (b *Bot) reply(chatID int64, text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.send(msg)
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = kb
	return b.send(msg)
}

// replace edits a previously sent message, falling back to a new one when it is unknown.
func (b *Bot) replace(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit)
}

func (b *Bot) send(c tgbotapi.Chattable) tgbotapi.Message {
	m, err := b.api.Send(c)
	if err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
		return tgbotapi.Message{}
	}
	return m
}

func (b *Bot) answer(callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}
