package bot

import (
	"fmt"
	"strconv"
	"strings"

	"mex-balancer-bot-go/internal/analyzer"
	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/fees"
	"mex-balancer-bot-go/internal/models"
	"mex-balancer-bot-go/internal/sniper"
	"mex-balancer-bot-go/internal/trader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgCancelled        = "❌ Operation cancelled"
	msgInvalidAddress   = "❌ Invalid Solana address format"
	msgInvalidNumber    = "❌ Please enter a valid number"
	msgAdminOnly        = "⛔ Admin only"
	msgSessionExpired   = "⌛ Session expired. Use /snipe to start again."
	msgUnknownCommand   = "Unknown command. Use /help to see what I can do."
	msgNoPositions      = "📭 *No Active Positions*\n\nUse /snipe to start trading"
	msgUnavailable      = "unavailable"
	msgPaymentsDisabled = "💳 Payments are not configured yet. Please contact support."
)

const msgSnipePrompt = "🎯 *SNIPER MODE ACTIVATED*\n\n" +
	"Please send the token contract address:\n" +
	"Example: `EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v`\n\n" +
	"/cancel to abort"

const msgAnalyzing = "🔍 *Analyzing Token...*\n" +
	"• Checking contract safety\n" +
	"• Verifying liquidity\n" +
	"• Scanning for honeypots\n" +
	"• Analyzing holder distribution"

func welcomeText(name string, userID int64, feePercent float64, admin bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *MEX BALANCER - ELITE SNIPER BOT*\n\n")
	fmt.Fprintf(&b, "👤 Welcome, %s\n🆔 User ID: `%d`\n\n", escape(name), userID)
	b.WriteString("📊 *What This Bot Does:*\n")
	b.WriteString("• ⚡ Ultra-fast Solana token sniping\n")
	b.WriteString("• 🛡️ Auto rug-check & safety analysis\n")
	b.WriteString("• 🤖 Auto-buy & auto-sell with profit targets\n")
	b.WriteString("• 📈 Real-time P&L tracking\n")
	fmt.Fprintf(&b, "• 💰 Transparent fee structure (%s%% on profits only)\n\n", trimFloat(feePercent))
	b.WriteString("🎮 *Commands:*\n")
	b.WriteString("/snipe - Start new snipe\n")
	b.WriteString("/positions - View active trades\n")
	b.WriteString("/wallet - Check balance & deposits\n")
	b.WriteString("/stats - Your trading statistics\n")
	b.WriteString("/upgrade - Subscription tiers\n")
	b.WriteString("/help - Full documentation\n\n")
	b.WriteString("⚠️ *Risk Warning:*\n")
	b.WriteString("Trading cryptocurrencies carries high risk. Never invest more than you can afford to lose.")
	if admin {
		b.WriteString("\n\n🔐 *ADMIN PANEL:*\n")
		b.WriteString("/admin - Admin dashboard\n")
		b.WriteString("/admin tier <user> <free|pro|whale> \\[days] - Set subscription\n")
		b.WriteString("/admin token - Issue dashboard API token\n")
		b.WriteString("/revenue - Fee collection stats")
	}
	return b.String()
}

func helpText(trading config.Trading, feePercent float64, support string) string {
	if support == "" {
		support = "the bot admin"
	}
	return fmt.Sprintf("📚 *MEX BALANCER DOCUMENTATION*\n\n"+
		"*GETTING STARTED:*\n"+
		"1. Deposit SOL to the bot wallet (/wallet)\n"+
		"2. Use /snipe to start trading\n"+
		"3. Bot auto-analyzes every token\n"+
		"4. Auto-sell protects your profits\n\n"+
		"*SAFETY FEATURES:*\n"+
		"• 🔍 Pre-trade rug detection\n"+
		"• 🛡️ Honeypot protection\n"+
		"• 📊 Liquidity verification\n"+
		"• 🚨 Auto-scam blocking\n\n"+
		"*AUTO-TRADE LOGIC:*\n"+
		"• TP1: +%s%% (sell %s%%)\n"+
		"• TP2: +%s%% (sell rest)\n"+
		"• SL: -%s%% (sell 100%%)\n"+
		"• Trailing stop above +%s%%\n\n"+
		"*FEE STRUCTURE:*\n"+
		"• %s%% on profitable trades only\n"+
		"• No fees on losses\n"+
		"• Gas fees: ~0.001 SOL per trade\n\n"+
		"*COMMANDS:*\n"+
		"/snipe /positions /wallet /stats /upgrade /cancel\n\n"+
		"Need help? Contact: %s",
		trimFloat(trading.TakeProfit1Pct), trimFloat(trading.TakeProfit1Portion*100),
		trimFloat(trading.TakeProfit2Pct), trimFloat(trading.StopLossPct),
		trimFloat(trading.TrailingActivationPct), trimFloat(feePercent), escape(support))
}

func dangerText(mint string, a *analyzer.Analysis) string {
	return fmt.Sprintf("🚨 *DANGER DETECTED - TRADE BLOCKED*\n\n"+
		"Token: `%s`\n"+
		"Risk Score: %.0f/100\n"+
		"Reason: %s\n\n"+
		"⚠️ This token has been flagged as high risk.\n"+
		"Bot has automatically rejected this trade to protect your funds.",
		mint, a.RiskScore, escape(a.DangerReason))
}

func rugBlockedText(mint string, a *analyzer.Analysis) string {
	return fmt.Sprintf("🛡️ *RUG BLOCKED*\nToken: `%s`\nRisk: %.0f/100\nSaved user from potential scam", mint, a.RiskScore)
}

func riskFlag(risky bool) string {
	if risky {
		return "🔴 Risky"
	}
	return "🟢 Safe"
}

func analysisText(mint string, a *analyzer.Analysis) string {
	price := msgUnavailable
	if a.PriceUSD > 0 {
		price = "$" + strconv.FormatFloat(a.PriceUSD, 'f', -1, 64)
	}
	return fmt.Sprintf("✅ *TOKEN ANALYSIS COMPLETE*\n\n"+
		"🪙 Token: %s\n"+
		"📋 Contract: `%s`\n"+
		"🛡️ Safety Score: %.0f/100\n"+
		"💲 Price: %s\n"+
		"💧 Liquidity: $%s\n"+
		"👥 Holders: %d\n"+
		"🏦 Mint Authority: %s\n"+
		"🔥 Freeze Authority: %s\n"+
		"🐋 Top 10 Holdings: %.1f%%\n"+
		"💸 Sell Tax: %.1f%%\n\n"+
		"💰 How much SOL to invest?",
		escape(a.DisplayName()), mint, a.SafetyScore, price, formatUSD(a.LiquidityUSD), a.HolderCount,
		riskFlag(a.MintAuthority), riskFlag(a.FreezeAuthority), a.Top10Percent, a.SellTax)
}

func slippageLabel(bps int) string {
	label := trimFloat(float64(bps)/100) + "%"
	switch {
	case bps <= 50:
		return label + " (Safe)"
	case bps <= 100:
		return label + " (Normal)"
	case bps <= 200:
		return label + " (Fast)"
	default:
		return label + " (Aggressive)"
	}
}

func executingText(c Conversation, bps int) string {
	return fmt.Sprintf("🚀 *EXECUTING SNIPER...*\n\n"+
		"Target: `%s`\n"+
		"Amount: %s SOL\n"+
		"Slippage: %s%%\n\n"+
		"⚡ Submitting transaction...",
		c.Mint, trimFloat(c.AmountSOL), trimFloat(float64(bps)/100))
}

func snipeSuccessText(c Conversation, res *sniper.SnipeResult, trading config.Trading, feePercent float64) string {
	var b strings.Builder
	if res.Simulated {
		b.WriteString("🧪 *SIMULATED SNIPE (dry run)*\n\n")
	} else {
		b.WriteString("✅ *SNIPER SUCCESS!*\n\n")
	}
	fmt.Fprintf(&b, "🎯 Token: `%s`\n", c.Mint)
	fmt.Fprintf(&b, "💰 Invested: %s SOL\n", trimFloat(c.AmountSOL))
	fmt.Fprintf(&b, "📊 Entry Price: %.10f SOL\n", res.EntryPrice)
	fmt.Fprintf(&b, "🪙 Tokens Received: %s\n", chain.FormatTokens(res.TokensUI()))
	fmt.Fprintf(&b, "📉 Price Impact: %.2f%%\n", res.PriceImpact)
	fmt.Fprintf(&b, "🔗 TX: `%s`\n", res.Signature)
	if res.BundleID != "" {
		fmt.Fprintf(&b, "📦 Jito bundle: `%s`\n", res.BundleID)
	}
	b.WriteString("\n🤖 *Auto-sell activated:*\n")
	fmt.Fprintf(&b, "• Take Profit 1: +%s%% (%s%% sell)\n", trimFloat(trading.TakeProfit1Pct), trimFloat(trading.TakeProfit1Portion*100))
	fmt.Fprintf(&b, "• Take Profit 2: +%s%% (sell rest)\n", trimFloat(trading.TakeProfit2Pct))
	fmt.Fprintf(&b, "• Stop Loss: -%s%%\n", trimFloat(trading.StopLossPct))
	fmt.Fprintf(&b, "• Fee: %s%% of profit, charged at exit\n\n", trimFloat(feePercent))
	b.WriteString("⏱️ Monitoring 24/7...")
	return b.String()
}

func newTradeChannelText(userID int64, c Conversation, simulated bool) string {
	mode := "Live"
	if simulated {
		mode = "Simulation"
	}
	return fmt.Sprintf("🔥 *NEW SNIPER TRADE*\nUser: `%d`\nToken: `%s`\nAmount: %s SOL\nMode: %s\nAuto-sell: Active",
		userID, c.Mint, trimFloat(c.AmountSOL), mode)
}

func snipeFailedText(err error) string {
	return fmt.Sprintf("❌ *SNIPER FAILED*\n\nError: %s\nYour funds are safe. No transaction was executed.", escape(err.Error()))
}

func limitReachedText(limit int) string {
	return fmt.Sprintf("🚫 *Daily limit reached*\n\n"+
		"The free tier allows %d snipes per 24 hours.\n"+
		"Use /upgrade for unlimited sniping.", limit)
}

func walletText(address string, balance, price *float64) string {
	var b strings.Builder
	b.WriteString("💼 *YOUR TRADING WALLET*\n\n")
	fmt.Fprintf(&b, "📍 Address: `%s`\n", address)
	if balance == nil {
		fmt.Fprintf(&b, "💰 Balance: %s\n", msgUnavailable)
	} else {
		fmt.Fprintf(&b, "💰 Balance: `%.6f` SOL\n", *balance)
		if price != nil {
			fmt.Fprintf(&b, "💵 Value: $%s\n", formatUSD(*balance**price))
		} else {
			fmt.Fprintf(&b, "💵 Value: %s\n", msgUnavailable)
		}
	}
	b.WriteString("\n📥 *Deposit SOL to this address to start trading*\n\n")
	b.WriteString("⚠️ *Important:*\n")
	b.WriteString("• Only send SOL to this address\n")
	b.WriteString("• Minimum deposit: 0.05 SOL\n")
	b.WriteString("• Gas fees are deducted from balance")
	return b.String()
}

func positionLine(p trader.Position, value, pnl float64, err error) string {
	invested := p.Invested()
	if err != nil {
		return fmt.Sprintf("⚪ `%s`\n   Invested: %.3f SOL\n   Current: %s\n\n", shortMint(p.Mint), invested, msgUnavailable)
	}
	emoji := "🔴"
	if pnl > 0 {
		emoji = "🟢"
	}
	var tp string
	switch {
	case p.TP2Hit:
		tp = "\n   TP2 hit"
	case p.TP1Hit:
		tp = "\n   TP1 hit, trailing"
	}
	return fmt.Sprintf("%s `%s`\n   Invested: %.3f SOL\n   Current: %.3f SOL\n   P&L: %+.2f%%%s\n\n",
		emoji, shortMint(p.Mint), invested, value, pnl, tp)
}

func statsText(user *models.User, stats database.Statistics, tier string) string {
	var b strings.Builder
	b.WriteString("📈 *YOUR STATISTICS*\n\n")
	writeDetail := func(title string, d database.StatsDetail) {
		fmt.Fprintf(&b, "*%s*\n", title)
		fmt.Fprintf(&b, "Trades: %d (%d profitable)\n", d.TotalTrades, d.ProfitableTrades)
		fmt.Fprintf(&b, "Win rate: %.1f%%\n", d.WinRate*100)
		fmt.Fprintf(&b, "Profit: %+.4f SOL\n", d.TotalProfit)
		fmt.Fprintf(&b, "Fees paid: %.4f SOL\n\n", d.FeesPaid)
	}
	writeDetail("Last 24h", stats.Since24h)
	writeDetail("All time", stats.AllTime)
	b.WriteString("*Account*\n")
	fmt.Fprintf(&b, "Tier: %s\n", strings.ToUpper(tier))
	if user.TierExpiresAt != nil && tier != models.TierFree {
		fmt.Fprintf(&b, "Renews: %s\n", user.TierExpiresAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Snipes: %d\n", user.TotalTrades)
	fmt.Fprintf(&b, "Net P&L: %+.4f SOL", user.TotalPnLSOL)
	return b.String()
}

func upgradeText(sub config.Subscription, feePercent float64) string {
	return fmt.Sprintf("💎 *UPGRADE & MAXIMIZE PROFITS*\n\n"+
		"🆓 *FREE TIER*\n"+
		"❌ %d snipes per 24h\n"+
		"✅ Rug check on every token\n"+
		"✅ Auto-sell\n\n"+
		"⚡ *PRO TIER - %s SOL / %d days*\n"+
		"✅ UNLIMITED snipes\n"+
		"✅ Priority support\n\n"+
		"🐋 *WHALE TIER - %s SOL / %d days*\n"+
		"✅ Everything in Pro\n"+
		"✅ Private alpha group\n\n"+
		"All tiers pay %s%% only on profitable exits.",
		sub.FreeDailySnipes,
		trimFloat(sub.ProPriceSOL), sub.PeriodDays,
		trimFloat(sub.WhalePriceSOL), sub.PeriodDays,
		trimFloat(feePercent))
}

func paymentText(tier string, price float64, wallet string, userID int64, days int) string {
	return fmt.Sprintf("💳 *%s TIER PAYMENT*\n\n"+
		"Send `%s` SOL to:\n`%s`\n\n"+
		"Memo: `MEX-%d`\n\n"+
		"Your tier is activated for %d days once the payment is confirmed by an admin.",
		strings.ToUpper(tier), trimFloat(price), wallet, userID, days)
}

func revenueText(day, month, all database.RevenueStats, p fees.Projection, price *float64) string {
	var b strings.Builder
	b.WriteString("💰 *REVENUE*\n\n")
	line := func(title string, r database.RevenueStats) {
		fmt.Fprintf(&b, "*%s*: %.4f SOL fees from %d trades (%.2f SOL volume)", title, r.FeesSOL, r.ClosedTrades, r.VolumeSOL)
		if price != nil {
			fmt.Fprintf(&b, " ≈ $%s", formatUSD(r.FeesSOL**price))
		}
		b.WriteString("\n")
	}
	line("24h", day)
	line("30d", month)
	line("All time", all)
	b.WriteString("\n📊 *Projection (last 7d volume)*\n")
	fmt.Fprintf(&b, "Weekly volume: %.2f SOL\n", p.WeeklyVolumeSOL)
	fmt.Fprintf(&b, "User profits: %.4f SOL\n", p.ProjectedProfitSOL)
	fmt.Fprintf(&b, "Platform fees: %.4f SOL\n", p.PlatformFeesSOL)
	fmt.Fprintf(&b, "User net: %.4f SOL\n", p.UserNetProfitSOL)
	fmt.Fprintf(&b, "Monthly fees: %.4f SOL", p.MonthlyFeesSOL)
	return b.String()
}

func adminText(o database.Overview, balance *float64, monitoring bool, monitored int, dryRun bool) string {
	var b strings.Builder
	b.WriteString("🔐 *ADMIN DASHBOARD*\n\n")
	fmt.Fprintf(&b, "👥 Users: %d (%d paid)\n", o.Users, o.PaidUsers)
	fmt.Fprintf(&b, "📊 Trades: %d\n", o.TotalTrades)
	fmt.Fprintf(&b, "🟢 Active positions: %d (monitoring %d)\n", o.ActivePositions, monitored)
	fmt.Fprintf(&b, "💹 Volume: %.4f SOL\n", o.VolumeSOL)
	fmt.Fprintf(&b, "💰 Fees: %.4f SOL\n", o.FeesSOL)
	if balance != nil {
		fmt.Fprintf(&b, "💼 Wallet: %.4f SOL\n", *balance)
	} else {
		fmt.Fprintf(&b, "💼 Wallet: %s\n", msgUnavailable)
	}
	state := "🔴 Stopped"
	if monitoring {
		state = "🟢 Running"
	}
	fmt.Fprintf(&b, "🤖 Monitor: %s", state)
	if dryRun {
		b.WriteString("\n🧪 Dry run mode")
	}
	return b.String()
}

func heartbeatText(balance *float64, active int, dryRun bool) string {
	bal := msgUnavailable
	if balance != nil {
		bal = fmt.Sprintf("`%.4f` SOL", *balance)
	}
	status := "🟢 Operational"
	if dryRun {
		status = "🟡 Dry run"
	}
	return fmt.Sprintf("💓 *Bot Heartbeat*\nWallet Balance: %s\nActive Positions: %d\nStatus: %s", bal, active, status)
}

// escape neutralises legacy Markdown entities in text the bot does not control.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func shortMint(mint string) string {
	if len(mint) <= 20 {
		return mint
	}
	return mint[:20] + "..."
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// formatUSD renders v with thousands separators and two decimals.
func formatUSD(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
