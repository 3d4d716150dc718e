// File: notification/telegram/tclient.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/AndreyZakrevsky/btt/pkg/broker"
	"github.com/AndreyZakrevsky/btt/utilities"
)

const defaultPollTimeoutSec = 10

const helpText = `Commands:
/start - enable trading
/stop - disable trading
/status - session, parameters and position
/balance - exchange balances for the pair
/history [n] - recent confirmed fills
/average <price> - re-anchor the stored average price
/set k=v ... - update parameters (sell-clearance, buy-clearance, max-held-volume, notional, liquidity-buffer); stops trading
/reset - clear the persisted position record
/help - this text`

// Commander is implemented by the trading session. Handlers translate chat
// commands into Commander calls and reply with the returned text, keeping
// command handling decoupled from the decision loop.
type Commander interface {
	Start() string
	Stop() string
	Status() string
	Reset() string
	Set(payload string) string
	Balance(ctx context.Context) string
	History(limit int) string
	Average(payload string) string
}

// Client drives the Telegram bot: operator commands in, notifications out.
// With no token configured every method is a silent no-op, which also means
// nobody can start trading remotely.
type Client struct {
	bot     *tele.Bot
	chatID  int64
	enabled bool
	logger  *utilities.Logger
}

func NewClient(cfg utilities.TelegramConfig, logger *utilities.Logger) (*Client, error) {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}

	if cfg.Token == "" {
		logger.LogWarn("Telegram Client: token is empty. Notifications and remote commands are disabled.")
		return &Client{logger: logger}, nil
	}

	timeout := cfg.PollTimeoutSec
	if timeout <= 0 {
		timeout = defaultPollTimeoutSec
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: time.Duration(timeout) * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}

	logger.LogInfo("Telegram Client initialized for chat %d.", cfg.ChatID)
	return &Client{
		bot:     bot,
		chatID:  cfg.ChatID,
		enabled: true,
		logger:  logger,
	}, nil
}

// Enabled reports whether a bot connection exists.
func (c *Client) Enabled() bool {
	return c.enabled
}

// RegisterCommands wires the dispatch table onto the bot. ctx bounds the
// exchange calls some handlers make.
func (c *Client) RegisterCommands(ctx context.Context, cmd Commander) {
	if !c.enabled {
		return
	}
	for name, handler := range c.routes(ctx, cmd) {
		// Pin per-iteration copies: the module builds with go <1.22, where
		// range variables are shared, and these closures run after the loop.
		name, handler := name, handler
		c.bot.Handle(name, func(tc tele.Context) error {
			if !c.authorized(tc) {
				c.logger.LogWarn("Telegram: ignoring %s from unauthorized chat %d", name, tc.Chat().ID)
				return nil
			}
			c.logger.LogInfo("Telegram: handling %s", name)
			return tc.Send(handler(tc))
		})
	}
}

// routes is the command dispatch table: command name to a handler producing
// the reply text.
func (c *Client) routes(ctx context.Context, cmd Commander) map[string]func(tele.Context) string {
	return map[string]func(tele.Context) string{
		"/average": func(tc tele.Context) string { return cmd.Average(tc.Message().Payload) },
		"/balance": func(tc tele.Context) string { return cmd.Balance(ctx) },
		"/help":    func(tc tele.Context) string { return helpText },
		"/history": func(tc tele.Context) string { return cmd.History(parseLimit(tc.Message().Payload)) },
		"/reset":   func(tc tele.Context) string { return cmd.Reset() },
		"/set":     func(tc tele.Context) string { return cmd.Set(tc.Message().Payload) },
		"/start":   func(tc tele.Context) string { return cmd.Start() },
		"/status":  func(tc tele.Context) string { return cmd.Status() },
		"/stop":    func(tc tele.Context) string { return cmd.Stop() },
	}
}

// Run begins long polling and blocks until Shutdown is called.
func (c *Client) Run() {
	if !c.enabled {
		return
	}
	c.bot.Start()
}

// Shutdown stops the long poller.
func (c *Client) Shutdown() {
	if !c.enabled {
		return
	}
	c.bot.Stop()
}

// SendMessage pushes a plain text message to the configured chat. Best
// effort: an unconfigured client or chat skips silently.
func (c *Client) SendMessage(message string) error {
	if !c.enabled {
		c.logger.LogDebug("Telegram SendMessage: client disabled, skipping.")
		return nil
	}
	if strings.TrimSpace(message) == "" {
		c.logger.LogDebug("Telegram SendMessage: message is empty, skipping.")
		return nil
	}
	if c.chatID == 0 {
		c.logger.LogDebug("Telegram SendMessage: no chat configured, skipping.")
		return nil
	}

	if _, err := c.bot.Send(tele.ChatID(c.chatID), message); err != nil {
		c.logger.LogError("Telegram SendMessage: %v", err)
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// NotifyOrderFilled sends a formatted notification for a filled order.
// additionalDetails, when present, is placed between the headline and the
// order facts.
func (c *Client) NotifyOrderFilled(order broker.Order, additionalDetails string) error {
	if !c.enabled {
		c.logger.LogDebug("Telegram NotifyOrderFilled: client disabled, skipping.")
		return nil
	}

	var title string
	switch order.Side {
	case broker.SideBuy:
		title = fmt.Sprintf("✅ BUY Order Filled: %s", order.Symbol)
	case broker.SideSell:
		title = fmt.Sprintf("💰 SELL Order Filled: %s", order.Symbol)
	default:
		title = fmt.Sprintf("ℹ️ Order Update: %s (%s)", order.Symbol, strings.ToUpper(order.Side))
	}

	facts := fmt.Sprintf(
		"Avg. Fill Price: %s\nFilled Volume: %s\nTotal Cost: %s\nFee: %s %s\nOrder ID: %s",
		order.AvgFillPrice, order.ExecutedVol, order.Cost, order.Fee, order.FeeAsset, order.ID,
	)

	body := title + "\n\n" + facts
	if additionalDetails != "" {
		body = title + "\n" + additionalDetails + "\n\n" + facts
	}
	return c.SendMessage(body)
}

func (c *Client) authorized(tc tele.Context) bool {
	if c.chatID == 0 {
		return true
	}
	chat := tc.Chat()
	return chat != nil && chat.ID == c.chatID
}

func parseLimit(payload string) int {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil || n <= 0 {
		return 10
	}
	return n
}
