package bot

import (
	"errors"
	"strings"
	"time"

	coreconfig "github.com/avelezco/ledgerbot/core/config"
	"github.com/avelezco/ledgerbot/core/logger"
	"github.com/avelezco/ledgerbot/core/telegram"
	"github.com/avelezco/ledgerbot/core/telegram/callbacks"
	tghelpers "github.com/avelezco/ledgerbot/core/telegram/helpers"
	"github.com/avelezco/ledgerbot/core/telegram/middleware"
	"github.com/avelezco/ledgerbot/internal/entry"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// Bot binds the entry machine to the Telegram surface: commands start
// flows, callbacks answer choice steps, plain text answers text steps.
type Bot struct {
	cfg     *coreconfig.Config
	machine *entry.Machine
}

func New(cfg *coreconfig.Config, machine *entry.Machine) *Bot {
	return &Bot{cfg: cfg, machine: machine}
}

// Middlewares returns the global middleware chain in application order.
func (b *Bot) Middlewares() []telegram.Middleware {
	mws := []telegram.Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if b.cfg.Telegram.RateLimitIntervalMS > 0 {
		mws = append(mws, telegram.Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval: time.Duration(b.cfg.Telegram.RateLimitIntervalMS) * time.Millisecond,
				OnLimited: func(c tele.Context) error {
					return c.Send("Easy there, one message at a time.")
				},
			}),
		})
	}
	mws = append(mws, telegram.Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	return mws
}

// Routes returns every handler binding for telegram.Run.
func (b *Bot) Routes() []telegram.Route {
	return []telegram.Route{
		{Endpoint: "/start", Handler: b.handleStart},
		{Endpoint: "/help", Handler: b.handleStart},
		{Endpoint: "/income", Handler: b.handleKind(entry.KindIncome)},
		{Endpoint: "/expense", Handler: b.handleKind(entry.KindExpense)},
		{Endpoint: "/saving", Handler: b.handleKind(entry.KindSaving)},
		{Endpoint: "/cancel", Handler: b.handleCancel},
		{Endpoint: tele.OnText, Handler: b.handleText},
		{Endpoint: tele.OnCallback, Handler: b.handleCallback},
	}
}

// Commands returns the command list advertised to Telegram's menu.
func (b *Bot) Commands() []tele.Command {
	return []tele.Command{
		{Text: "income", Description: "Record an income"},
		{Text: "expense", Description: "Record an expense"},
		{Text: "saving", Description: "Record a saving deposit"},
		{Text: "cancel", Description: "Abandon the entry in progress"},
		{Text: "help", Description: "How to use the bot"},
	}
}

func (b *Bot) handleStart(c tele.Context) error {
	tghelpers.WithHandler(c, "start")
	return c.Send(welcomeText)
}

func (b *Bot) handleKind(kind entry.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.WithHandler(c, string(kind))
		prompt, err := b.machine.StartConversation(ctx, c.Chat().ID, kind)
		if err != nil {
			if errors.Is(err, entry.ErrConflict) {
				return c.Send(conflictText)
			}
			logger.Error(ctx, "bot", "start.failed", slog.String("err", err.Error()))
			return c.Send(internalErrorText)
		}
		text, markup := promptMessage(prompt)
		return c.Send(text, markup)
	}
}

func (b *Bot) handleCancel(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "cancel")
	b.machine.CancelConversation(ctx, c.Chat().ID)
	return c.Send(cancelledText)
}

func (b *Bot) handleText(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "text")
	res, err := b.machine.SubmitField(ctx, c.Chat().ID, entry.TextEntered{Text: c.Text()})
	return b.deliver(c, res, err)
}

func (b *Bot) handleCallback(c tele.Context) error {
	_ = c.Respond(&tele.CallbackResponse{})

	key := callbacks.CallbackKey(c)
	payload := callbacks.CallbackPayload(c)
	ctx := tghelpers.WithHandler(c, "callback."+key)

	switch key {
	case cbCancel:
		b.machine.CancelConversation(ctx, c.Chat().ID)
		return c.Edit(cancelledText)
	case cbPick:
		step, value, ok := strings.Cut(payload, ":")
		if !ok {
			logger.Warn(ctx, "bot", "callback.malformed",
				slog.String("payload", logger.SanitizeLimit(payload, 128)),
			)
			return nil
		}
		ev := entry.ChoiceSelected{Step: entry.Step(step), Value: value}
		res, err := b.machine.SubmitField(ctx, c.Chat().ID, ev)
		return b.deliver(c, res, err)
	default:
		return nil
	}
}

// deliver turns a machine result or error into the reply for this update.
func (b *Bot) deliver(c tele.Context, res entry.Result, err error) error {
	if err != nil {
		if errors.Is(err, entry.ErrNoActiveConversation) {
			return c.Send(noConversationText)
		}
		var ve *entry.ValidationError
		if errors.As(err, &ve) {
			return c.Send(validationMessage(ve))
		}
		ctx := tghelpers.BuildContext(c)
		logger.Error(ctx, "bot", "submit.failed", slog.String("err", err.Error()))
		return c.Send(internalErrorText)
	}

	if res.Prompt != nil {
		text, markup := promptMessage(*res.Prompt)
		return c.Send(text, markup)
	}
	if res.Outcome != nil {
		return c.Send(outcomeMessage(res.Record, res.Outcome))
	}
	return nil
}
