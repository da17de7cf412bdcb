// Package telegram is the owner-facing chat front-end. It turns menu taps
// and text input into supervisor and policy operations and delivers owner
// notifications.
package telegram

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify"
	"github.com/talkincode/autoaccept/internal/session"
	"go.uber.org/zap"
	"gopkg.in/telebot.v4"
)

// Controller is the connection lifecycle the front-end drives.
type Controller interface {
	Connect(ctx context.Context, ownerID int64, isReconnect bool) error
	RequestPairingCode(ctx context.Context, ownerID int64, phone string) (string, error)
	RequestQR(ownerID int64) error
	Logout(ctx context.Context, ownerID int64) error
	Status(ownerID int64) (domain.OwnerSession, bool)
	HasCredentials(ownerID int64) bool
}

type Options struct {
	Token        string
	IsOwner      func(userID int64) bool
	PollTimeout  time.Duration
	PairingDelay time.Duration
}

type Bot struct {
	api          *telebot.Bot
	ctrl         Controller
	store        *session.Store
	isOwner      func(int64) bool
	pairingDelay time.Duration
	inputs       *inputStates
	ctx          context.Context
}

func New(opts Options, ctrl Controller, store *session.Store) (*Bot, error) {
	if opts.IsOwner == nil {
		return nil, errors.New("telegram: owner check is required")
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Second
	}
	if opts.PairingDelay <= 0 {
		opts.PairingDelay = 3 * time.Second
	}
	api, err := telebot.NewBot(telebot.Settings{
		Token:  opts.Token,
		Poller: &telebot.LongPoller{Timeout: opts.PollTimeout},
		OnError: func(err error, c telebot.Context) {
			zap.L().Error("telegram: handler error", zap.String("namespace", "telegram"), zap.Error(err))
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "telegram: create bot")
	}
	b := &Bot{
		api:          api,
		ctrl:         ctrl,
		store:        store,
		isOwner:      opts.IsOwner,
		pairingDelay: opts.PairingDelay,
		inputs:       newInputStates(),
		ctx:          context.Background(),
	}
	b.register()
	return b, nil
}

func (b *Bot) register() {
	b.api.Use(ownerOnly(b.isOwner))

	b.api.Handle("/start", b.onStart)
	b.api.Handle("/status", b.onStatus)
	b.api.Handle(telebot.OnText, b.onText)

	handlers := map[string]telebot.HandlerFunc{
		cbMainMenu:      b.onMainMenu,
		cbLogin:         b.onLogin,
		cbLoginPairing:  b.onLoginPairing,
		cbLoginQR:       b.onLoginQR,
		cbSettings:      b.onSettings,
		cbToggle:        b.onToggle,
		cbSetMode:       b.onSetMode,
		cbModeSpecific:  b.onModeSpecific,
		cbModeAll:       b.onModeAll,
		cbSetPostAction: b.onSetPostAction,
		cbPostStay:      b.onPostAction(domain.PostStay),
		cbPostExit:      b.onPostAction(domain.PostExit),
		cbLogout:        b.onLogout,
		cbNoop:          func(telebot.Context) error { return nil },
	}
	for _, name := range callbacks() {
		h := handlers[name]
		b.api.Handle(&telebot.InlineButton{Unique: name}, answered(h))
	}
}

// Start polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	go func() {
		<-ctx.Done()
		b.api.Stop()
	}()
	zap.L().Info("telegram: bot started", zap.String("username", b.api.Me.Username))
	b.api.Start()
	return nil
}

// Deliver sends a notification to the owner's private chat.
func (b *Bot) Deliver(ownerID int64, msg notify.Message) {
	opts := &telebot.SendOptions{}
	if msg.Markdown {
		opts.ParseMode = telebot.ModeMarkdown
	}
	if len(msg.Buttons) > 0 {
		opts.ReplyMarkup = markup(msg.Buttons)
	}
	var what interface{} = msg.Text
	if len(msg.Photo) > 0 {
		what = &telebot.Photo{File: telebot.FromReader(bytes.NewReader(msg.Photo)), Caption: msg.Text}
	}
	if _, err := b.api.Send(telebot.ChatID(ownerID), what, opts); err != nil {
		zap.L().Warn("telegram: deliver notification failed", zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}

// authorized reports whether the update comes from a configured owner.
func authorized(isOwner func(int64) bool, u *telebot.User) bool {
	return u != nil && isOwner(u.ID)
}

func ownerOnly(isOwner func(int64) bool) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if authorized(isOwner, c.Sender()) {
				return next(c)
			}
			if u := c.Sender(); u != nil {
				zap.L().Warn("telegram: unauthorized update", zap.Int64("user_id", u.ID))
			}
			if c.Callback() != nil {
				return c.Respond(&telebot.CallbackResponse{Text: "❌ Unauthorized!", ShowAlert: true})
			}
			if strings.HasPrefix(c.Text(), "/") {
				return c.Send(unauthorizedText)
			}
			return nil
		}
	}
}

// answered acknowledges the callback after h ran.
func answered(h telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if err := h(c); err != nil {
			zap.L().Error("telegram: callback failed", zap.Error(err))
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Error!", ShowAlert: true})
		}
		return c.Respond()
	}
}

func md(kb keyboard) *telebot.SendOptions {
	opts := &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}
	if kb != nil {
		opts.ReplyMarkup = markup(kb)
	}
	return opts
}

// hasLogin reports whether there is anything to log out: a session record,
// even a stalled one, or credential storage left on disk.
func (b *Bot) hasLogin(ownerID int64) bool {
	if _, ok := b.ctrl.Status(ownerID); ok {
		return true
	}
	return b.ctrl.HasCredentials(ownerID)
}

func (b *Bot) connected(ownerID int64) (domain.OwnerSession, bool) {
	sess, ok := b.ctrl.Status(ownerID)
	return sess, ok && sess.Connected
}
