package telegram

import (
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/apperr"
	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/validator"
	"go.uber.org/zap"
	"gopkg.in/telebot.v4"
)

func (b *Bot) onStart(c telebot.Context) error {
	b.inputs.set(c.Sender().ID, inputNone)
	_, connected := b.connected(c.Sender().ID)
	return c.Send(welcomeText, md(mainMenu(connected)))
}

func (b *Bot) onStatus(c telebot.Context) error {
	sess, ok := b.ctrl.Status(c.Sender().ID)
	return c.Send(statusText(sess, ok), md(mainMenu(ok && sess.Connected)))
}

func (b *Bot) onMainMenu(c telebot.Context) error {
	b.inputs.set(c.Sender().ID, inputNone)
	_, connected := b.connected(c.Sender().ID)
	return c.Edit(welcomeText, md(mainMenu(connected)))
}

func (b *Bot) onLogin(c telebot.Context) error {
	return c.Edit(loginChoiceText, md(loginMenu()))
}

func (b *Bot) onLoginPairing(c telebot.Context) error {
	b.inputs.set(c.Sender().ID, inputPhone)
	return c.Edit(loginPromptText, md(cancelMenu(cbMainMenu)))
}

func (b *Bot) onLoginQR(c telebot.Context) error {
	ownerID := c.Sender().ID
	b.inputs.set(ownerID, inputNone)
	if err := b.ctrl.Connect(b.ctx, ownerID, false); err != nil {
		return nil
	}
	if err := b.ctrl.RequestQR(ownerID); err != nil {
		return c.Send(errorText(err), md(nil))
	}
	return c.Edit(qrWaitingText, md(cancelMenu(cbMainMenu)))
}

func (b *Bot) onSettings(c telebot.Context) error {
	b.inputs.set(c.Sender().ID, inputNone)
	sess, ok := b.connected(c.Sender().ID)
	if !ok {
		return c.Edit(notConnectedText, md(notConnectedMenu()))
	}
	return c.Edit(settingsText(sess.Policy), md(autoAcceptMenu(sess.Policy)))
}

func (b *Bot) onToggle(c telebot.Context) error {
	ownerID := c.Sender().ID
	if _, ok := b.connected(ownerID); !ok {
		return c.Respond(&telebot.CallbackResponse{Text: "❌ WhatsApp is not connected!", ShowAlert: true})
	}
	policy, ok := b.store.ToggleEnabled(ownerID)
	if !ok {
		return c.Send(noSessionText)
	}
	if _, err := b.api.EditReplyMarkup(c.Callback(), markup(autoAcceptMenu(policy))); err != nil {
		zap.L().Debug("telegram: refresh settings keyboard failed", zap.Error(err))
	}
	text := disabledText
	if policy.Enabled {
		text = enabledText
	}
	return c.Send(text, md(nil))
}

func (b *Bot) onSetMode(c telebot.Context) error {
	return c.Edit(modeSelectionText, md(modeMenu()))
}

func (b *Bot) onModeSpecific(c telebot.Context) error {
	b.inputs.set(c.Sender().ID, inputTarget)
	return c.Edit(targetPromptText, md(cancelMenu(cbSettings)))
}

func (b *Bot) onModeAll(c telebot.Context) error {
	if _, ok := b.store.SetModeAll(c.Sender().ID); !ok {
		return c.Send(noSessionText)
	}
	return c.Edit(modeAllSetText, md(backToSettings()))
}

func (b *Bot) onSetPostAction(c telebot.Context) error {
	return c.Edit(postActionSelectionText, md(postActionMenu()))
}

func (b *Bot) onPostAction(action domain.PostAction) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if _, ok := b.store.SetPostAction(c.Sender().ID, action); !ok {
			return c.Send(noSessionText)
		}
		text := postStaySetText
		if action == domain.PostExit {
			text = postExitSetText
		}
		return c.Edit(text, md(backToSettings()))
	}
}

func (b *Bot) onLogout(c telebot.Context) error {
	ownerID := c.Sender().ID
	if !b.hasLogin(ownerID) {
		return c.Edit(notLoggedInText, md(mainMenu(false)))
	}
	if err := b.ctrl.Logout(b.ctx, ownerID); err != nil {
		return err
	}
	return c.Edit(logoutText, md(mainMenu(false)))
}

func (b *Bot) onText(c telebot.Context) error {
	if c.Chat() == nil || c.Chat().Type != telebot.ChatPrivate {
		return nil
	}
	text := c.Text()
	if text == "" || text[0] == '/' {
		return nil
	}
	ownerID := c.Sender().ID
	switch b.inputs.take(ownerID) {
	case inputPhone:
		return b.onPhoneInput(c, ownerID, text)
	case inputTarget:
		return b.onTargetInput(c, ownerID, text)
	}
	return nil
}

func (b *Bot) onPhoneInput(c telebot.Context, ownerID int64, text string) error {
	number, err := validator.ValidatePhoneNumber(text)
	if err != nil {
		return c.Send(invalidNumberText(validator.Reason(err)), md(nil))
	}

	loading, err := b.api.Send(c.Recipient(), loadingText, md(nil))
	if err != nil {
		zap.L().Debug("telegram: send loading message failed", zap.Error(err))
	}
	if err := b.ctrl.Connect(b.ctx, ownerID, false); err != nil {
		// the supervisor already told the owner
		return nil
	}

	// Give the fresh handle time to reach the server before asking for a code.
	time.AfterFunc(b.pairingDelay, func() {
		if loading != nil {
			if err := b.api.Delete(loading); err != nil {
				zap.L().Debug("telegram: delete loading message failed", zap.Error(err))
			}
		}
		_, err := b.ctrl.RequestPairingCode(b.ctx, ownerID, number)
		if errors.Is(err, apperr.ErrNoActiveConnection) {
			if _, err := b.api.Send(telebot.ChatID(ownerID), errorText(err), md(nil)); err != nil {
				zap.L().Debug("telegram: send error failed", zap.Error(err))
			}
		}
	})
	return nil
}

func (b *Bot) onTargetInput(c telebot.Context, ownerID int64, text string) error {
	number, err := validator.ValidatePhoneNumber(text)
	if err != nil {
		return c.Send(invalidNumberText(validator.Reason(err)), md(nil))
	}
	if _, ok := b.store.SetModeSpecific(ownerID, number); !ok {
		return c.Send(noSessionText)
	}
	return c.Send(targetSetText(number), md(backToSettings()))
}
