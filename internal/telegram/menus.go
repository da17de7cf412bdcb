package telegram

import (
	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify"
	"gopkg.in/telebot.v4"
)

// Callback identifiers of the inline keyboards.
const (
	cbMainMenu      = notify.CallbackMainMenu
	cbLogin         = "login"
	cbLoginPairing  = "login_pairing"
	cbLoginQR       = "login_qr"
	cbSettings      = "auto_accept_settings"
	cbToggle        = "toggle_auto_accept"
	cbSetMode       = "set_mode"
	cbModeSpecific  = "mode_specific"
	cbModeAll       = "mode_all"
	cbSetPostAction = "set_post_action"
	cbPostStay      = "post_stay"
	cbPostExit      = "post_exit"
	cbLogout        = "logout"
	cbNoop          = "noop"
)

type keyboard = [][]notify.Button

func row(label, data string) []notify.Button {
	return []notify.Button{{Label: label, Data: data}}
}

func mainMenu(connected bool) keyboard {
	status := "🔴 WhatsApp Disconnected"
	if connected {
		status = "🟢 WhatsApp Connected"
	}
	return keyboard{
		row(status, cbNoop),
		row("🔑 Login WhatsApp", cbLogin),
		row("✅ Auto Accept Settings", cbSettings),
		row("🚪 Logout WhatsApp", cbLogout),
	}
}

func loginMenu() keyboard {
	return keyboard{
		row("📱 Login with Pairing Code", cbLoginPairing),
		row("📷 Login with QR Code", cbLoginQR),
		row("🔙 Back", cbMainMenu),
	}
}

func autoAcceptMenu(p domain.AutoAcceptPolicy) keyboard {
	state := "OFF ❌"
	if p.Enabled {
		state = "ON ✅"
	}
	return keyboard{
		row("🤖 Auto Accept: "+state, cbToggle),
		row("📋 Mode: "+modeText(p), cbSetMode),
		row("🚪 After Accept: "+postActionText(p), cbSetPostAction),
		row("🔙 Back to Main Menu", cbMainMenu),
	}
}

func modeMenu() keyboard {
	return keyboard{
		row("🎯 Accept a Specific Number", cbModeSpecific),
		row("🌍 Accept Everyone", cbModeAll),
		row("🔙 Back", cbSettings),
	}
}

func postActionMenu() keyboard {
	return keyboard{
		row("🏠 Stay in Group", cbPostStay),
		row("🚪 Exit After Accept", cbPostExit),
		row("🔙 Back", cbSettings),
	}
}

func notConnectedMenu() keyboard {
	return keyboard{
		row("🔑 Login WhatsApp", cbLogin),
		row("🔙 Back", cbMainMenu),
	}
}

func cancelMenu(back string) keyboard {
	return keyboard{row("❌ Cancel", back)}
}

func backToSettings() keyboard {
	return keyboard{row("🔙 Back to Settings", cbSettings)}
}

func modeText(p domain.AutoAcceptPolicy) string {
	if p.Mode == domain.ModeAll {
		return "🌍 Accept All"
	}
	if p.TargetNumber == "" {
		return "🎯 Not Set"
	}
	return "🎯 " + p.TargetNumber
}

func postActionText(p domain.AutoAcceptPolicy) string {
	if p.PostAction == domain.PostExit {
		return "🚪 Exit"
	}
	return "🏠 Stay"
}

// markup renders a keyboard as telebot inline buttons.
func markup(kb keyboard) *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	for _, r := range kb {
		buttons := make([]telebot.InlineButton, 0, len(r))
		for _, b := range r {
			buttons = append(buttons, telebot.InlineButton{Unique: b.Data, Text: b.Label})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, buttons)
	}
	return m
}

// callbacks lists every inline callback the bot handles.
func callbacks() []string {
	return []string{
		cbMainMenu, cbLogin, cbLoginPairing, cbLoginQR, cbSettings, cbToggle, cbSetMode,
		cbModeSpecific, cbModeAll, cbSetPostAction, cbPostStay, cbPostExit, cbLogout, cbNoop,
	}
}
