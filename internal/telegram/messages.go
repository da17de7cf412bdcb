package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify"
)

const (
	welcomeText = "*🤖 Auto Accept Bot*\n\nAuto-approves WhatsApp group join requests.\n\nPick a menu below:"

	unauthorizedText = "❌ Unauthorized access!"

	loginChoiceText = "*🔑 Login WhatsApp*\n\nChoose how to link this bot:"

	loginPromptText = "*🔑 Login WhatsApp*\n\nSend your WhatsApp number with the country code (without +)\n\n" +
		"*Examples:*\n• 628123456789 (Indonesia)\n• 12025550179 (USA)\n• 447700900123 (UK)"

	loadingText = "⏳ *Creating the WhatsApp connection...*\n\nSetting up the connection and generating a pairing code..."

	qrWaitingText = "📷 *QR Login*\n\nThe QR code is sent here as soon as WhatsApp issues one."

	notConnectedText = "❌ *WhatsApp Not Connected*\n\nLog in to WhatsApp first to use Auto Accept."

	modeSelectionText = "*📋 Choose the Auto Accept Mode*\n\n" +
		"*🎯 Specific Number*\nOnly the number you set is approved\n\n" +
		"*🌍 Accept All*\nEveryone who requests to join is approved\n\nPick a mode:"

	targetPromptText = "*🎯 Target Number*\n\nSend the WhatsApp number to auto-accept:\n\n" +
		"*Examples:*\n• 628123456789 (Indonesia)\n• 12025550179 (USA)\n• 447700900123 (UK)\n\n" +
		"*Format:* country code + number (no + and no spaces)"

	modeAllSetText = "*✅ Mode Set!*\n\n*Mode:* Accept All 🌍\n\nEveryone who requests to join any group is approved!"

	postActionSelectionText = "*🚪 Choose the Action After Accept*\n\n" +
		"*🏠 Stay in Group*\nThe bot stays in the group after approving\n\n" +
		"*🚪 Exit After Accept*\nThe bot leaves the group after approving\n\nPick an action:"

	postStaySetText = "*✅ Post-Action Set!*\n\n*After Accept:* Stay in Group 🏠\n\nThe bot stays in the group after approving a member."
	postExitSetText = "*✅ Post-Action Set!*\n\n*After Accept:* Exit the Group 🚪\n\nThe bot leaves the group after approving a member."

	enabledText  = "🔔 *Auto Accept Enabled!*\n\nThe bot now watches join requests in every group."
	disabledText = "🔔 *Auto Accept Disabled!*\n\nThe bot stopped watching join requests."

	notLoggedInText = "❌ *WhatsApp Not Logged In*\n\nThere is nothing to log out."
	logoutText      = "*✅ Logged Out!*\n\nWhatsApp is logged out and the session was deleted.\nAll auto accept settings were reset."

	noSessionText = "❌ Log in to WhatsApp first."
)

func settingsText(p domain.AutoAcceptPolicy) string {
	status := "❌ DISABLED"
	if p.Enabled {
		status = "✅ ENABLED"
	}
	return "*✅ Auto Accept Settings*\n\n" +
		fmt.Sprintf("*Status:* %s\n*Mode:* %s\n*After Accept:* %s\n\n", status, modeText(p), postActionText(p)) +
		"*📋 How it works:*\n" +
		"• The bot watches every group where it is admin\n" +
		"• Join requests are approved per these settings\n" +
		"• The post-action runs after approving\n\n" +
		"*⚠️ IMPORTANT:* the bot must be a group admin!"
}

func invalidNumberText(reason string) string {
	return "❌ *Invalid number!*\n\n" + notify.Escape(reason) + "\n\n*Requirements:*\n• Digits only\n• 10-15 digits long\n" +
		"• Includes the country code (without +)\n\n*Example:* 628123456789"
}

func targetSetText(number string) string {
	return fmt.Sprintf("*✅ Target Number Set!*\n\n*Target Number:* %s\n\n"+
		"This number is accepted in every group where the bot is admin.", notify.Escape(number))
}

func errorText(err error) string {
	return "❌ *Error:* " + notify.Escape(err.Error())
}

func statusText(sess domain.OwnerSession, ok bool) string {
	if !ok {
		return "*📊 Status*\n\nNo WhatsApp session yet."
	}
	var b strings.Builder
	b.WriteString("*📊 Status*\n\n")
	fmt.Fprintf(&b, "*State:* %s\n", notify.Escape(string(sess.State)))
	if sess.Connected && !sess.LastConnectedAt.IsZero() {
		fmt.Fprintf(&b, "*Connected since:* %s\n", sess.LastConnectedAt.Format(time.RFC822))
	}
	if sess.ReconnectAttempts > 0 {
		fmt.Fprintf(&b, "*Reconnect attempts:* %d\n", sess.ReconnectAttempts)
	}
	b.WriteString("\n")
	b.WriteString(settingsSummary(sess.Policy))
	return b.String()
}

func settingsSummary(p domain.AutoAcceptPolicy) string {
	status := "OFF"
	if p.Enabled {
		status = "ON"
	}
	return fmt.Sprintf("*Auto Accept:* %s\n*Mode:* %s\n*After Accept:* %s", status, modeText(p), postActionText(p))
}
