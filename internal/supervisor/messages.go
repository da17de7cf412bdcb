package supervisor

import (
	"fmt"

	"github.com/talkincode/autoaccept/internal/notify"
)

const (
	qrCaption = "🔒 *Scan the QR code to log in*\n\n" +
		"Open WhatsApp > Menu > Linked Devices > Link a Device\n\n" +
		"The code refreshes on its own until the login times out."
	qrFailedText            = "❌ *Could not send the QR code*\nTry again later or use a pairing code."
	connectedText           = "✅ *WhatsApp Connected!*\n\nThe bot is ready to auto-accept join requests!"
	reconnectedText         = "✅ *Reconnected!*\n\nThe WhatsApp bot is connected again."
	permanentDisconnectText = "❌ *Permanently Disconnected*\n\nPlease log in again with a pairing code."
)

func setupFailedText(err error) string {
	return fmt.Sprintf("❌ *Failed to create the connection*\n\n%s", notify.Escape(err.Error()))
}

func disconnectedText(reason string, attempt, limit int) string {
	if reason == "" {
		reason = "Unknown"
	}
	return fmt.Sprintf("⚠️ *Connection lost*\nReason: %s\n\nTrying to reconnect... (Attempt %d/%d)", notify.Escape(reason), attempt, limit)
}

func loginExpiredText(reason string) string {
	if reason == "" {
		reason = "Unknown"
	}
	return fmt.Sprintf("⌛ *Login expired*\nReason: %s\n\nStart the login again from the main menu.", notify.Escape(reason))
}

func pairingCodeText(code string) string {
	return fmt.Sprintf("🔑 *Pairing Code:*\n\n*%s*\n\n"+
		"Enter this code in WhatsApp within 60 seconds!\n\n"+
		"*How to pair:*\n"+
		"1. Open WhatsApp\n"+
		"2. Menu > Linked Devices\n"+
		"3. Link a Device\n"+
		"4. Enter the code above\n\n"+
		"If the connection drops it reconnects automatically!", code)
}

func pairingFailedText(err error) string {
	return fmt.Sprintf("❌ Pairing Code Error\n\nCould not create a pairing code: %s\n\nTry again later or use another number!", err)
}
