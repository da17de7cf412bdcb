package autoaccept

import (
	"fmt"

	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify"
)

func approvedText(subject, number string, policy domain.AutoAcceptPolicy) string {
	return fmt.Sprintf("✅ *Auto-Accept Triggered*\n\n"+
		"📱 Group: %s\n"+
		"👤 Number: %s\n"+
		"🎯 Mode: %s\n"+
		"⚡ Status: approved!", notify.Escape(subject), notify.Escape(number), policy.ModeLabel())
}

func approvalFailedText(subject, number string, err error) string {
	return fmt.Sprintf("❌ *Auto-Accept Failed*\n\n"+
		"📱 Group: %s\n"+
		"👤 Number: %s\n"+
		"⚠️ Error: %s", notify.Escape(subject), notify.Escape(number), notify.Escape(err.Error()))
}

func leftText(subject, number string) string {
	return fmt.Sprintf("🚪 *Auto-Exit Executed*\n\n"+
		"📱 Group: %s\n"+
		"👤 After accepting: %s\n"+
		"⚡ Status: left the group!", notify.Escape(subject), notify.Escape(number))
}

func leaveFailedText(subject string, err error) string {
	return fmt.Sprintf("❌ *Auto-Exit Failed*\n\nCould not leave %s: %s", notify.Escape(subject), notify.Escape(err.Error()))
}
