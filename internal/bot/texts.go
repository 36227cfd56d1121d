package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xssautomation/xssbot/internal/model"
)

const welcomeText = `🔒 Welcome to the XSS Automation bot!

This bot finds XSS (Cross-Site Scripting) vulnerabilities in websites automatically.

📋 Commands:
/start - start the conversation
/help - show help
/scan <domain> - scan a site for XSS vulnerabilities

⚠️ Only scan sites you own or have explicit permission to test.

To begin, send /scan followed by the domain.
Example: /scan example.com`

const helpText = `📖 XSS Automation bot guide

🔍 Usage:
1. Send /scan followed by the domain
   Example: /scan testphp.vulnweb.com
2. Or send the domain on its own
   Example: example.com

📂 After a scan:
/vulns <domain> - vulnerable URLs
/tested <domain> - URLs tested for XSS
/stats <domain> - detailed statistics
/export <domain> [json|md] - full report as a file

🛠️ What the bot does:
• collects URLs from the Wayback Machine
• discovers subdomains
• probes for live URLs
• tests for XSS with dedicated tools

⏱️ A scan takes 5-15 minutes depending on the size of the site.

⚠️ Only scan sites you own. Do not use this bot for harmful or illegal purposes.
It is meant for education and legitimate security testing.`

const aboutText = `ℹ️ About the XSS Automation bot

🤖 This bot automates the discovery of XSS vulnerabilities in websites.

🛠️ Tools:
• Waybackurls - URLs from the Internet Archive
• GAU - URLs from several sources
• Subfinder - subdomain discovery
• Httpx - live URL probing
• Dalfox - XSS testing

⚖️ Disclaimer:
This bot is for education and legitimate security testing only.
The developers are not responsible for any illegal use.`

const (
	scanUsageText     = "❌ Please specify the domain to scan.\nExample: /scan example.com"
	newScanPromptText = "🔍 Send the domain you want to scan.\nExample: example.com or https://example.com"
	invalidDomainText = "❌ Invalid domain. Please send a valid domain.\nExample: example.com or https://example.com"
	unknownCommand    = "Unknown command. Send /help for usage."
)

// Callback data values. Drill-down callbacks carry the domain after the
// prefix.
const (
	callbackNewScan     = "new_scan"
	callbackHelp        = "help"
	callbackAbout       = "about"
	callbackShowVulns   = "show_vulns_"
	callbackShowTested  = "show_tested_"
	callbackShowStats   = "show_stats_"
	maxCallbackDataSize = 64
)

// drillDowns maps callback prefixes and commands to what they show.
// An empty kind means the statistics view.
var drillDowns = map[string]model.ArtifactKind{
	callbackShowVulns:  model.VulnerableURLs,
	callbackShowTested: model.TestableURLs,
	callbackShowStats:  "",
	"vulns":            model.VulnerableURLs,
	"tested":           model.TestableURLs,
	"stats":            "",
}

func welcomeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔍 New scan", callbackNewScan)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❓ Help", callbackHelp)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("ℹ️ About", callbackAbout)),
	)
}

// summaryKeyboard offers the drill-downs that have something to show.
// Buttons whose callback data would exceed Telegram's limit are left out;
// the matching commands still work.
func summaryKeyboard(summary model.Summary) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	addRow := func(text, prefix string) {
		data := prefix + summary.Domain.String()
		if len(data) > maxCallbackDataSize {
			return
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data)))
	}

	if n, _ := summary.Count(model.VulnerableURLs); n > 0 {
		addRow("🚨 Show vulnerabilities", callbackShowVulns)
	}
	if n, _ := summary.Count(model.TestableURLs); n > 0 {
		addRow("🔍 Show tested URLs", callbackShowTested)
	}
	addRow("📊 Detailed statistics", callbackShowStats)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔍 Scan a new domain", callbackNewScan)))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
