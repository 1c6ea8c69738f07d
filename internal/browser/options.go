// Package browser holds the chromedp allocator settings shared by every
// headless session that reads Telegram's public web preview.
package browser

import "github.com/chromedp/chromedp"

// UserAgent is sent on every preview request. t.me serves a reduced page
// to unknown agents.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Options returns allocator options for a preview session. Images and
// media are never needed, so they are not loaded.
func Options(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.UserAgent(UserAgent),
		chromedp.WindowSize(1280, 2000),

		// keeps navigator.webdriver unset
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("autoplay-policy", "user-gesture-required"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("lang", "en-US"),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}
