package preview

// t.me/s DOM selectors.
// These are isolated here because the web preview markup changes from
// time to time. Update these when scraping breaks.

const (
	ChannelInfo        = `.tgme_channel_info`
	ChannelTitle       = `.tgme_channel_info_header_title`
	ChannelUsername    = `.tgme_channel_info_header_username`
	ChannelDescription = `.tgme_channel_info_description`
	ChannelCounter     = `.tgme_channel_info_counter`

	MessageWrap = `.tgme_widget_message[data-post]`
	MessageText = `.tgme_widget_message_text`
	MessageDate = `.tgme_widget_message_date time`
	MessageView = `.tgme_widget_message_views`
	Reaction    = `.tgme_reaction`
)

// WaitForPage is present on every rendered channel preview
const WaitForPage = `body`
