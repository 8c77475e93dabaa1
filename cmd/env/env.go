// Package env holds the environment variable names the commands read
package env

const (
	// Prefix is the prefix of every environment variable
	Prefix = "FXQUOTE_"

	// DBURLSuffix is the postgres connection string
	DBURLSuffix = "DB_URL"

	// PartnerAPIKeySuffix is the payment partner API key,
	// used for both the partner rate provider and payment links
	PartnerAPIKeySuffix = "PARTNER_API_KEY"

	// WebhookSecretSuffix is the shared secret of the payment webhook
	WebhookSecretSuffix = "WEBHOOK_SECRET"

	// TelegramTokenSuffix is the Telegram bot token
	TelegramTokenSuffix = "TELEGRAM_BOT_TOKEN"

	// TelegramChatSuffix is the Telegram chat ID operator notifications go to
	TelegramChatSuffix = "TELEGRAM_CHAT_ID"
)
