package notify

import (
	"fmt"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// OpsNotifier pushes operational alerts (auto-cancellations, refund batches)
// to the team's Telegram chats. Best effort, never blocks the caller.
type OpsNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
}

func NewOpsNotifier(botToken string, chatIDs []int64) (*OpsNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &OpsNotifier{bot: bot, chatIDs: chatIDs}, nil
}

// NewOpsNotifierFromEnv reads TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID_1..3.
// Returns nil (alerts disabled) when the token or all chat ids are absent.
func NewOpsNotifierFromEnv() *OpsNotifier {
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, ops alerts disabled")
		return nil
	}

	var chatIDs []int64
	for i := 1; i <= 3; i++ {
		chatIDStr := os.Getenv(fmt.Sprintf("TELEGRAM_CHAT_ID_%d", i))
		if chatIDStr == "" {
			continue
		}
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Errorf("Invalid TELEGRAM_CHAT_ID_%d format: %v", i, err)
			continue
		}
		chatIDs = append(chatIDs, chatID)
	}
	if len(chatIDs) == 0 {
		log.Warn("No valid telegram chat IDs found, ops alerts disabled")
		return nil
	}

	notifier, err := NewOpsNotifier(botToken, chatIDs)
	if err != nil {
		log.Errorf("Failed to initialize Telegram ops notifier: %v", err)
		return nil
	}
	log.Infof("Telegram ops notifier initialized with %d chat IDs", len(chatIDs))
	return notifier
}

// SendAlert sends a message to all configured chat IDs.
func (n *OpsNotifier) SendAlert(message string) {
	if n == nil || n.bot == nil {
		return
	}
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = "Markdown"

		go func(m tgbotapi.MessageConfig) {
			if _, err := n.bot.Send(m); err != nil {
				log.Errorf("Failed to send telegram alert to chat %d: %v", m.ChatID, err)
			}
		}(msg)
	}
}
