// Package opsalert pings an operator chat when the notification pipeline
// hits persistence or delivery failures. It is strictly a side channel and
// never substitutes for the user-facing quota email.
package opsalert

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quotamail/quotamail/internal/logging"
)

// Alerter sends one-off operator messages without keeping a bot running.
type Alerter struct {
	token    string
	chatID   int64
	logger   *logging.Logger
	debounce *Debouncer

	// send is swappable for tests.
	send func(token string, chatID int64, text string) error
}

// New creates an alerter. An empty token or zero chat ID disables it.
func New(token string, chatID int64, logger *logging.Logger) *Alerter {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Alerter{
		token:    strings.TrimSpace(token),
		chatID:   chatID,
		logger:   logger,
		debounce: NewDebouncer(10 * time.Minute),
		send:     sendTelegram,
	}
}

// Enabled reports whether operator alerts are configured.
func (a *Alerter) Enabled() bool {
	return a.token != "" && a.chatID != 0
}

// PipelineFailure reports a failed usage-update invocation. Errors sending
// the alert itself are logged and swallowed; the pipeline result stands on
// its own.
func (a *Alerter) PipelineFailure(user string, stage string, err error) {
	if !a.Enabled() || err == nil {
		return
	}

	if !a.debounce.Allow(user + "/" + stage) {
		return
	}

	text := fmt.Sprintf("quotamail: %s failed for %s: %v", stage, user, err)
	if sendErr := a.send(a.token, a.chatID, text); sendErr != nil {
		a.logger.Warn("failed to send operator alert", "error", sendErr.Error())
	}
}

func sendTelegram(token string, chatID int64, text string) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err = bot.Send(msg)
	return err
}
