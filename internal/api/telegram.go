package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

const (
	msgStageDone = "✅ Этап %s завершён за %s"
	msgRunID     = "🆔 Запуск: %s"
	msgWarnings  = "⚠️ Предупреждения:"
	msgNextStage = "➡️ Следующий этап: %s"
	msgPipeline  = "🏁 Конвейер пройден до конца"
)

// sender часть tgbotapi.BotAPI, которая нужна уведомителю
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет сводку по этапам в чат Telegram
type Notifier struct {
	api    sender
	chatID int64
	logger logrus.FieldLogger
}

// NewNotifier авторизуется в Telegram и создаёт уведомитель
func NewNotifier(token string, chatID int64, logger logrus.FieldLogger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return newNotifier(api, chatID, logger), nil
}

func newNotifier(api sender, chatID int64, logger logrus.FieldLogger) *Notifier {
	return &Notifier{api: api, chatID: chatID, logger: logger}
}

// NotifyStage отправляет сообщение о завершении этапа
func (n *Notifier) NotifyStage(ctx context.Context, result entity.StageResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatStage(result))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	n.logger.WithField("stage", result.Stage).Debug("stage notification sent")
	return nil
}

// FormatStage собирает текст уведомления
func FormatStage(result entity.StageResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, msgStageDone, result.Stage, result.Duration.Round(time.Millisecond))
	b.WriteString("\n")
	if result.RunID != "" {
		fmt.Fprintf(&b, msgRunID, result.RunID)
		b.WriteString("\n")
	}

	keys := make([]string, 0, len(result.Counts))
	for k := range result.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "• %s: %d\n", k, result.Counts[k])
	}

	if len(result.Warnings) > 0 {
		b.WriteString(msgWarnings + "\n")
		for _, w := range result.Warnings {
			b.WriteString("• " + w + "\n")
		}
	}

	if next := result.NextStage(); next != "" {
		fmt.Fprintf(&b, msgNextStage, next)
	} else {
		b.WriteString(msgPipeline)
	}

	return b.String()
}

var _ port.Notifier = (*Notifier)(nil)
