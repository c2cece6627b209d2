package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tinyml-pipeline/internal/domain/entity"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestFormatStage(t *testing.T) {
	text := FormatStage(entity.StageResult{
		Stage:    entity.StageCrops,
		RunID:    "01ABC",
		Counts:   map[string]int{"positives": 3, "negatives": 6},
		Warnings: []string{"split valid not found"},
		Duration: 1500 * time.Millisecond,
	})

	require.Equal(t, "✅ Этап crops завершён за 1.5s\n"+
		"🆔 Запуск: 01ABC\n"+
		"• negatives: 6\n"+
		"• positives: 3\n"+
		"⚠️ Предупреждения:\n"+
		"• split valid not found\n"+
		"➡️ Следующий этап: dataset", text)

	text = FormatStage(entity.StageResult{Stage: entity.StageConvert})
	require.Contains(t, text, msgPipeline)
}

func TestNotifier_NotifyStage(t *testing.T) {
	logger, _ := test.NewNullLogger()
	api := &fakeSender{}
	n := newNotifier(api, 42, logger)

	require.NoError(t, n.NotifyStage(context.Background(), entity.StageResult{Stage: entity.StageDataset}))
	require.Len(t, api.sent, 1)
	require.Equal(t, int64(42), api.sent[0].ChatID)
	require.Contains(t, api.sent[0].Text, "dataset")

	api.err = errors.New("network down")
	require.ErrorContains(t, n.NotifyStage(context.Background(), entity.StageResult{Stage: entity.StageDataset}), "network down")
}
