package port

import (
	"context"

	"tinyml-pipeline/internal/domain/entity"
)

// Notifier сообщает о завершении этапов
type Notifier interface {
	// NotifyStage отправляет сводку по завершённому этапу
	NotifyStage(ctx context.Context, result entity.StageResult) error
}

// ArtifactPublisher выкладывает готовые файлы артефакта
type ArtifactPublisher interface {
	// Publish загружает файл и возвращает его адрес
	Publish(ctx context.Context, path string) (string, error)
}
