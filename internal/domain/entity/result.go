package entity

import "time"

// StageResult итог этапа для уведомлений и отчётов.
type StageResult struct {
	Stage    Stage          `json:"stage"`
	RunID    string         `json:"run_id"`
	Counts   map[string]int `json:"counts"`
	Warnings []string       `json:"warnings,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// NextStage возвращает этап, который нужно запустить следующим
func (r StageResult) NextStage() Stage {
	return r.Stage.Next()
}
