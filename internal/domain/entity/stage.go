package entity

// Stage этап конвейера
type Stage string

const (
	StageSource  Stage = "source"  // экспорт размеченного набора (внешний)
	StageCrops   Stage = "crops"   // нарезка положительных и отрицательных кропов
	StageDataset Stage = "dataset" // аугментация и сборка X.npy / y.npy
	StageTrain   Stage = "train"   // обучение модели (внешний)
	StageConvert Stage = "convert" // квантование и экспорт артефакта
)

// Next возвращает этап, который запускается после текущего
func (s Stage) Next() Stage {
	switch s {
	case StageSource:
		return StageCrops
	case StageCrops:
		return StageDataset
	case StageDataset:
		return StageTrain
	case StageTrain:
		return StageConvert
	default:
		return ""
	}
}
