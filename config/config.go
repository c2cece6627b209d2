package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config параметры одного запуска конвейера
type Config struct {
	AppEnv   string
	LogLevel string
	LogDir   string

	// Каталоги этапов
	SourceDir   string `validate:"required"`
	CropsDir    string `validate:"required"`
	PreparedDir string `validate:"required"`
	ModelsDir   string `validate:"required"`

	// Нарезка кропов
	Splits            []string `validate:"required,min=1,dive,required"`
	MaxImagesPerSplit int      `validate:"gte=0"`
	TargetSize        int      `validate:"gte=32"`
	PaddingRatio      float64  `validate:"gte=0,lt=1"`
	NegativesPerImage int      `validate:"gte=0"`
	PositiveClass     string   `validate:"required"`
	NegativeClass     string   `validate:"required,nefield=PositiveClass"`

	// Сборка набора
	Grayscale bool
	Seed      uint64

	VisionBackend string `validate:"oneof=native gocv"`

	// Конвертация
	ModelName          string `validate:"required"`
	OutputName         string `validate:"required"`
	ConverterCmd       string
	CalibrationSamples int `validate:"gte=1"`

	// Уведомления и публикация (необязательны)
	TelegramToken  string
	TelegramChatID int64
	AWSRegion      string
	AWSBucketName  string
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   os.Getenv("LOG_DIR"),

		SourceDir:   getEnv("SOURCE_DIR", "./data/source"),
		CropsDir:    getEnv("CROPS_DIR", "./data/crops"),
		PreparedDir: getEnv("PREPARED_DIR", "./data/prepared"),
		ModelsDir:   getEnv("MODELS_DIR", "./data/models"),

		Splits:        splitList(getEnv("SPLITS", "train,valid")),
		PositiveClass: getEnv("POSITIVE_CLASS", "bird"),
		NegativeClass: getEnv("NEGATIVE_CLASS", "not_bird"),
		VisionBackend: getEnv("VISION_BACKEND", "native"),

		ModelName:    getEnv("MODEL_NAME", "bird_model_96_final.h5"),
		OutputName:   getEnv("OUTPUT_NAME", "bird_model_96"),
		ConverterCmd: os.Getenv("CONVERTER_CMD"),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		AWSBucketName: os.Getenv("AWS_BUCKET_NAME"),
	}

	var err error
	if cfg.MaxImagesPerSplit, err = getInt("MAX_IMAGES_PER_SPLIT", 200); err != nil {
		return nil, err
	}
	if cfg.TargetSize, err = getInt("TARGET_SIZE", 96); err != nil {
		return nil, err
	}
	if cfg.NegativesPerImage, err = getInt("NEGATIVES_PER_IMAGE", 2); err != nil {
		return nil, err
	}
	if cfg.CalibrationSamples, err = getInt("CALIBRATION_SAMPLES", 100); err != nil {
		return nil, err
	}
	if cfg.PaddingRatio, err = getFloat("PADDING_RATIO", 0.30); err != nil {
		return nil, err
	}
	if cfg.Grayscale, err = getBool("GRAYSCALE", true); err != nil {
		return nil, err
	}
	if cfg.Seed, err = getUint("SEED", 0); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет значения по тегам validate
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Channels возвращает число каналов кропов в наборе
func (c *Config) Channels() int {
	if c.Grayscale {
		return 1
	}
	return 3
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getUint(key string, defaultVal uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
