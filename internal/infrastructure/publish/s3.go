package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"tinyml-pipeline/internal/domain/port"
)

// S3Publisher выкладывает файлы артефакта в бакет под префиксом artifacts/<run_id>/
type S3Publisher struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewS3Publisher создаёт сессию по ключам из окружения (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
func NewS3Publisher(region, bucket, runID string) (*S3Publisher, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is empty")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, err
	}

	return NewS3PublisherWithUploader(s3manager.NewUploader(sess), bucket, runID), nil
}

// NewS3PublisherWithUploader использует готовый загрузчик
func NewS3PublisherWithUploader(uploader s3manageriface.UploaderAPI, bucket, runID string) *S3Publisher {
	return &S3Publisher{
		uploader: uploader,
		bucket:   bucket,
		prefix:   path.Join("artifacts", runID),
	}
}

// Publish загружает файл и возвращает его адрес в бакете
func (p *S3Publisher) Publish(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := path.Join(p.prefix, filepath.Base(filePath))
	out, err := p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return out.Location, nil
}

var _ port.ArtifactPublisher = (*S3Publisher)(nil)
