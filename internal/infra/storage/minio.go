package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"failboard/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type FileStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewFileStorage connects to MinIO and creates the bucket with a public-read
// policy when it does not exist yet.
func NewFileStorage(cfg *config.Config) (*FileStorage, error) {
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bucket := cfg.MinioBucket
	exists, err := minioClient.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := minioClient.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			zap.L().Warn("Failed to create bucket", zap.String("bucket", bucket), zap.Error(err))
		} else {
			policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
			_ = minioClient.SetBucketPolicy(ctx, bucket, policy)
			zap.L().Info("Bucket created and policy set", zap.String("bucket", bucket))
		}
	}

	return &FileStorage{
		client:    minioClient,
		bucket:    bucket,
		publicURL: cfg.MinioPublicURL,
	}, nil
}

// UploadImage stores the object and returns its public URL.
func (s *FileStorage) UploadImage(ctx context.Context, objectName string, size int64, reader io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return ObjectURL(s.publicURL, s.bucket, objectName), nil
}

// ObjectURL joins by hand; path.Join would collapse the scheme's "//".
func ObjectURL(publicURL, bucket, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(publicURL, "/"), bucket, objectName)
}
