package volumes

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds configuration for the S3 object store.
type S3Config struct {
	Endpoint string // e.g. s3.amazonaws.com or a MinIO host:port
	Region   string
	UseSSL   bool
}

// DefaultS3Config returns the AWS defaults.
func DefaultS3Config() S3Config {
	return S3Config{Endpoint: "s3.amazonaws.com", UseSSL: true}
}

// S3Store downloads objects with minio-go. Credentials come from the usual
// AWS sources: environment, shared credentials file, then instance role.
type S3Store struct {
	client *minio.Client
}

// NewS3Store creates an S3-backed ObjectStore.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultS3Config().Endpoint
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{},
	})

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &S3Store{client: client}, nil
}

// Download streams bucket/key into w.
func (s *S3Store) Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, err
	}
	defer obj.Close()
	return io.Copy(w, obj)
}
