package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type Config struct {
	Endpoint  string `yaml:"endpoint" envconfig:"STORAGE_ENDPOINT"`
	AccessKey string `yaml:"accessKey" envconfig:"STORAGE_ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" envconfig:"STORAGE_SECRET_KEY"`
	Bucket    string `yaml:"bucket" envconfig:"STORAGE_BUCKET" default:"books"`
	UseSSL    bool   `yaml:"useSSL" envconfig:"STORAGE_USE_SSL"`
	// PublicURL overrides the base under which uploaded objects are reachable.
	PublicURL string `yaml:"publicURL" envconfig:"STORAGE_PUBLIC_URL"`
}

type Storage struct {
	client *minio.Client
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "bucket exists")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "make bucket")
		}
	}

	return &Storage{client: client, cfg: cfg}, nil
}

// Put uploads one object and returns its public URL.
func (s *Storage) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.Wrap(err, "put object")
	}
	return s.ObjectURL(name), nil
}

func (s *Storage) ObjectURL(name string) string {
	if s.cfg.PublicURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.PublicURL, "/"), s.cfg.Bucket, name)
	}
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, name)
}
