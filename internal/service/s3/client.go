package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mediavault/internal/storage"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultChunkSize = 5 * 1024 * 1024 // 5MB
	defaultEndpoint  = "https://storage.yandexcloud.net"
	defaultRegion    = "ru-central1"
)

// Client реализует storage.Disk поверх S3-совместимого хранилища
type Client struct {
	name   string
	client api
	bucket string
	prefix string
}

// api - используемое подмножество методов s3.Client
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// NewClient создает новый диск S3 и проверяет доступ к бакету
func NewClient(name string, conf *Config) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	if conf.AccessKeyID == "" || conf.SecretAccessKey == "" || conf.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}

	endpoint := conf.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	region := conf.Region
	if region == "" {
		region = defaultRegion
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(endpoint),
		Region:           region,
		Credentials:      creds,
		UsePathStyle:     conf.UsePathStyle,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return newClient(name, client, conf.Bucket, conf.Prefix), nil
}

func newClient(name string, client api, bucket, prefix string) *Client {
	return &Client{
		name:   name,
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (h *Client) Name() string { return h.name }

func (h *Client) BaseDir() string {
	if h.prefix == "" {
		return h.bucket
	}
	return h.bucket + "/" + h.prefix
}

func (h *Client) key(p string) (string, error) {
	clean, err := storage.CleanPath(p)
	if err != nil {
		return "", err
	}
	if h.prefix == "" {
		return clean, nil
	}
	return path.Join(h.prefix, clean), nil
}

// Put загружает объект в S3
func (h *Client) Put(ctx context.Context, p string, r io.Reader) (int64, error) {
	key, err := h.key(p)
	if err != nil {
		return 0, err
	}

	// Читаем данные в буфер, чтобы тело запроса было seekable
	buf := bytes.NewBuffer(make([]byte, 0, defaultChunkSize))
	n, err := io.Copy(buf, r)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload file to S3: %w", err)
	}

	return n, nil
}

// Open получает объект из S3
func (h *Client) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := h.key(p)
	if err != nil {
		return nil, err
	}

	result, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s: %w", key, storage.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}

func (h *Client) Stat(ctx context.Context, p string) (storage.FileInfo, error) {
	key, err := h.key(p)
	if err != nil {
		return storage.FileInfo{}, err
	}

	out, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return storage.FileInfo{}, fmt.Errorf("object %s: %w", key, storage.ErrNotExist)
		}
		return storage.FileInfo{}, fmt.Errorf("failed to check object existence: %w", err)
	}

	return storage.FileInfo{Path: p, Size: aws.ToInt64(out.ContentLength)}, nil
}

func (h *Client) Exists(ctx context.Context, p string) (bool, error) {
	_, err := h.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete удаляет объект из S3; отсутствие объекта ошибкой не считается
func (h *Client) Delete(ctx context.Context, p string) error {
	key, err := h.key(p)
	if err != nil {
		return err
	}

	_, err = h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

// MkdirAll в S3 директорий нет
func (h *Client) MkdirAll(ctx context.Context, dir string) (bool, error) {
	return false, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
