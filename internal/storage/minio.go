package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const noSuchKey = "NoSuchKey"

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Client() *minio.Client { return s.client }

func (s *MinioStore) Bucket() string { return s.bucket }

// MinioRepository keeps one JSON object per key under a namespace prefix.
type MinioRepository[T any] struct {
	store  *MinioStore
	prefix string
}

func NewMinioRepository[T any](store *MinioStore, namespace string) *MinioRepository[T] {
	return &MinioRepository[T]{store: store, prefix: strings.Trim(namespace, "/")}
}

func (m *MinioRepository[T]) objectKey(key string) string {
	return path.Join(m.prefix, key+".json")
}

func (m *MinioRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	data, err := m.read(ctx, m.objectKey(key))
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func (m *MinioRepository[T]) Put(ctx context.Context, key string, value T) error {
	content, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = m.store.client.PutObject(ctx, m.store.bucket, m.objectKey(key), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (m *MinioRepository[T]) List(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	for obj := range m.store.client.ListObjects(ctx, m.store.bucket, minio.ListObjectsOptions{
		Prefix:    m.prefix + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		data, err := m.read(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", obj.Key, err)
		}
		items = append(items, v)
	}
	return items, nil
}

func (m *MinioRepository[T]) Delete(ctx context.Context, key string) error {
	objectKey := m.objectKey(key)
	if _, err := m.store.client.StatObject(ctx, m.store.bucket, objectKey, minio.StatObjectOptions{}); err != nil {
		return mapMinioError(err)
	}
	return m.store.client.RemoveObject(ctx, m.store.bucket, objectKey, minio.RemoveObjectOptions{})
}

func (m *MinioRepository[T]) read(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.store.client.GetObject(ctx, m.store.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, mapMinioError(err)
	}
	return data.Bytes(), nil
}

func mapMinioError(err error) error {
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return ErrNotFound
	}
	return err
}
