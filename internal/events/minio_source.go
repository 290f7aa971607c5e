package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// ObjectEvent announces a JSON object written under a watched prefix, such as
// a dead letter archived by the forwarding sink.
type ObjectEvent struct {
	ID        string
	ObjectKey string
	EventName string
}

type ObjectSource interface {
	Run(ctx context.Context, handler func(context.Context, ObjectEvent) error) error
}

type MinioObjectSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioObjectSource(client *minio.Client, bucket, prefix string) *MinioObjectSource {
	return &MinioObjectSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *MinioObjectSource) Run(ctx context.Context, handler func(context.Context, ObjectEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix+"/", ".json", []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				id, err := parseObjectKey(s.prefix, objectKey)
				if err != nil {
					continue
				}
				event := ObjectEvent{ID: id, ObjectKey: objectKey, EventName: record.EventName}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseObjectKey extracts <id> from <prefix>/<id>.json. Nested keys are rejected.
func parseObjectKey(prefix, objectKey string) (string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	dir, file := path.Split(cleaned)
	if strings.Trim(dir, "/") != prefix {
		return "", fmt.Errorf("object key %q is not directly under %q", objectKey, prefix)
	}
	id := strings.TrimSpace(strings.TrimSuffix(file, ".json"))
	if id == "" || id == file {
		return "", fmt.Errorf("object key %q is not a json object", objectKey)
	}
	return id, nil
}
