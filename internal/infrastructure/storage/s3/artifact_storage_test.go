package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, _ := io.ReadAll(params.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func newTestStorage(client objectPutter, prefix string) *ArtifactStorage {
	return &ArtifactStorage{
		client:       client,
		bucket:       "dbops",
		keyPrefix:    prefix,
		presignedTTL: time.Minute,
		now:          func() time.Time { return time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC) },
	}
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_shop_20261019_020000.sql")
	require.NoError(t, os.WriteFile(path, []byte("-- dump"), 0o600))

	client := &fakePutter{}
	storage := newTestStorage(client, "agent")

	key, err := storage.Upload(context.Background(), "backups", path)
	require.NoError(t, err)

	assert.Equal(t, "agent/backups/2026/10/19/backup_shop_20261019_020000.sql", key)
	assert.Equal(t, "dbops", *client.input.Bucket)
	assert.Equal(t, "application/sql", *client.input.ContentType)
	assert.Equal(t, int64(7), *client.input.ContentLength)
	assert.Equal(t, "-- dump", client.body)
}

func TestUploadErrors(t *testing.T) {
	storage := newTestStorage(&fakePutter{}, "")

	_, err := storage.Upload(context.Background(), "reports", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	_, err = storage.Upload(context.Background(), "", "x")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, os.WriteFile(path, []byte("<html>"), 0o600))
	failing := newTestStorage(&fakePutter{err: errors.New("access denied")}, "")
	_, err = failing.Upload(context.Background(), "reports", path)
	assert.ErrorContains(t, err, "access denied")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", contentTypeFor("database_health.HTML"))
	assert.Equal(t, "application/json", contentTypeFor("metrics_export.json"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("archive.tar"))
}

func TestObjectURLIsPresigned(t *testing.T) {
	storage, err := NewArtifactStorage(context.Background(), Config{
		Bucket:          "dbops",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	url, err := storage.ObjectURL(context.Background(), "reports/2026/10/19/report.html")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/dbops/reports/2026/10/19/report.html?"))
	assert.Contains(t, url, "X-Amz-Signature=")

	_, err = storage.ObjectURL(context.Background(), " ")
	assert.Error(t, err)
}

func TestNewArtifactStorageValidation(t *testing.T) {
	_, err := NewArtifactStorage(context.Background(), Config{})
	assert.Error(t, err)

	_, err = NewArtifactStorage(context.Background(), Config{Bucket: "dbops", AccessKeyID: "only-id"})
	assert.Error(t, err)
}
