package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalStorage(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	storage := NewLocalStorage(tempDir)
	ctx := context.Background()
	content := "hello storage"
	key := "test/file.txt"
	contentType := "text/plain"
	size := int64(len(content))

	t.Run("UploadReader creates file", func(t *testing.T) {
		reader := strings.NewReader(content)
		result, err := storage.UploadReader(ctx, reader, key, contentType, size)
		assert.NoError(t, err)
		assert.Equal(t, key, result.Key)
		assert.Equal(t, size, result.Size)
		assert.Equal(t, contentType, result.ContentType)

		// Verify file exists
		_, err = os.Stat(filepath.Join(tempDir, key))
		assert.NoError(t, err)
	})

	t.Run("Get retrieves file content", func(t *testing.T) {
		reader, retrievedType, err := storage.Get(ctx, key)
		assert.NoError(t, err)
		defer reader.Close()

		got, _ := io.ReadAll(reader)
		assert.Equal(t, content, string(got))
		assert.Equal(t, "application/octet-stream", retrievedType)
	})

	t.Run("Get detects MIME types correctly", func(t *testing.T) {
		pngKey := "consultations/2026/03/image.png"
		storage.UploadReader(ctx, strings.NewReader("fake-png"), pngKey, "image/png", 8)

		_, retrievedType, err := storage.Get(ctx, pngKey)
		assert.NoError(t, err)
		assert.Equal(t, "image/png", retrievedType)

		jpgKey := "test/image.jpg"
		storage.UploadReader(ctx, strings.NewReader("fake-jpg"), jpgKey, "image/jpeg", 8)
		_, retrievedType, err = storage.Get(ctx, jpgKey)
		assert.NoError(t, err)
		assert.Equal(t, "image/jpeg", retrievedType)
	})

	t.Run("Keys cannot escape the storage root", func(t *testing.T) {
		for _, bad := range []string{"", "../outside.png", "consultations/../../outside.png", "/absolute.png", "a//b.png"} {
			_, err := storage.UploadReader(ctx, strings.NewReader("x"), bad, "image/png", 1)
			assert.ErrorIs(t, err, ErrInvalidStorageKey, bad)
		}
		_, _, err := storage.Get(ctx, "../outside.png")
		assert.ErrorIs(t, err, ErrInvalidStorageKey)
		assert.ErrorIs(t, storage.Delete(ctx, "../outside.png"), ErrInvalidStorageKey)
	})

	t.Run("Delete of a missing file succeeds", func(t *testing.T) {
		assert.NoError(t, storage.Delete(ctx, "consultations/2026/03/missing.png"))
	})

	t.Run("Delete removes file", func(t *testing.T) {
		err := storage.Delete(ctx, key)
		assert.NoError(t, err)

		_, err = os.Stat(filepath.Join(tempDir, key))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("URLs and paths", func(t *testing.T) {
		expected := "/" + filepath.Join(tempDir, "some/key")
		url := storage.GetPublicURL("some/key")
		assert.Equal(t, expected, url)

		signed, err := storage.GetSignedURL(ctx, "some/key", time.Hour)
		assert.NoError(t, err)
		assert.Equal(t, expected, signed)
	})
}

func TestKeyGeneration(t *testing.T) {
	now := time.Date(2026, 3, 7, 15, 4, 5, 0, time.UTC)

	t.Run("GenerateStorageKey", func(t *testing.T) {
		key := GenerateStorageKey("prefix", ".png", now)
		assert.True(t, strings.HasPrefix(key, "prefix/"))
		assert.True(t, strings.HasSuffix(key, ".png"))
		parts := strings.Split(strings.TrimSuffix(filepath.Base(key), ".png"), "_")
		assert.Len(t, parts, 2)
		assert.Equal(t, "1772895845", parts[1])
	})

	t.Run("Keys are unique", func(t *testing.T) {
		assert.NotEqual(t, GenerateStorageKey("p", ".jpg", now), GenerateStorageKey("p", ".jpg", now))
	})

	t.Run("GenerateConsultationImageKey", func(t *testing.T) {
		key := GenerateConsultationImageKey(".jpg", now)
		assert.True(t, strings.HasPrefix(key, "consultations/2026/03/"))
		assert.True(t, strings.HasSuffix(key, ".jpg"))
	})
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentTypeForKey("a/b.JPEG"))
	assert.Equal(t, "image/jpeg", contentTypeForKey("a/b.jpg"))
	assert.Equal(t, "image/webp", contentTypeForKey("a/b.webp"))
	assert.Equal(t, "image/gif", contentTypeForKey("a/b.gif"))
	assert.Equal(t, "application/octet-stream", contentTypeForKey("a/b"))
}

func TestR2PublicURL(t *testing.T) {
	assert.Equal(t, "", (&R2Storage{}).GetPublicURL("consultations/x.png"))

	r2 := &R2Storage{publicURL: "https://cdn.example.hn"}
	assert.Equal(t, "https://cdn.example.hn/consultations/x.png", r2.GetPublicURL("consultations/x.png"))
}

func TestIsConfigured(t *testing.T) {
	ls := NewLocalStorage("/tmp")
	assert.True(t, ls.IsConfigured())

	r2 := &R2Storage{bucket: "test-bucket", client: nil}
	assert.False(t, r2.IsConfigured())
}
