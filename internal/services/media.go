package services

import (
	"bufio"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/google/uuid"
)

const (
	BucketReceipts = "receipts"
	BucketAvatars  = "avatars"
	MaxImageBytes  = 5 << 20
	assetURLPrefix = "/api/media/assets/"
)

var imageExtensions = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type MediaRepository interface {
	InsertMediaAsset(ctx context.Context, asset models.MediaAsset) error
	FindMediaAsset(ctx context.Context, id string) (models.MediaAsset, error)
	DeleteMediaAsset(ctx context.Context, id string) error
}

type MediaStore struct {
	repo     MediaRepository
	basePath string
	now      func() time.Time
}

func NewMediaStore(repo MediaRepository, basePath string) *MediaStore {
	return &MediaStore{repo: repo, basePath: basePath, now: time.Now}
}

func EnsureStoragePath(base string, bucket string) (string, error) {
	path := filepath.Join(base, bucket)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// SaveImage stores a jpeg, png or gif of at most 5MB. The extension and the
// sniffed content must both be an accepted image type.
func (m *MediaStore) SaveImage(ctx context.Context, ownerID, bucket string, upload Upload) (models.MediaAsset, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if _, ok := imageExtensions[ext]; !ok {
		return models.MediaAsset{}, ErrUnsupportedFile("Only image files are allowed (jpeg, jpg, png, gif)")
	}
	if upload.Size > MaxImageBytes {
		return models.MediaAsset{}, ErrUnsupportedFile("File exceeds the 5MB limit")
	}
	reader := bufio.NewReaderSize(upload.Body, 512)
	head, err := reader.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return models.MediaAsset{}, WrapError(err, "read upload")
	}
	if len(head) == 0 {
		return models.MediaAsset{}, ErrBadRequest("File is empty")
	}
	contentType := http.DetectContentType(head)
	if !isAcceptedImage(contentType) {
		return models.MediaAsset{}, ErrUnsupportedFile("Only image files are allowed (jpeg, jpg, png, gif)")
	}

	assetID := uuid.NewString()
	bucketPath, err := EnsureStoragePath(m.basePath, bucket)
	if err != nil {
		return models.MediaAsset{}, WrapError(err, "storage path")
	}
	targetPath := filepath.Join(bucketPath, assetID)
	file, err := os.Create(targetPath)
	if err != nil {
		return models.MediaAsset{}, WrapError(err, "create file")
	}
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), io.LimitReader(reader, MaxImageBytes+1))
	_ = file.Close()
	if err != nil {
		_ = os.Remove(targetPath)
		return models.MediaAsset{}, WrapError(err, "write file")
	}
	if size > MaxImageBytes {
		_ = os.Remove(targetPath)
		return models.MediaAsset{}, ErrUnsupportedFile("File exceeds the 5MB limit")
	}

	asset := models.MediaAsset{
		ID:          assetID,
		OwnerID:     ownerID,
		Bucket:      bucket,
		StorageKey:  assetID,
		Filename:    filepath.Base(upload.Filename),
		ContentType: contentType,
		SizeBytes:   size,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		CreatedAt:   m.now().UTC(),
	}
	if err := m.repo.InsertMediaAsset(ctx, asset); err != nil {
		_ = os.Remove(targetPath)
		return models.MediaAsset{}, WrapError(err, "insert media asset")
	}
	return asset, nil
}

// Open returns the asset row and its file. The caller closes the file.
func (m *MediaStore) Open(ctx context.Context, assetID string) (models.MediaAsset, *os.File, error) {
	if !validID(assetID) {
		return models.MediaAsset{}, nil, ErrNotFound("File not found")
	}
	asset, err := m.repo.FindMediaAsset(ctx, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MediaAsset{}, nil, ErrNotFound("File not found")
	}
	if err != nil {
		return models.MediaAsset{}, nil, WrapError(err, "find media asset")
	}
	file, err := os.Open(filepath.Join(m.basePath, asset.Bucket, asset.StorageKey))
	if errors.Is(err, os.ErrNotExist) {
		return models.MediaAsset{}, nil, ErrNotFound("File not found")
	}
	if err != nil {
		return models.MediaAsset{}, nil, WrapError(err, "open media file")
	}
	return asset, file, nil
}

func (m *MediaStore) Delete(ctx context.Context, assetID string) error {
	if !validID(assetID) {
		return nil
	}
	asset, err := m.repo.FindMediaAsset(ctx, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return WrapError(err, "find media asset")
	}
	if err := m.repo.DeleteMediaAsset(ctx, assetID); err != nil {
		return WrapError(err, "delete media asset")
	}
	if err := os.Remove(filepath.Join(m.basePath, asset.Bucket, asset.StorageKey)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return WrapError(err, "remove media file")
	}
	return nil
}

func AssetURL(assetID string) string {
	return assetURLPrefix + assetID + "/content"
}

// AssetIDFromURL extracts the asset id from a URL built by AssetURL.
func AssetIDFromURL(url string) string {
	if !strings.HasPrefix(url, assetURLPrefix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(url, assetURLPrefix), "/content")
}

func isAcceptedImage(contentType string) bool {
	for _, accepted := range imageExtensions {
		if contentType == accepted {
			return true
		}
	}
	return false
}
