package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveImageStoresFileAndRow(t *testing.T) {
	store := newMemStore()
	base := t.TempDir()
	media := NewMediaStore(store, base)
	ctx := context.Background()

	asset, err := media.SaveImage(ctx, "owner-1", BucketAvatars, pngUpload("me.PNG"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, int64(len(pngHeader)), asset.SizeBytes)
	assert.Len(t, asset.SHA256, 64)
	assert.Equal(t, "me.PNG", asset.Filename)

	row, file, err := media.Open(ctx, asset.ID)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "owner-1", row.OwnerID)

	require.NoError(t, media.Delete(ctx, asset.ID))
	_, err = os.Stat(filepath.Join(base, BucketAvatars, asset.ID))
	assert.True(t, os.IsNotExist(err))
	_, _, err = media.Open(ctx, asset.ID)
	assert.True(t, HasCode(err, CodeNotFound))
}

func TestSaveImageRejectsNonImages(t *testing.T) {
	media := NewMediaStore(newMemStore(), t.TempDir())
	ctx := context.Background()

	_, err := media.SaveImage(ctx, "o", BucketReceipts, Upload{Filename: "notes.txt", Body: strings.NewReader("hello")})
	assert.True(t, HasCode(err, CodeUnsupportedFile))

	_, err = media.SaveImage(ctx, "o", BucketReceipts, Upload{Filename: "fake.png", Body: strings.NewReader("plain text pretending")})
	assert.True(t, HasCode(err, CodeUnsupportedFile))

	_, err = media.SaveImage(ctx, "o", BucketReceipts, Upload{Filename: "big.png", Size: MaxImageBytes + 1, Body: bytes.NewReader(pngHeader)})
	assert.True(t, HasCode(err, CodeUnsupportedFile))

	_, err = media.SaveImage(ctx, "o", BucketReceipts, Upload{Filename: "empty.png", Body: bytes.NewReader(nil)})
	assert.True(t, HasCode(err, CodeValidation))
}

func TestSaveImageEnforcesLimitOnStreamedBody(t *testing.T) {
	media := NewMediaStore(newMemStore(), t.TempDir())
	body := io.MultiReader(bytes.NewReader(pngHeader), bytes.NewReader(make([]byte, MaxImageBytes)))
	_, err := media.SaveImage(context.Background(), "o", BucketReceipts, Upload{Filename: "huge.png", Body: body})
	assert.True(t, HasCode(err, CodeUnsupportedFile))
}

func TestAssetURLRoundTrip(t *testing.T) {
	url := AssetURL("abc")
	assert.Equal(t, "/api/media/assets/abc/content", url)
	assert.Equal(t, "abc", AssetIDFromURL(url))
	assert.Equal(t, "", AssetIDFromURL("https://elsewhere.test/x.png"))
}

func TestDeleteIgnoresUnknownAssets(t *testing.T) {
	media := NewMediaStore(newMemStore(), t.TempDir())
	assert.NoError(t, media.Delete(context.Background(), "not-a-uuid"))
	assert.NoError(t, media.Delete(context.Background(), "3f1c5d1e-8d8e-4a57-9b0f-6a1cbb9e2f00"))
}
