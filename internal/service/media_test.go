// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/storage"
	"github.com/olegiv/agency-cms/internal/testutil"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newMediaService(t *testing.T) (*MediaService, *storage.Local) {
	t.Helper()
	_, q := newTestDB(t)
	blobs, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	return NewMediaService(q, blobs, nil, testutil.TestLogger()), blobs
}

func TestMediaUpload(t *testing.T) {
	svc, blobs := newMediaService(t)
	ctx := context.Background()

	m, err := svc.Upload(ctx, bytes.NewReader(pngBytes(t, 640, 480)), "My Hero Shot.PNG", "Hero", 0)
	require.NoError(t, err)

	assert.NotZero(t, m.ID)
	assert.Equal(t, "my-hero-shot.png", m.Filename)
	assert.Equal(t, model.MimeTypePNG, m.MimeType)
	assert.Equal(t, 640, m.Width)
	assert.Equal(t, 480, m.Height)
	assert.Equal(t, "/uploads/originals/"+m.UUID+"/my-hero-shot.png", m.URL)
	assert.Nil(t, m.UploadedBy)

	// Only the cropped thumbnail is produced for a source smaller than
	// the fit variants.
	require.Len(t, m.Variants, 1)
	assert.Equal(t, "/uploads/thumbnail/"+m.UUID+"/my-hero-shot.png", m.Variants[model.VariantThumbnail])

	for _, rel := range []string{"originals", "thumbnail"} {
		_, err := os.Stat(filepath.Join(blobs.Root(), rel, m.UUID, "my-hero-shot.png"))
		assert.NoError(t, err, rel)
	}

	items, total, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, m.UUID, items[0].UUID)
}

func TestMediaUpload_RejectsNonImages(t *testing.T) {
	svc, _ := newMediaService(t)

	_, err := svc.Upload(context.Background(), strings.NewReader("%PDF-1.4 not an image"), "brief.pdf", "", 0)
	ve, ok := model.AsValidationError(err)
	require.True(t, ok, "error = %v", err)
	assert.Contains(t, ve.Fields, "file")
}

func TestMediaDelete(t *testing.T) {
	svc, blobs := newMediaService(t)
	ctx := context.Background()

	m, err := svc.Upload(ctx, bytes.NewReader(pngBytes(t, 500, 400)), "logo.png", "", 0)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, m.UUID))

	_, err = os.Stat(filepath.Join(blobs.Root(), "originals", m.UUID))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(blobs.Root(), "thumbnail", m.UUID))
	assert.True(t, os.IsNotExist(err))

	err = svc.Delete(ctx, m.UUID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
