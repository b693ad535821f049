// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/olegiv/agency-cms/internal/content"
	"github.com/olegiv/agency-cms/internal/imaging"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/storage"
)

// MaxUploadSize bounds one uploaded image.
const MaxUploadSize = 20 * 1024 * 1024

// originalsPrefix holds the re-encoded uploads; variants live under their
// type name.
const originalsPrefix = "originals"

// MediaStore is the persistence MediaService needs.
type MediaStore interface {
	CreateMedia(ctx context.Context, m *model.Media) error
	GetMediaByUUID(ctx context.Context, uuid string) (model.Media, error)
	ListMedia(ctx context.Context, limit, offset int) ([]model.Media, int64, error)
	DeleteMedia(ctx context.Context, id int64) error
}

// MediaService handles image uploads.
type MediaService struct {
	media     MediaStore
	blobs     storage.Blobs
	processor *imaging.Processor
	logger    *slog.Logger
}

// NewMediaService creates a new media service.
func NewMediaService(media MediaStore, blobs storage.Blobs, processor *imaging.Processor, logger *slog.Logger) *MediaService {
	if processor == nil {
		processor = imaging.NewProcessor(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{media: media, blobs: blobs, processor: processor, logger: logger}
}

// Upload stores an image with its variants and records it. Unsupported or
// unreadable images are reported as a validation error on "file".
func (s *MediaService) Upload(ctx context.Context, r io.Reader, filename, alt string, uploadedBy int64) (*model.Media, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fileError(fmt.Sprintf("File exceeds the %d MB limit", MaxUploadSize/(1024*1024)))
	}
	if mime := imaging.DetectMimeType(data); !model.IsAllowedImageType(mime) {
		return nil, fileError("Only JPEG, PNG, GIF and WebP images are accepted")
	}

	img, err := s.processor.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return nil, fileError("Only JPEG, PNG, GIF and WebP images are accepted")
		}
		return nil, fileError("Image could not be read")
	}

	id := uuid.NewString()
	name := content.Slugify(imaging.BaseName(filename))
	if name == "" {
		name = "image"
	}
	name += img.Ext

	m := &model.Media{
		UUID:     id,
		Filename: name,
		MimeType: img.MimeType,
		Size:     int64(len(img.Data)),
		Width:    img.Width,
		Height:   img.Height,
		Alt:      alt,
		Variants: map[string]string{},
	}
	if uploadedBy > 0 {
		m.UploadedBy = &uploadedBy
	}

	written := []string{path.Join(originalsPrefix, id)}
	m.URL, err = s.blobs.Put(ctx, path.Join(originalsPrefix, id, name), img.MimeType, img.Data)
	if err != nil {
		s.cleanup(id, written)
		return nil, fmt.Errorf("storing original: %w", err)
	}

	variants, err := s.processor.Variants(img)
	if err != nil {
		s.logger.Warn("failed to create image variants", "uuid", id, "error", err)
	}
	for _, v := range variants {
		written = append(written, path.Join(v.Type, id))
		url, err := s.blobs.Put(ctx, path.Join(v.Type, id, name), img.MimeType, v.Data)
		if err != nil {
			s.cleanup(id, written)
			return nil, fmt.Errorf("storing %s variant: %w", v.Type, err)
		}
		m.Variants[v.Type] = url
	}

	if err := s.media.CreateMedia(ctx, m); err != nil {
		s.cleanup(id, written)
		return nil, err
	}
	return m, nil
}

// List returns one page of uploads, newest first.
func (s *MediaService) List(ctx context.Context, limit, offset int) ([]model.Media, int64, error) {
	return s.media.ListMedia(ctx, limit, offset)
}

// Delete removes the record for uuid and then its blobs.
func (s *MediaService) Delete(ctx context.Context, id string) error {
	m, err := s.media.GetMediaByUUID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.media.DeleteMedia(ctx, m.ID); err != nil {
		return err
	}
	prefixes := []string{path.Join(originalsPrefix, id)}
	for variant := range m.Variants {
		prefixes = append(prefixes, path.Join(variant, id))
	}
	s.cleanup(id, prefixes)
	return nil
}

// cleanup removes prefixes without failing the caller.
func (s *MediaService) cleanup(id string, prefixes []string) {
	ctx := context.Background()
	for _, p := range prefixes {
		if err := s.blobs.DeletePrefix(ctx, p); err != nil {
			s.logger.Warn("failed to delete media files", "uuid", id, "prefix", p, "error", err)
		}
	}
}

func fileError(msg string) error {
	ve := model.NewValidationError()
	ve.Add("file", msg)
	return ve
}
