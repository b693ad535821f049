// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Supported image variant types
const (
	VariantThumbnail = "thumbnail"
	VariantMedium    = "medium"
	VariantLarge     = "large"
)

// Supported upload MIME types
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// ImageVariantConfig defines settings for generating image variants.
type ImageVariantConfig struct {
	Width   int
	Height  int
	Quality int
	Crop    bool // true = crop to exact size, false = fit within bounds
}

// ImageVariants defines the generated sizes for uploaded images: card
// thumbnails, content images and hero banners.
var ImageVariants = map[string]ImageVariantConfig{
	VariantThumbnail: {Width: 400, Height: 300, Quality: 80, Crop: true},
	VariantMedium:    {Width: 1024, Height: 768, Quality: 85, Crop: false},
	VariantLarge:     {Width: 1920, Height: 1080, Quality: 88, Crop: false},
}

// IsAllowedImageType reports whether an upload MIME type is accepted.
func IsAllowedImageType(mime string) bool {
	switch mime {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	}
	return false
}

// Media is an uploaded image with its generated variants.
type Media struct {
	ID         int64             `json:"id"`
	UUID       string            `json:"uuid"`
	Filename   string            `json:"filename"`
	MimeType   string            `json:"mime_type"`
	Size       int64             `json:"size"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Alt        string            `json:"alt"`
	URL        string            `json:"url"`
	Variants   map[string]string `json:"variants"` // variant type -> URL
	UploadedBy *int64            `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
