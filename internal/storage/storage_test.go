// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestCleanKey(t *testing.T) {
	valid := map[string]string{
		"originals/abc/a.jpg": "originals/abc/a.jpg",
		"a//b/./c.png":        "a/b/c.png",
	}
	for in, want := range valid {
		got, err := cleanKey(in)
		if err != nil || got != want {
			t.Errorf("cleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "/etc/passwd", "../x", "a/../../x", `a\b`, ".", ".."} {
		if _, err := cleanKey(bad); err == nil {
			t.Errorf("cleanKey(%q) accepted", bad)
		}
	}
}

func TestLocal_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads/")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	url, err := l.Put(ctx, "originals/u1/hero.jpg", "image/jpeg", []byte("data"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/uploads/originals/u1/hero.jpg" {
		t.Errorf("url = %q", url)
	}
	got, err := os.ReadFile(filepath.Join(dir, "originals", "u1", "hero.jpg"))
	if err != nil || string(got) != "data" {
		t.Fatalf("file content = %q, %v", got, err)
	}

	if _, err := l.Put(ctx, "../escape.jpg", "image/jpeg", nil); err == nil {
		t.Error("traversal key accepted")
	}

	if err := l.DeletePrefix(ctx, "originals/u1"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "originals", "u1")); !os.IsNotExist(err) {
		t.Error("directory still present after DeletePrefix")
	}
	if err := l.DeletePrefix(ctx, "originals/missing"); err != nil {
		t.Errorf("DeletePrefix(missing) = %v", err)
	}
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	prefix := aws.ToString(in.Prefix)
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3_PutAndDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := &S3{client: fake, bucket: "media", baseURL: "https://cdn.example.com"}
	ctx := context.Background()

	url, err := s.Put(ctx, "thumbnail/u1/a.jpg", "image/jpeg", []byte("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "https://cdn.example.com/thumbnail/u1/a.jpg" {
		t.Errorf("url = %q", url)
	}
	if fake.types["thumbnail/u1/a.jpg"] != "image/jpeg" {
		t.Error("content type not forwarded")
	}
	_, _ = s.Put(ctx, "thumbnail/u10/b.jpg", "image/jpeg", []byte("y"))

	if err := s.DeletePrefix(ctx, "thumbnail/u1"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, ok := fake.objects["thumbnail/u1/a.jpg"]; ok {
		t.Error("object not deleted")
	}
	if _, ok := fake.objects["thumbnail/u10/b.jpg"]; !ok {
		t.Error("sibling prefix deleted")
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
		t.Error("missing bucket accepted")
	}
}
