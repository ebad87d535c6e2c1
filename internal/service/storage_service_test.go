package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"planora_backend/internal/config"
	"planora_backend/internal/util"
	"strings"
	"testing"
)

func TestStorageServiceFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(&config.StorageConfig{Type: "unknown", LocalPath: dir})
	if _, ok := svc.Provider.(*LocalStorageProvider); !ok {
		t.Fatalf("expected local provider got %T", svc.Provider)
	}
}

func TestStorageServiceUploadAttachment(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(&config.StorageConfig{Type: util.StorageLocal, LocalPath: dir})
	svc.now = newFakeClock().Now
	ctx := context.Background()

	body := "hello attachment"
	url, err := svc.UploadAttachment(ctx, 7, "Notes.TXT", strings.NewReader(body), int64(len(body)), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/attachments/7/202403/") || !strings.HasSuffix(url, ".txt") {
		t.Fatalf("unexpected url %q", url)
	}

	key := strings.TrimPrefix(url, "/uploads/")
	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(stored) != body {
		t.Fatalf("unexpected content %q", stored)
	}

	if err := svc.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Fatalf("file should be removed, stat err %v", err)
	}
}

func TestStorageServiceRejectsAttachments(t *testing.T) {
	svc := NewStorageService(&config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()})
	ctx := context.Background()

	cases := []struct {
		name     string
		filename string
		size     int64
	}{
		{name: "executable", filename: "run.exe", size: 10},
		{name: "no extension", filename: "README", size: 10},
		{name: "empty", filename: "a.png", size: 0},
		{name: "too large", filename: "a.png", size: util.MaxAttachmentSize + 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadAttachment(ctx, 1, tc.filename, strings.NewReader("x"), tc.size, "")
			if !errors.Is(err, util.ErrValidation) {
				t.Fatalf("expected ErrValidation got %v", err)
			}
		})
	}
}
