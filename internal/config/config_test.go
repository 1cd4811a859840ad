package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8788" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.BlobBucket != "pagesync" {
		t.Errorf("bucket = %q", cfg.BlobBucket)
	}
	if cfg.SyncWindow.Hours() != 24 {
		t.Errorf("sync window = %v", cfg.SyncWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAGESYNC_ADDR", ":9999")
	t.Setenv("PAGESYNC_SYNC_WINDOW_HOURS", "6")
	t.Setenv("BLOB_USE_SSL", "false")

	cfg := Load()
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.SyncWindow.Hours() != 6 {
		t.Errorf("sync window = %v", cfg.SyncWindow)
	}
	if cfg.BlobUseSSL {
		t.Error("ssl override not applied")
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.BlobAccessKey = "key"
	cfg.BlobSecretKey = "secret"
	cfg.BlobBaseURL = "https://cdn.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.BlobSecretKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing blob credentials accepted")
	}

	cfg = Load()
	cfg.BlobAccessKey = "key"
	cfg.BlobSecretKey = "secret"
	if err := cfg.Validate(); err == nil {
		t.Error("missing blob base url accepted")
	}
}
