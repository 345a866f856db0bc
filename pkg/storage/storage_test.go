package storage_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/JaimeStill/lectern/pkg/lifecycle"
	"github.com/JaimeStill/lectern/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAzure(t *testing.T) {
	cfg := &storage.Config{ConnectionString: azuriteConnString}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	sys, err := storage.New(cfg, discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys == nil {
		t.Fatal("New() returned nil system")
	}
}

func TestNewInvalidConnectionString(t *testing.T) {
	cfg := &storage.Config{
		Provider:         storage.ProviderAzure,
		ContainerName:    "lectern",
		ConnectionString: "not-a-connection-string",
	}

	if _, err := storage.New(cfg, discard()); err == nil {
		t.Fatal("expected error for invalid connection string, got nil")
	}
}

func TestLocalRoundTrip(t *testing.T) {
	sys := storage.NewLocal(t.TempDir(), discard())
	ctx := context.Background()

	ref, err := sys.Put(ctx, "workflows/u1/wf-1/formattedText.txt", strings.NewReader("hello"), "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "workflows/u1/wf-1/formattedText.txt" {
		t.Errorf("ref = %q", ref)
	}

	data, err := storage.ReadAll(ctx, sys, ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}

	if ok, err := sys.Exists(ctx, ref); err != nil || !ok {
		t.Errorf("exists = %v, %v", ok, err)
	}

	if err := sys.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := sys.Exists(ctx, ref); ok {
		t.Error("blob still exists after delete")
	}
	if _, err := sys.Get(ctx, ref); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get deleted = %v, want ErrNotFound", err)
	}
	if err := sys.Delete(ctx, ref); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("delete missing = %v, want ErrNotFound", err)
	}
}

func TestLocalRejectsKeys(t *testing.T) {
	sys := storage.NewLocal(t.TempDir(), discard())
	ctx := context.Background()

	tests := []struct {
		key  string
		want error
	}{
		{"", storage.ErrEmptyKey},
		{"../escape.txt", storage.ErrInvalidKey},
		{"a/../../b", storage.ErrInvalidKey},
		{"/etc/passwd", storage.ErrInvalidKey},
		{`uploads\u1\doc.pdf`, storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.key), func(t *testing.T) {
			if _, err := sys.Put(ctx, tt.key, strings.NewReader("x"), ""); !errors.Is(err, tt.want) {
				t.Errorf("put = %v, want %v", err, tt.want)
			}
			if _, err := sys.Get(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("get = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLocalStartCreatesRoot(t *testing.T) {
	root := t.TempDir() + "/blobs"
	sys := storage.NewLocal(root, discard())

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("start: %v", err)
	}
	lc.WaitForStartup()

	if ok, err := sys.Exists(context.Background(), "anything"); err != nil || ok {
		t.Errorf("exists in empty root = %v, %v", ok, err)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"empty key", storage.ErrEmptyKey, http.StatusBadRequest},
		{"invalid key", storage.ErrInvalidKey, http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("operation failed: %w", storage.ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("unexpected failure"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storage.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := storage.Config{ConnectionString: "conn"}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Provider != storage.ProviderAzure || cfg.ContainerName != "lectern" || cfg.Root != "data/blobs" {
			t.Errorf("defaults: got %+v", cfg)
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_STORAGE_PROVIDER", "local")
		t.Setenv("TEST_STORAGE_ROOT", "/var/lib/lectern")

		cfg := storage.Config{}
		err := cfg.Finalize(&storage.Env{Provider: "TEST_STORAGE_PROVIDER", Root: "TEST_STORAGE_ROOT"})
		if err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Provider != storage.ProviderLocal || cfg.Root != "/var/lib/lectern" {
			t.Errorf("config: got %+v", cfg)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name    string
			cfg     storage.Config
			wantErr string
		}{
			{"azure without credentials", storage.Config{}, "connection_string or account_url required"},
			{"unknown provider", storage.Config{Provider: "s3"}, "unsupported provider"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.cfg.Finalize(nil)
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %v, want %q", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("account url is enough", func(t *testing.T) {
		cfg := storage.Config{AccountURL: "https://acct.blob.core.windows.net"}
		if err := cfg.Finalize(nil); err != nil {
			t.Errorf("finalize failed: %v", err)
		}
	})

	t.Run("merge", func(t *testing.T) {
		base := storage.Config{Provider: storage.ProviderAzure, ContainerName: "a"}
		base.Merge(&storage.Config{Provider: storage.ProviderLocal, Root: "/tmp/x"})
		if base.Provider != storage.ProviderLocal || base.ContainerName != "a" || base.Root != "/tmp/x" {
			t.Errorf("merge: got %+v", base)
		}
	})
}
