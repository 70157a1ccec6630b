package s3

import (
	"context"
	"fmt"
	"testing"

	"chainstate/internal/blob/blobtest"
	"chainstate/internal/blob/core"
)

func TestConformance(t *testing.T) {
	blobtest.Run(t, func(*testing.T) core.Store { return NewMock(0) })
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewMock(2)
	for i := 0; i < 5; i++ {
		if _, err := s.Write(ctx, fmt.Sprintf("local-%d.json", i), []byte("{}")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	infos, err := s.List(ctx, "local-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 5 || infos[0].Key != "local-0.json" || infos[4].Key != "local-4.json" {
		t.Fatalf("unexpected paginated listing %+v", infos)
	}
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMock(0)
	s.prefix = "team/"
	if _, err := s.Write(ctx, "shared.json", []byte("{}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	infos, _ := s.List(ctx, "")
	if len(infos) != 1 || infos[0].Key != "shared.json" {
		t.Fatalf("expected prefix stripped from keys, got %+v", infos)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CHAINSTATE_BLOB_S3_BUCKET", "b")
	t.Setenv("CHAINSTATE_BLOB_S3_PATH_STYLE", "TRUE")
	cfg := ConfigFromEnv(Config{Region: "eu-west-1"})
	if cfg.Bucket != "b" || !cfg.PathStyle || cfg.Region != "eu-west-1" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestDecodeSingleChunk(t *testing.T) {
	got, ok := decodeSingleChunk([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	if !ok || string(got) != "hello" {
		t.Fatalf("unexpected decode %q %v", got, ok)
	}
	if _, ok := decodeSingleChunk([]byte(`{"plain":true}`)); ok {
		t.Fatalf("plain body must pass through")
	}
}
