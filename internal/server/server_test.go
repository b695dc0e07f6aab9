package server

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/revenac/apiserver/config"
	"github.com/rs/zerolog"
)

func TestNewRequiresJWTSecret(t *testing.T) {
	if _, err := New(context.Background(), config.Config{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without JWT secret")
	}
}

func TestCloseLogsBackendErrors(t *testing.T) {
	var buf bytes.Buffer
	cli := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	if err := cli.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s := &Server{redis: cli, logger: zerolog.New(&buf)}
	s.close()

	if !strings.Contains(buf.String(), "close redis") {
		t.Fatalf("expected redis close error logged, got %q", buf.String())
	}
}
