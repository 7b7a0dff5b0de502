package db

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{MinConns: 20, MaxConns: 4}.withDefaults()
	if o.MaxConns != 4 || o.MinConns != 4 {
		t.Fatalf("expected min clamped to max, got %+v", o)
	}
	o = Options{}.withDefaults()
	if o.MaxConns != 10 || o.MinConns != 1 || o.MaxConnLifetime != 30*time.Minute || o.MaxConnIdleTime != 5*time.Minute {
		t.Fatalf("unexpected defaults %+v", o)
	}
}

func TestReadyCheckNilPool(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatal("expected error for nil pool")
	}
}
