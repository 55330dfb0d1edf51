package store_test

import (
	"errors"
	"testing"

	"github.com/telemetryhub/event-buffer/internal/domain"
	"github.com/telemetryhub/event-buffer/internal/store"
)

func TestFactory_BackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{name: "default is memory", backend: "", wantErr: false},
		{name: "memory", backend: "memory", wantErr: false},
		{name: "case and whitespace tolerant", backend: "  Memory ", wantErr: false},
		{name: "unknown", backend: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := store.New(tt.backend, nil, "")
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnknownBackend) {
					t.Fatalf("expected ErrUnknownBackend, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := st.(*store.MemoryStore); !ok {
				t.Fatalf("expected memory backend, got %T", st)
			}
		})
	}
}

func TestFactory_PostgresRequiresPool(t *testing.T) {
	if _, err := store.New(store.BackendPostgres, nil, ""); err == nil {
		t.Fatal("expected error for postgres backend without a pool")
	}
}
