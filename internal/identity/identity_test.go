package identity_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/telemetryhub/event-buffer/internal/identity"
)

func TestIdentity_InstanceIDIsAValidUUID(t *testing.T) {
	self := identity.New()
	if _, err := uuid.Parse(self.InstanceID()); err != nil {
		t.Fatalf("instance ID %q is not a UUID: %v", self.InstanceID(), err)
	}
	if self.Hostname() == "" {
		t.Fatal("hostname must never be empty")
	}
}

func TestIdentity_StableWithinProcess(t *testing.T) {
	self := identity.New()
	if self.InstanceID() != self.InstanceID() {
		t.Fatal("instance ID changed between reads")
	}
	if self.Hostname() != self.Hostname() {
		t.Fatal("hostname changed between reads")
	}
}

func TestIdentity_UniqueAcrossInstances(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := identity.New().InstanceID()
		if seen[id] {
			t.Fatalf("duplicate instance ID: %s", id)
		}
		seen[id] = true
	}
}

func TestIdentity_StringCombinesHostAndID(t *testing.T) {
	self := identity.New()
	want := self.Hostname() + "/" + self.InstanceID()
	if self.String() != want {
		t.Fatalf("String()=%q, want %q", self.String(), want)
	}
	if !strings.Contains(self.String(), "/") {
		t.Fatal("expected host/id separator")
	}
}
