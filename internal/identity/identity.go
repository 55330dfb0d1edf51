package identity

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Identity is the process-scoped holder token used for the cross-instance
// lock and for diagnostics. The instance ID is generated once per process
// lifetime and deliberately does not survive a restart: a restarted process
// is a new competitor for the lock.
type Identity struct {
	instanceID string
	hostname   string
}

func New() *Identity {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return &Identity{
		instanceID: uuid.NewString(),
		hostname:   host,
	}
}

func (i *Identity) InstanceID() string { return i.instanceID }
func (i *Identity) Hostname() string   { return i.hostname }

// String renders the identity as "hostname/instanceID" for log and stats output.
func (i *Identity) String() string {
	return fmt.Sprintf("%s/%s", i.hostname, i.instanceID)
}
