package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID returns an ID of this machine which is stable across reboots
// and does not expose the raw machine ID.
func MachineID() string {
	id, err := machineid.ProtectedID("hil")
	if err != nil {
		glog.Warningf("machine ID unavailable: %v", err)
		return "hil"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// ID returns BoardID or the machine ID when unset.
func (c *BoardConfig) ID() string {
	if c.BoardID != "" {
		return c.BoardID
	}
	return MachineID()
}
