package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Instance represents an mbproxy control endpoint found on the network
type Instance struct {
	// Name is the mDNS instance name (e.g., "mbproxy-hmi-gw")
	Name string

	// Hostname is the mDNS hostname (e.g., "gateway.local.")
	Hostname string

	// IP is the advertised address, IPv4 when available
	IP string

	// Port is the control endpoint port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "path=/control", "target=172.20.0.10:502", "version=1.0.0"
	Metadata map[string]string

	// DiscoveredAt is when the instance was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the instance
func (i *Instance) String() string {
	return fmt.Sprintf("mbproxy %s (%s) at %s", i.Name, i.Hostname, net.JoinHostPort(i.IP, strconv.Itoa(i.Port)))
}

// ControlURL returns the WebSocket URL of the control endpoint
func (i *Instance) ControlURL() string {
	path := i.GetMetadata(TxtPath)
	if path == "" {
		path = DefaultControlPath
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(i.IP, strconv.Itoa(i.Port)), path)
}

// Target returns the upstream Modbus server the proxy relays to
func (i *Instance) Target() string {
	return i.GetMetadata(TxtTarget)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}
