// Package discovery announces and finds mbproxy control endpoints over mDNS.
//
// A proxy started with --advertise registers its WebSocket control endpoint
// as a "_mbproxy._tcp" service. The TXT record carries the control path,
// the upstream target and the proxy version. "mbproxy discover" browses
// for those services.
//
// # Usage Example
//
//	adv, err := discovery.Advertise("mbproxy-gw", 8502, map[string]string{
//	    discovery.TxtPath:   discovery.DefaultControlPath,
//	    discovery.TxtTarget: "172.20.0.10:502",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	instances, err := discovery.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Peers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
