// Package netinfo discovers the address participants on the same network
// should use to reach the server.
package netinfo

import (
	"net"
)

// LocalIP returns the outbound IPv4 address of this host. No packets are
// sent; dialing UDP only asks the kernel which interface would route to
// the target. Falls back to "localhost" when the host has no route.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "localhost"
	}
	return addr.IP.String()
}
