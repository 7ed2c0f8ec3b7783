package netinfo

import (
	"net"
	"testing"
)

func TestLocalIP(t *testing.T) {
	got := LocalIP()
	if got == "" {
		t.Fatal("LocalIP returned empty string")
	}
	if got == "localhost" {
		t.Skip("host has no outbound route")
	}
	if net.ParseIP(got) == nil {
		t.Errorf("LocalIP = %q, not a valid IP", got)
	}
}
