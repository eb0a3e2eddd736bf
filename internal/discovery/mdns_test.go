// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests configuration, TXT records and query result conversion
package discovery

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Sink", Port: 8927})
	defer mgr.Stop()

	if mgr.config.BrowseTimeout != 3*time.Second {
		t.Errorf("BrowseTimeout = %v, want 3s", mgr.config.BrowseTimeout)
	}
	if mgr.Servers() == nil {
		t.Error("servers channel should not be nil")
	}
}

func TestAdvertiseRequiresNameAndPort(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"no name", Config{Port: 8927}},
		{"no port", Config{ServiceName: "sink"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(tt.config)
			defer mgr.Stop()
			if err := mgr.Advertise(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTXTRecords(t *testing.T) {
	txt := txtRecords(Config{Codec: "opus"})
	for _, want := range []string{"path=/audiograph", "version=1", "codec=opus"} {
		if !slices.Contains(txt, want) {
			t.Errorf("TXT %v missing %q", txt, want)
		}
	}
	if slices.ContainsFunc(txtRecords(Config{}), func(s string) bool { return s == "codec=" }) {
		t.Error("empty codec should not be advertised")
	}
}

func TestEntryToServer(t *testing.T) {
	tests := []struct {
		name  string
		entry mdns.ServiceEntry
		want  *ServerInfo
	}{
		{
			name: "ipv4 with txt",
			entry: mdns.ServiceEntry{
				Name:       `Living\ Room._audiograph._tcp.local.`,
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       8927,
				InfoFields: []string{"path=/custom", "codec=opus", "version=2", "junk"},
			},
			want: &ServerInfo{Name: "Living Room", Host: "192.168.1.20", Port: 8927, Path: "/custom", Codec: "opus", Version: 2},
		},
		{
			name: "ipv6 defaults",
			entry: mdns.ServiceEntry{
				Name:   "Kitchen._audiograph._tcp.local.",
				AddrV6: net.ParseIP("fe80::1"),
				Port:   9000,
			},
			want: &ServerInfo{Name: "Kitchen", Host: "fe80::1", Port: 9000, Path: "/audiograph", Version: 1},
		},
		{
			name:  "no address",
			entry: mdns.ServiceEntry{Name: "Ghost", Port: 8927},
		},
		{
			name:  "no port",
			entry: mdns.ServiceEntry{Name: "Ghost", AddrV4: net.IPv4(10, 0, 0, 1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryToServer(&tt.entry)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestServerInfoAddr(t *testing.T) {
	tests := []struct {
		info ServerInfo
		want string
	}{
		{ServerInfo{Host: "192.168.1.20", Port: 8927}, "192.168.1.20:8927"},
		{ServerInfo{Host: "fe80::1", Port: 9000}, "[fe80::1]:9000"},
	}
	for _, tt := range tests {
		if got := tt.info.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestMarkSeen(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	s := &ServerInfo{Name: "a", Host: "10.0.0.1", Port: 1}
	if !mgr.markSeen(s) {
		t.Error("first sighting should be reported")
	}
	if mgr.markSeen(&ServerInfo{Name: "a", Host: "10.0.0.1", Port: 1}) {
		t.Error("repeat sighting should be suppressed")
	}
	if !mgr.markSeen(&ServerInfo{Name: "a", Host: "10.0.0.1", Port: 2}) {
		t.Error("different port is a different sink")
	}
}

func TestFirstStopped(t *testing.T) {
	mgr := NewManager(Config{BrowseTimeout: 10 * time.Millisecond})
	mgr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := mgr.First(ctx); !errors.Is(err, ErrNoServers) {
		t.Errorf("expected ErrNoServers, got %v", err)
	}
}
