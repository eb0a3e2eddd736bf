// ABOUTME: mDNS service discovery for audiograph network stream sinks
// ABOUTME: Handles both advertisement (sink side) and browsing (listener side)
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/protocol"
	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type advertised by stream sinks
	ServiceType = "_audiograph._tcp"

	// Domain is the mDNS domain
	Domain = "local"
)

var ErrNoServers = errors.New("no stream sinks found")

// Config holds discovery configuration. Zero fields take defaults.
type Config struct {
	// ServiceName is the advertised instance name
	ServiceName string

	// Port is the advertised WebSocket port
	Port int

	// Codec is advertised in the TXT record ("pcm" or "opus")
	Codec string

	// BrowseTimeout is the length of each query round (default 3s)
	BrowseTimeout time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo

	mu     sync.Mutex
	server *mdns.Server
	seen   map[string]bool
}

// ServerInfo describes a discovered sink
type ServerInfo struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Codec   string
	Version int
}

// Addr returns host:port for dialing
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
		seen:    make(map[string]bool),
	}
}

// txtRecords returns the TXT fields advertised for config
func txtRecords(config Config) []string {
	txt := []string{
		"path=" + protocol.Path,
		"version=" + strconv.Itoa(protocol.Version),
	}
	if config.Codec != "" {
		txt = append(txt, "codec="+config.Codec)
	}
	return txt
}

// Advertise announces the sink via mDNS until Stop
func (m *Manager) Advertise() error {
	if m.config.ServiceName == "" || m.config.Port <= 0 {
		return fmt.Errorf("advertising requires a service name and port")
	}
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	log.Infof("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()
	return nil
}

// Browse searches for sinks in the background until Stop. Each sink is
// reported once on Servers.
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously browses for sinks
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := entryToServer(entry)
				if server == nil || !m.markSeen(server) {
					continue
				}
				log.Infof("Discovered sink: %s at %s", server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Domain = Domain
		params.Timeout = m.config.BrowseTimeout
		params.Entries = entries
		params.DisableIPv6 = true
		if err := mdns.Query(params); err != nil {
			log.Warnf("mDNS query failed: %v", err)
			select {
			case <-m.ctx.Done():
			case <-time.After(m.config.BrowseTimeout):
			}
		}
		close(entries)
		<-done
	}
}

func (m *Manager) markSeen(s *ServerInfo) bool {
	key := s.Name + "@" + s.Addr()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false
	}
	m.seen[key] = true
	return true
}

// entryToServer converts a query result, or returns nil when it has no
// usable address
func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil
	}
	if entry.Port <= 0 {
		return nil
	}

	name := strings.TrimSuffix(entry.Name, "."+ServiceType+"."+Domain+".")
	name = strings.ReplaceAll(name, `\ `, " ")

	server := &ServerInfo{
		Name:    name,
		Host:    host,
		Port:    entry.Port,
		Path:    protocol.Path,
		Version: protocol.Version,
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			server.Path = value
		case "codec":
			server.Codec = value
		case "version":
			if v, err := strconv.Atoi(value); err == nil {
				server.Version = v
			}
		}
	}
	return server
}

// Servers returns the channel of discovered sinks
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// First browses until a sink is found or ctx is done
func (m *Manager) First(ctx context.Context) (*ServerInfo, error) {
	m.Browse()
	select {
	case s := <-m.servers:
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoServers, ctx.Err())
	case <-m.ctx.Done():
		return nil, ErrNoServers
	}
}

// Stop ends advertisement and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
