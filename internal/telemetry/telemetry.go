package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"printhub/internal/config"
)

// ErrUnsupportedScheme is returned for addresses no prober understands
var ErrUnsupportedScheme = errors.New("unsupported printer address scheme")

// Reading is one snapshot of a networked printer
type Reading struct {
	SysName string
	Serial  string
	Model   string
	// Supplies maps the lower-cased supply description to a 0-100 level.
	// Levels the device reports as unknown are left out.
	Supplies  map[string]int
	PageTotal int64
	PageBW    int64
	PageColor int64
	PolledAt  time.Time
}

type Prober interface {
	Probe(ctx context.Context, address string) (*Reading, error)
}

// MultiProber dispatches on the address scheme: ipp and ipps go over IPP,
// snmp and bare hosts go over SNMP.
type MultiProber struct {
	SNMP Prober
	IPP  Prober
}

func NewProber(cfg *config.Config) Prober {
	return &MultiProber{
		SNMP: &SNMPProber{Community: cfg.SNMPCommunity, Timeout: cfg.TelemetryTimeout},
		IPP:  &IPPProber{Timeout: cfg.TelemetryTimeout},
	}
}

func (m *MultiProber) Probe(ctx context.Context, address string) (*Reading, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("empty printer address")
	}

	scheme := ""
	if i := strings.Index(address, "://"); i > 0 {
		scheme = strings.ToLower(address[:i])
	}

	switch scheme {
	case "ipp", "ipps", "http", "https":
		if m.IPP == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
		}
		return m.IPP.Probe(ctx, address)
	case "", "snmp":
		if m.SNMP == nil {
			return nil, fmt.Errorf("%w: snmp", ErrUnsupportedScheme)
		}
		return m.SNMP.Probe(ctx, address)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// hostPort splits snmp://host:port, host:port or host
func hostPort(address, defaultPort string) (string, string, error) {
	if !strings.Contains(address, "://") {
		address = "snmp://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("no host in %q", address)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return host, port, nil
}

// SupplyLevel finds the first supply whose description contains every keyword
func (r *Reading) SupplyLevel(keywords ...string) (int, bool) {
	for name, level := range r.Supplies {
		match := true
		for _, k := range keywords {
			if !strings.Contains(name, k) {
				match = false
				break
			}
		}
		if match {
			return level, true
		}
	}
	return 0, false
}
