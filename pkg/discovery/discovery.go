// Package discovery advertises a motortwin server over mDNS and lets agents
// find it without a configured endpoint.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// Service is the DNS-SD service type registered by the server.
	Service = "_motortwin._tcp"
	// Domain is the mDNS domain browsed by agents.
	Domain = "local."
)

// ErrNotFound is returned by Find when no server answered in time.
var ErrNotFound = errors.New("discovery: no motortwin server found")

// Endpoint is one discovered server.
type Endpoint struct {
	Instance string
	MotorID  string
	URL      string // http://host:port
}

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers instance on port. motorID is published in the TXT
// record.
func Advertise(instance string, port int, motorID string) (*Advertisement, error) {
	txt := []string{"motor_id=" + motorID, "api=/api/v1"}
	srv, err := zeroconf.Register(instance, Service, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	slog.Info("discovery: advertising", "instance", instance, "service", Service, "port", port)
	return &Advertisement{server: srv}, nil
}

// Shutdown withdraws the registration.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Browse collects servers answering within timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]Endpoint, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: initialize resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}

	var out []Endpoint
	seen := map[string]bool{}
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return out, nil
			}
			ep, ok := endpointFromEntry(entry)
			if !ok || seen[ep.URL] {
				continue
			}
			seen[ep.URL] = true
			out = append(out, ep)
		case <-ctx.Done():
			return out, nil
		}
	}
}

// Find returns the URL of the first server found, preferring one that
// publishes motorID when motorID is set.
func Find(ctx context.Context, timeout time.Duration, motorID string) (string, error) {
	eps, err := Browse(ctx, timeout)
	if err != nil {
		return "", err
	}
	if ep, ok := pick(eps, motorID); ok {
		return ep.URL, nil
	}
	return "", ErrNotFound
}

func pick(eps []Endpoint, motorID string) (Endpoint, bool) {
	if len(eps) == 0 {
		return Endpoint{}, false
	}
	for _, ep := range eps {
		if motorID != "" && ep.MotorID == motorID {
			return ep, true
		}
	}
	return eps[0], true
}

func endpointFromEntry(e *zeroconf.ServiceEntry) (Endpoint, bool) {
	if e == nil || e.Port == 0 {
		return Endpoint{}, false
	}
	var host string
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	case e.HostName != "":
		host = strings.TrimSuffix(e.HostName, ".")
	default:
		return Endpoint{}, false
	}
	ep := Endpoint{
		Instance: e.Instance,
		URL:      "http://" + net.JoinHostPort(host, strconv.Itoa(e.Port)),
	}
	for _, kv := range e.Text {
		if v, ok := strings.CutPrefix(kv, "motor_id="); ok {
			ep.MotorID = v
		}
	}
	return ep, true
}
