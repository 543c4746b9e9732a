// Package discovery advertises the sketch server on the local network over
// mDNS so browsers and companion apps can find it without a URL.
package discovery

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
	log "github.com/sirupsen/logrus"
)

// ServiceType is the DNS-SD service the server registers.
const ServiceType = "_sketch._tcp"

// Options describe the advertised service.
type Options struct {
	// Instance is the advertised name. Defaults to the hostname.
	Instance string

	// HostName must be fully qualified ("host.local."). Empty uses the OS
	// hostname.
	HostName string

	Port int

	// IPs to advertise. Nil auto-detects from HostName.
	IPs []net.IP
}

// NewService builds the mDNS zone for opts.
func NewService(opts Options) (*mdns.MDNSService, error) {
	instance := opts.Instance
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	info := []string{"path=/ws", "app=shared-sketch"}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", opts.HostName, opts.Port, opts.IPs, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

// Advertise starts answering mDNS queries for the server. Call Shutdown on the
// returned server to stop.
func Advertise(opts Options) (*mdns.Server, error) {
	service, err := NewService(opts)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	log.WithFields(log.Fields{
		"instance": service.Instance,
		"service":  ServiceType,
		"port":     opts.Port,
	}).Info("advertising over mDNS")
	return server, nil
}
