package discovery

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestNewService(t *testing.T) {
	svc, err := NewService(Options{
		Instance: "studio",
		HostName: "sketch.local.",
		Port:     3000,
		IPs:      []net.IP{net.IPv4(192, 168, 1, 20)},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if svc.Instance != "studio" || svc.Port != 3000 {
		t.Errorf("unexpected service %+v", svc)
	}
	if svc.Service != ServiceType {
		t.Errorf("service type: got %q", svc.Service)
	}

	q := dns.Question{Name: "_sketch._tcp.local.", Qtype: dns.TypePTR, Qclass: dns.ClassINET}
	records := svc.Records(q)
	if len(records) == 0 {
		t.Fatal("expected a PTR answer for the service type")
	}
	ptr, ok := records[0].(*dns.PTR)
	if !ok || ptr.Ptr != "studio._sketch._tcp.local." {
		t.Errorf("unexpected PTR answer %v", records[0])
	}
}

func TestNewService_DefaultsInstanceToHostname(t *testing.T) {
	svc, err := NewService(Options{
		HostName: "sketch.local.",
		Port:     3000,
		IPs:      []net.IP{net.IPv4(127, 0, 0, 1)},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.Instance == "" {
		t.Error("instance should default to the hostname")
	}
}

func TestNewService_RejectsUnqualifiedHost(t *testing.T) {
	_, err := NewService(Options{
		Instance: "studio",
		HostName: "not-qualified",
		Port:     3000,
		IPs:      []net.IP{net.IPv4(127, 0, 0, 1)},
	})
	if err == nil {
		t.Fatal("expected an error for a host name without a trailing dot")
	}
}
