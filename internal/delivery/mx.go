package delivery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// MXResolver returns the mail exchangers of a domain, most preferred first.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]string, error)
}

// DNSResolver queries MX records from a single DNS server.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver uses server ("host:port"). An empty server selects the first
// nameserver of /etc/resolv.conf.
func NewDNSResolver(server string) (*DNSResolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("failed to read resolver config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("%w: no nameserver configured", ErrDNSLookupFailed)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}

	return &DNSResolver{
		server: server,
		client: &dns.Client{Timeout: 5 * time.Second},
	}, nil
}

// LookupMX falls back to the domain itself when it publishes no MX record.
func (r *DNSResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	if domain == "localhost" {
		return []string{"localhost"}, nil
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	resp, _, err := r.client.ExchangeContext(ctx, query, r.server)
	if err != nil {
		return nil, fmt.Errorf("%w: MX %s: %v", ErrDNSLookupFailed, domain, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: MX %s: %s", ErrDNSLookupFailed, domain, dns.RcodeToString[resp.Rcode])
	}

	var records []*dns.MX
	for _, answer := range resp.Answer {
		if mx, ok := answer.(*dns.MX); ok {
			records = append(records, mx)
		}
	}
	if len(records) == 0 {
		return []string{domain}, nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Preference < records[j].Preference
	})

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		hosts = append(hosts, strings.TrimSuffix(mx.Mx, "."))
	}
	return hosts, nil
}
