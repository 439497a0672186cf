package contact

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type MXChecker interface {
	HasMX(ctx context.Context, domain string) bool
}

// DNSChecker asks public resolvers for MX records and caches the answer
// per domain for the life of the process.
type DNSChecker struct {
	Servers []string
	Timeout time.Duration

	mu    sync.Mutex
	cache map[string]bool
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{
		Servers: []string{"8.8.8.8:53", "1.1.1.1:53"},
		Timeout: 3 * time.Second,
		cache:   map[string]bool{},
	}
}

// HasMX reports false only when a resolver answered that the domain has no
// MX records; lookup failures count as unknown and keep the address.
func (c *DNSChecker) HasMX(ctx context.Context, domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	c.mu.Lock()
	if v, ok := c.cache[domain]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: c.Timeout}
	for _, server := range c.Servers {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil || resp == nil {
			continue
		}
		ok := resp.Rcode == dns.RcodeSuccess && hasMXAnswer(resp)
		c.mu.Lock()
		c.cache[domain] = ok
		c.mu.Unlock()
		return ok
	}
	return true
}

func hasMXAnswer(resp *dns.Msg) bool {
	for _, rr := range resp.Answer {
		if _, ok := rr.(*dns.MX); ok {
			return true
		}
	}
	return false
}

func domainOf(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}
