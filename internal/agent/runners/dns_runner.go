package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/shared/constants"

	"github.com/miekg/dns"
)

// DNSRunner resolves target and reports the number of answers, or the first
// answer's data with the option value: first.
type DNSRunner struct {
	timeout time.Duration
}

func NewDNSRunner() *DNSRunner {
	return &DNSRunner{
		timeout: constants.DNSTimeout,
	}
}

func (r *DNSRunner) Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error) {
	recordType := strings.ToUpper(getStringOption(options, "record_type", "A"))
	server := getStringOption(options, "server", "8.8.8.8:53")
	timeout := getDurationOption(options, "timeout", r.timeout)

	client := &dns.Client{
		Net:     getStringOption(options, "net", "udp"),
		Timeout: timeout,
	}

	msg := dns.Msg{}
	msg.SetQuestion(dns.Fqdn(target), recordTypeToDNSType(recordType))

	response, _, err := client.ExchangeContext(ctx, &msg, server)
	if err != nil {
		return domain.Value{}, fmt.Errorf("DNS query failed: %w", err)
	}

	if response.Rcode != dns.RcodeSuccess {
		return domain.Value{}, fmt.Errorf("DNS error: %s", dns.RcodeToString[response.Rcode])
	}

	if getStringOption(options, "value", "count") == "first" {
		if len(response.Answer) == 0 {
			return domain.String(""), nil
		}
		return domain.String(recordData(response.Answer[0])), nil
	}

	return domain.Integer(int64(len(response.Answer))), nil
}

// recordData strips the header from the presentation form of rr.
func recordData(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}

func recordTypeToDNSType(recordType string) uint16 {
	switch recordType {
	case "A":
		return dns.TypeA
	case "AAAA":
		return dns.TypeAAAA
	case "MX":
		return dns.TypeMX
	case "NS":
		return dns.TypeNS
	case "TXT":
		return dns.TypeTXT
	case "CNAME":
		return dns.TypeCNAME
	case "SOA":
		return dns.TypeSOA
	case "PTR":
		return dns.TypePTR
	case "SRV":
		return dns.TypeSRV
	default:
		return dns.TypeA
	}
}
