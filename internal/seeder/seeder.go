// Package seeder generates realistic security events for demos and load
// testing. The shapes loosely follow Suricata EVE and Zeek conn records.
package seeder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

var alertSignatures = []struct {
	signature string
	category  string
	severity  int
}{
	{"ET SCAN Nmap Scripting Engine User-Agent Detected", "Attempted Information Leak", 2},
	{"ET POLICY SSH Outbound Connection to Non-Standard Port", "Potential Corporate Privacy Violation", 3},
	{"ET MALWARE Possible Cobalt Strike Beacon", "A Network Trojan was detected", 1},
	{"ET EXPLOIT Possible Log4j RCE Attempt", "Attempted Administrator Privilege Gain", 1},
	{"ET DNS Query to a Suspicious Domain", "Potentially Bad Traffic", 2},
	{"SURICATA HTTP unable to match response to request", "Generic Protocol Command Decode", 3},
}

// Generator produces raw events for a registered source.
type Generator struct {
	sourceID string
	kind     string
	rng      *rand.Rand
}

// New creates a generator. kind selects the event shape: "alert", "flow"
// or "dns".
func New(sourceID, kind string, seed int64) (*Generator, error) {
	switch kind {
	case "alert", "flow", "dns":
	default:
		return nil, fmt.Errorf("unknown event kind %q (supported: alert, flow, dns)", kind)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		sourceID: sourceID,
		kind:     kind,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Generate produces count events with timestamps spread over the given
// window, newest last.
func (g *Generator) Generate(count int, spread time.Duration) []models.RawEvent {
	now := time.Now().UTC()
	events := make([]models.RawEvent, 0, count)

	for i := 0; i < count; i++ {
		var ts time.Time
		if spread > 0 && count > 1 {
			offset := time.Duration(float64(spread) * float64(i) / float64(count-1))
			ts = now.Add(-spread + offset)
		} else {
			ts = now
		}

		var data map[string]interface{}
		switch g.kind {
		case "flow":
			data = g.flowEvent(ts)
		case "dns":
			data = g.dnsEvent(ts)
		default:
			data = g.alertEvent(ts)
		}

		events = append(events, models.RawEvent{
			Timestamp: ts,
			Source:    g.sourceID,
			Data:      data,
		})
	}
	return events
}

func (g *Generator) alertEvent(ts time.Time) map[string]interface{} {
	sig := alertSignatures[g.rng.Intn(len(alertSignatures))]
	return map[string]interface{}{
		"timestamp":  ts.Format(time.RFC3339Nano),
		"event_type": "alert",
		"src_ip":     g.internalIP(),
		"src_port":   g.rng.Intn(60000) + 1024,
		"dest_ip":    gofakeit.IPv4Address(),
		"dest_port":  []int{80, 443, 22, 53, 8080, 4444}[g.rng.Intn(6)],
		"proto":      "TCP",
		"alert": map[string]interface{}{
			"signature": sig.signature,
			"category":  sig.category,
			"severity":  sig.severity,
		},
		"flow_id": g.rng.Int63(),
	}
}

func (g *Generator) flowEvent(ts time.Time) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":   ts.Format(time.RFC3339Nano),
		"event_type":  "flow",
		"src_ip":      g.internalIP(),
		"src_port":    g.rng.Intn(60000) + 1024,
		"dest_ip":     gofakeit.IPv4Address(),
		"dest_port":   []int{80, 443, 22, 53}[g.rng.Intn(4)],
		"proto":       []string{"TCP", "UDP"}[g.rng.Intn(2)],
		"bytes_sent":  g.rng.Intn(1 << 20),
		"bytes_recvd": g.rng.Intn(1 << 24),
		"duration":    g.rng.Float64() * 300,
	}
}

func (g *Generator) dnsEvent(ts time.Time) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":  ts.Format(time.RFC3339Nano),
		"event_type": "dns",
		"src_ip":     g.internalIP(),
		"query":      gofakeit.DomainName(),
		"qtype":      []string{"A", "AAAA", "TXT", "MX", "CNAME"}[g.rng.Intn(5)],
		"rcode":      []string{"NOERROR", "NOERROR", "NOERROR", "NXDOMAIN"}[g.rng.Intn(4)],
	}
}

func (g *Generator) internalIP() string {
	return fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(254)+1)
}
