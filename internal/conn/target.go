package conn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/danmuck/connrelay/internal/fault"
)

const targetLabel = "conn.target"

// Protocol is the transport a connection URL asks for.
type Protocol int

const (
	ProtocolOpaque Protocol = iota
	ProtocolWS
	ProtocolHTTP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolWS:
		return "ws"
	case ProtocolHTTP:
		return "http"
	default:
		return "opaque"
	}
}

// ParseProtocol accepts "ws" or "http" in any case.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "WS":
		return ProtocolWS, nil
	case "HTTP":
		return ProtocolHTTP, nil
	default:
		return ProtocolOpaque, fault.New(fault.KindResource, targetLabel, "invalid protocol: %s", name)
	}
}

func protocolForScheme(scheme string) Protocol {
	switch strings.ToLower(scheme) {
	case "ws", "wss":
		return ProtocolWS
	case "http", "https":
		return ProtocolHTTP
	default:
		return ProtocolOpaque
	}
}

// Target is a parsed connection URL.
type Target struct {
	Raw      string
	URL      *url.URL
	Protocol Protocol
}

// ParseTarget requires an absolute URL with a scheme and a host.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fault.New(fault.KindResource, targetLabel, "empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fault.Wrap(fault.KindResource, targetLabel, err)
	}
	if u.Scheme == "" {
		return Target{}, fault.New(fault.KindResource, targetLabel, "url %q missing scheme", raw)
	}
	if u.Host == "" {
		return Target{}, fault.New(fault.KindResource, targetLabel, "url %q missing host", raw)
	}
	return Target{Raw: raw, URL: u, Protocol: protocolForScheme(u.Scheme)}, nil
}

func (t Target) String() string {
	if t.URL == nil {
		return t.Raw
	}
	return fmt.Sprintf("%s://%s", t.URL.Scheme, t.URL.Host)
}
