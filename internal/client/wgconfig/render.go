// Package wgconfig renders the single-peer wg-quick configuration a
// provisioned daemon is installed with.
package wgconfig

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/wgdaemon/internal/common"
)

// PersistentKeepalive is fixed for every rendered peer.
const PersistentKeepalive = 15

// Config holds the values substituted into the template. An empty
// PrivateKey renders as an empty field.
type Config struct {
	CompanyName   string
	PrivateKey    string
	Address       string
	DNS           string
	PeerPublicKey string
	AllowedIPs    string
	Endpoint      string
}

// Render produces the configuration text. It performs no I/O and never fails.
func Render(c Config) string {
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "#company %s\n", c.CompanyName)
	fmt.Fprintf(&b, "PrivateKey = %s\n", c.PrivateKey)
	fmt.Fprintf(&b, "Address = %s\n", c.Address)
	fmt.Fprintf(&b, "DNS = %s\n", c.DNS)
	b.WriteString("\n")

	b.WriteString("[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", c.PeerPublicKey)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", c.AllowedIPs)
	fmt.Fprintf(&b, "Endpoint = %s\n", EndpointWithPort(c.Endpoint))
	fmt.Fprintf(&b, "PersistentKeepalive = %d\n", PersistentKeepalive)
	return b.String()
}

// EndpointWithPort appends the default WireGuard port unless host already
// carries one.
func EndpointWithPort(host string) string {
	if host == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(common.WireGuardPort))
}

// PeerUpdate carries the peer-dependent values of an existing configuration.
type PeerUpdate struct {
	PeerPublicKey string
	AllowedIPs    string
	DNS           string
	Endpoint      string
}

var (
	publicKeyLine  = regexp.MustCompile(`(?m)^[ \t]*PublicKey[ \t]*=.*$`)
	allowedIPsLine = regexp.MustCompile(`(?m)^[ \t]*AllowedIPs[ \t]*=.*$`)
	dnsLine        = regexp.MustCompile(`(?m)^[ \t]*DNS[ \t]*=.*$`)
	endpointLine   = regexp.MustCompile(`(?m)^[ \t]*Endpoint[ \t]*=.*$`)
)

// UpdatePeer rewrites the PublicKey, AllowedIPs, DNS and Endpoint lines of
// text, leaving everything else (the private key in particular) untouched.
func UpdatePeer(text string, u PeerUpdate) string {
	replace := func(re *regexp.Regexp, s, line string) string {
		return re.ReplaceAllLiteralString(s, line)
	}
	text = replace(publicKeyLine, text, "PublicKey = "+u.PeerPublicKey)
	text = replace(allowedIPsLine, text, "AllowedIPs = "+u.AllowedIPs)
	text = replace(dnsLine, text, "DNS = "+u.DNS)
	text = replace(endpointLine, text, "Endpoint = "+EndpointWithPort(u.Endpoint))
	return text
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_=+.-]`)

// TunnelName is the name a daemon's configuration is installed under:
// <company>-<deviceID>, with characters wg-quick rejects replaced by '_'.
func TunnelName(company string, deviceID int64) string {
	return unsafeNameChars.ReplaceAllString(company, "_") + "-" + strconv.FormatInt(deviceID, 10)
}

var companyLine = regexp.MustCompile(`(?m)^#company (.*)$`)

// CompanyName reads the company marker back out of a rendered configuration.
func CompanyName(text string) (string, bool) {
	m := companyLine.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimRight(m[1], "\r"), true
}
