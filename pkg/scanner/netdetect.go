package scanner

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// DetectCurrentNetwork guesses the primary local network. It opens a UDP
// socket toward a public address (nothing is sent) to learn the outbound
// interface address and assumes a /24, which fits most LANs.
func DetectCurrentNetwork() (string, error) {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 100*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("failed to detect local address: %w", err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	ip := localAddr.IP.To4()
	if ip == nil {
		return "", fmt.Errorf("no local IPv4 address detected")
	}
	network := ip.Mask(net.CIDRMask(24, 32))
	return fmt.Sprintf("%s/24", network), nil
}

// DetectAllLocalNetworks lists the IPv4 networks of every up interface,
// skipping loopback and link-local ranges, deduplicated in interface order.
func DetectAllLocalNetworks() []string {
	var networks []string
	seen := make(map[string]bool)

	ifaces, err := net.Interfaces()
	if err != nil {
		return networks
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			network := &net.IPNet{IP: ip.Mask(ipNet.Mask), Mask: ipNet.Mask}
			cidr := network.String()
			if !seen[cidr] {
				seen[cidr] = true
				networks = append(networks, cidr)
			}
		}
	}
	return networks
}

// SplitNetworks parses a stored comma-joined network range back into its
// entries, trimming whitespace and dropping empties.
func SplitNetworks(networkRange string) []string {
	var networks []string
	for _, part := range strings.Split(networkRange, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			networks = append(networks, trimmed)
		}
	}
	return networks
}

// ValidateNetworks checks that every entry is a CIDR range or a plain IP.
func ValidateNetworks(networks []string) error {
	for _, network := range networks {
		if strings.Contains(network, "/") {
			if _, _, err := net.ParseCIDR(network); err != nil {
				return fmt.Errorf("invalid network %q: %w", network, err)
			}
			continue
		}
		if net.ParseIP(network) == nil {
			return fmt.Errorf("invalid network %q: not an IP address or CIDR range", network)
		}
	}
	return nil
}
