// Package net provides network helpers shared by the listeners.
package net

import (
	"fmt"
	"net"
	"strings"
)

// The IPLimiter interface allows to check whether a certain IP
// is allowed.
type IPLimiter interface {
	// IsAllowed tests whether the IP is allowed.
	IsAllowed(ip string) bool

	// IsAllowedAddr tests whether the IP of a remote address is allowed.
	IsAllowedAddr(addr net.Addr) bool
}

type iplimit struct {
	allowlist []*net.IPNet
	blocklist []*net.IPNet
}

// NewIPLimiter creates a new IPLimiter with the given IP ranges for the
// allowed and blocked IPs. A plain IP is treated as a range with exactly
// this IP. Empty strings are ignored. Returns an error if an invalid IP
// range has been found.
func NewIPLimiter(blocklist, allowlist []string) (IPLimiter, error) {
	ipl := &iplimit{}

	var err error

	ipl.blocklist, err = parseRanges(blocklist)
	if err != nil {
		return nil, fmt.Errorf("block list: %w", err)
	}

	ipl.allowlist, err = parseRanges(allowlist)
	if err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}

	return ipl, nil
}

func parseRanges(list []string) ([]*net.IPNet, error) {
	ranges := []*net.IPNet{}

	for _, block := range list {
		block = strings.TrimSpace(block)
		if len(block) == 0 {
			continue
		}

		if !strings.Contains(block, "/") {
			ip := net.ParseIP(block)
			if ip == nil {
				return nil, fmt.Errorf("the IP %s is invalid", block)
			}

			if ip.To4() != nil {
				block += "/32"
			} else {
				block += "/128"
			}
		}

		_, cidr, err := net.ParseCIDR(block)
		if err != nil {
			return nil, fmt.Errorf("the IP block %s is invalid", block)
		}

		ranges = append(ranges, cidr)
	}

	return ranges, nil
}

// IsAllowed checks whether the provided IP is allowed according
// to the IP ranges in the allow- and blocklists.
func (ipl *iplimit) IsAllowed(ip string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, r := range ipl.blocklist {
		if r.Contains(parsedIP) {
			return false
		}
	}

	if len(ipl.allowlist) == 0 {
		return true
	}

	for _, r := range ipl.allowlist {
		if r.Contains(parsedIP) {
			return true
		}
	}

	return false
}

func (ipl *iplimit) IsAllowedAddr(addr net.Addr) bool {
	return ipl.IsAllowed(HostIP(addr))
}

type nulliplimiter struct{}

func NewNullIPLimiter() IPLimiter {
	return &nulliplimiter{}
}

func (ipl *nulliplimiter) IsAllowed(ip string) bool {
	return true
}

func (ipl *nulliplimiter) IsAllowedAddr(addr net.Addr) bool {
	return true
}

// HostIP returns the IP part of a network address, e.g. "10.0.0.1" for
// "10.0.0.1:9000". It returns an empty string for addresses without an IP.
func HostIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.TCPAddr:
		return a.IP.String()
	case nil:
		return ""
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}

	return host
}
