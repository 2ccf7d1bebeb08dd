package value

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var portOnly = regexp.MustCompile("^[0-9]+$")

// checked is a string value with its own normalization and validation.
type checked struct {
	p         *string
	normalize func(string) string
	check     func(string) error
}

func (c *checked) Set(val string) error {
	if c.normalize != nil {
		val = c.normalize(val)
	}

	*c.p = val

	return nil
}

func (c *checked) String() string { return *c.p }
func (c *checked) IsEmpty() bool  { return len(*c.p) == 0 }

func (c *checked) Validate() error {
	if c.check == nil {
		return nil
	}

	return c.check(*c.p)
}

// NewAddress is a host:port address or empty. A plain port number is
// accepted as ":port".
func NewAddress(p *string, val string) Value {
	*p = val

	return &checked{
		p: p,
		normalize: func(s string) string {
			if portOnly.MatchString(s) {
				return ":" + s
			}

			return s
		},
		check: func(s string) error {
			if len(s) == 0 {
				return nil
			}

			_, err := splitAddress(s)

			return err
		},
	}
}

// NewMulticastAddress is a group:port address with a multicast group.
func NewMulticastAddress(p *string, val string) Value {
	*p = val

	return &checked{
		p:         p,
		normalize: strings.TrimSpace,
		check: func(s string) error {
			host, err := splitAddress(s)
			if err != nil {
				return err
			}

			if ip := net.ParseIP(host); ip == nil || !ip.IsMulticast() {
				return fmt.Errorf("'%s' is not a multicast group address", host)
			}

			return nil
		},
	}
}

// NewAdapter is a network adapter given by its name (eth0) or by one of its
// IPv4 addresses. Empty selects the system default.
func NewAdapter(p *string, val string) Value {
	*p = val

	return &checked{
		p:         p,
		normalize: strings.TrimSpace,
		check: func(s string) error {
			if len(s) == 0 {
				return nil
			}

			if ip := net.ParseIP(s); ip != nil {
				if ip.To4() == nil {
					return fmt.Errorf("the adapter address must be IPv4")
				}

				return nil
			}

			if strings.ContainsAny(s, " /:") {
				return fmt.Errorf("'%s' is not a valid adapter name", s)
			}

			return nil
		},
	}
}

// splitAddress returns the host of a host:port address with a numerical port.
func splitAddress(s string) (string, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", err
	}

	if !portOnly.MatchString(port) {
		return "", fmt.Errorf("the port must be numerical")
	}

	return host, nil
}

// CIDRList is a list of IP ranges in CIDR notation.
type CIDRList struct {
	StringList
}

func NewCIDRList(p *[]string, val []string, separator string) *CIDRList {
	return &CIDRList{
		StringList: *NewStringList(p, val, separator),
	}
}

func (l *CIDRList) Validate() error {
	for _, cidr := range *l.p {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return err
		}
	}

	return nil
}
