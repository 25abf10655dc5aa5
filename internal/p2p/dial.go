package p2p

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyEndpoint is a SOCKS5 proxy host:port, e.g. Tor's local SOCKS port.
type ProxyEndpoint struct {
	Host string
	Port uint16
}

func (p ProxyEndpoint) addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))
}

// openStream establishes the transport for dest, dialing directly over TCP
// or, for an .onion dest, through the supplied SOCKS5 proxy. An .onion dest
// with no proxy configured fails immediately with ErrProxyRequired and never
// touches the network. If dest is IPv6 and source is an IPv4 address, the
// source binding is dropped (the two families can't be combined).
func openStream(ctx context.Context, dest, source string, timeout time.Duration, px *ProxyEndpoint) (net.Conn, error) {
	destHost, _, err := net.SplitHostPort(dest)
	if err != nil {
		return nil, newConnError(KindConnectionError, fmt.Errorf("splitting destination: %w", err))
	}

	if strings.HasSuffix(destHost, ".onion") {
		if px == nil {
			return nil, newConnError(KindProxyRequired, ErrProxyRequired)
		}
		dialer, err := proxy.SOCKS5("tcp", px.addr(), nil, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, newConnError(KindConnectionError, fmt.Errorf("building SOCKS5 dialer: %w", err))
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			conn, err := dialer.Dial("tcp", dest)
			if err != nil {
				return nil, newConnError(KindConnectionError, fmt.Errorf("SOCKS5 connect: %w", err))
			}
			return conn, nil
		}
		conn, err := ctxDialer.DialContext(ctx, "tcp", dest)
		if err != nil {
			return nil, newConnError(KindConnectionError, fmt.Errorf("SOCKS5 connect: %w", err))
		}
		return conn, nil
	}

	d := &net.Dialer{Timeout: timeout}
	if source != "" {
		sourceHost, _, err := net.SplitHostPort(source)
		if err == nil && isIPv6(destHost) && !isIPv6(sourceHost) {
			// incompatible families: drop the source binding rather than fail
		} else if laddr, err := net.ResolveTCPAddr("tcp", source); err == nil {
			d.LocalAddr = laddr
		}
	}

	conn, err := d.DialContext(ctx, "tcp", dest)
	if err != nil {
		return nil, newConnError(KindConnectionError, fmt.Errorf("dialing %s: %w", dest, err))
	}
	return conn, nil
}

func isIPv6(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}
