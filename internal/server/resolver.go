package server

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// Resolver turns a CONNECT target into the socket address to dial.
type Resolver interface {
	Resolve(ctx context.Context, target string) (*net.TCPAddr, error)
}

// Dialer opens outbound connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NetResolver resolves host:port targets with a net.Resolver. Service names
// are accepted as ports. The first address returned wins.
type NetResolver struct {
	Resolver *net.Resolver
}

// Resolve implements Resolver.
func (r NetResolver) Resolve(ctx context.Context, target string) (*net.TCPAddr, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}

	host, portName, err := net.SplitHostPort(target)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, fmt.Errorf("target %q has no host", target)
	}
	port, err := res.LookupPort(ctx, "tcp", portName)
	if err != nil {
		return nil, err
	}
	addrs, err := res.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %q", host)
	}
	return net.TCPAddrFromAddrPort(netip.AddrPortFrom(addrs[0].Unmap(), uint16(port))), nil
}
