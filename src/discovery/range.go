// Package discovery scans address ranges for nodes that answer the
// bootstrap probe, and maintains a de-duplicated registry of the peers it
// finds, annotated with their readiness.
package discovery

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/playergold/goldnode/src/common"
)

// Range is a set of candidate peer addresses sharing one port: either a
// single host (name or address) or an inclusive IPv4 span written as
// "192.168.1.10-192.168.1.20:18333".
type Range struct {
	raw  string
	host string
	port int

	span  bool
	start uint32
	end   uint32
}

// ParseRange parses a "host:port" or "first-last:port" string.
func ParseRange(s string) (*Range, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, common.NewError(common.InvalidArgument, "discovery.ParseRange", err.Error())
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, common.NewError(common.InvalidArgument, "discovery.ParseRange",
			fmt.Sprintf("bad port in %s", s))
	}

	if host == "" {
		return nil, common.NewError(common.InvalidArgument, "discovery.ParseRange",
			fmt.Sprintf("empty host in %s", s))
	}

	r := &Range{
		raw:  s,
		port: port,
	}

	//a dash makes this a span only when both sides are IPv4 addresses;
	//otherwise it is a hostname like seed-1.playergold.io
	if i := strings.Index(host, "-"); i >= 0 {
		startIP := net.ParseIP(host[:i]).To4()
		endIP := net.ParseIP(host[i+1:]).To4()
		if startIP != nil && endIP != nil {
			r.span = true
			r.start = binary.BigEndian.Uint32(startIP)
			r.end = binary.BigEndian.Uint32(endIP)
			if r.start > r.end {
				return nil, common.NewError(common.InvalidArgument, "discovery.ParseRange",
					fmt.Sprintf("inverted span in %s", s))
			}
			return r, nil
		}
	}

	r.host = host

	return r, nil
}

// ParseRanges parses a list of range strings.
func ParseRanges(specs []string) ([]*Range, error) {
	res := []*Range{}
	for _, s := range specs {
		r, err := ParseRange(s)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

// Size returns the number of addresses in the Range.
func (r *Range) Size() int {
	if !r.span {
		return 1
	}
	return int(r.end-r.start) + 1
}

// Hosts enumerates the "host:port" addresses in the Range.
func (r *Range) Hosts() []string {
	if !r.span {
		return []string{net.JoinHostPort(r.host, strconv.Itoa(r.port))}
	}

	hosts := make([]string, 0, r.Size())
	for ip := r.start; ; ip++ {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, ip)
		hosts = append(hosts, net.JoinHostPort(net.IP(b).String(), strconv.Itoa(r.port)))
		if ip == r.end {
			break
		}
	}

	return hosts
}

func (r *Range) String() string {
	return r.raw
}
