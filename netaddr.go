package pgodbc

import (
	"fmt"
	"net"

	"github.com/psqlodbc-go/pgodbc/oid"
)

// decodeInet/encodeInet, decodeCidr/encodeCidr, decodeMacaddr/encodeMacaddr
// give the Codec converters for the three network-address builtins.
// Grounded on the teacher's netaddr subpackage (Inet/Cidr/Macaddr
// Scan/Value wrappers around net.ParseIP/net.ParseCIDR/net.ParseMAC), with
// the database/sql Scanner/Valuer wrapper dropped in favor of plain
// Decoder/Encoder functions — stdlib "net" is the natural representation
// here and no third-party IP/CIDR/MAC library appears anywhere in the
// retrieval pack, so this is carried on the standard library deliberately
// rather than by default (see DESIGN.md).
func decodeInet(raw []byte) (any, error) {
	ip := net.ParseIP(string(raw))
	if ip == nil {
		return nil, fmt.Errorf("pgodbc: invalid inet literal %q", raw)
	}
	return ip, nil
}

func encodeInet(v any) (string, error) {
	ip, ok := v.(net.IP)
	if !ok {
		return "", fmt.Errorf("pgodbc: cannot encode %T as inet", v)
	}
	return quoteLiteral(ip.String()), nil
}

func decodeCidr(raw []byte) (any, error) {
	_, ipnet, err := net.ParseCIDR(string(raw))
	if err != nil {
		return nil, fmt.Errorf("pgodbc: invalid cidr literal %q: %w", raw, err)
	}
	return *ipnet, nil
}

func encodeCidr(v any) (string, error) {
	n, ok := v.(net.IPNet)
	if !ok {
		return "", fmt.Errorf("pgodbc: cannot encode %T as cidr", v)
	}
	return quoteLiteral(n.String()), nil
}

func decodeMacaddr(raw []byte) (any, error) {
	mac, err := net.ParseMAC(string(raw))
	if err != nil {
		return nil, fmt.Errorf("pgodbc: invalid macaddr literal %q: %w", raw, err)
	}
	return mac, nil
}

func encodeMacaddr(v any) (string, error) {
	mac, ok := v.(net.HardwareAddr)
	if !ok {
		return "", fmt.Errorf("pgodbc: cannot encode %T as macaddr", v)
	}
	return quoteLiteral(mac.String()), nil
}

func init() {
	defaultDecoders[oid.T_inet] = decodeInet
	defaultEncoders[oid.T_inet] = encodeInet
	defaultDecoders[oid.T_cidr] = decodeCidr
	defaultEncoders[oid.T_cidr] = encodeCidr
	defaultDecoders[oid.T_macaddr] = decodeMacaddr
	defaultEncoders[oid.T_macaddr] = encodeMacaddr
}
