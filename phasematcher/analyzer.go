package phasematcher

import (
	"encoding/binary"
	"net"

	"github.com/inetrg/spoki/record"
)

// isSyn reports whether pkt is a bare TCP SYN (no ACK).
func isSyn(pkt record.Packet) bool {
	return pkt.Proto == record.ProtoTCP && pkt.TCP.Flags.SYN && !pkt.TCP.Flags.ACK
}

// isAck reports whether pkt is a bare TCP ACK (no SYN).
func isAck(pkt record.Packet) bool {
	return pkt.Proto == record.ProtoTCP && pkt.TCP.Flags.ACK && !pkt.TCP.Flags.SYN
}

// isSynAck reports whether pkt is a TCP SYN-ACK.
func isSynAck(pkt record.Packet) bool {
	return pkt.Proto == record.ProtoTCP && pkt.TCP.Flags.SYN && pkt.TCP.Flags.ACK
}

// isRst reports whether pkt carries the TCP RST flag.
func isRst(pkt record.Packet) bool {
	return pkt.Proto == record.ProtoTCP && pkt.TCP.Flags.RST
}

// isIrregularSyn flags SYNs that carry a signature common to scanning
// tools rather than a full TCP/IP stack: a fixed zmap IP ID, an
// implausibly high TTL, or no TCP options at all.
func isIrregularSyn(pkt record.Packet) bool {
	if !isSyn(pkt) {
		return false
	}
	return pkt.IPID == 54321 || pkt.TTL > 200 || len(pkt.TCP.Options) == 0
}

// isMatchingAck checks whether ack is the handshake-completing ACK for
// syn's resulting probe: same source port (echoed, not part of the bucket
// key) and matching sequence numbers.
func isMatchingAck(syn record.Packet, req *record.ProbeRequest, ack record.Packet) bool {
	if req == nil || syn.Proto != record.ProtoTCP || ack.Proto != record.ProtoTCP {
		return false
	}
	return syn.TCP.SPort == req.DPort && req.DPort == ack.TCP.SPort && req.ANum == ack.TCP.SNum
}

// ip4ToUint32 mirrors Python's int(ipaddress.IPv4Address): the address
// interpreted as a big-endian 32-bit integer. IPv6 addresses, which never
// occur in this honeypot's traffic, return 0.
func ip4ToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// scannerTool attempts to fingerprint the scanning toolchain behind an
// irregular SYN, following the IP ID and sequence-number constructions
// documented by Ghiette et al., "Remote Identification of Port Scan
// Toolchains".
func scannerTool(pkt record.Packet) string {
	if !isSyn(pkt) {
		return "unknown"
	}
	if pkt.IPID == 54321 {
		return "zmap" // zmap/src/probe_modules/packet.c sets a fixed IP ID.
	}
	masscanIPID := uint16(pkt.TCP.DPort) ^ uint16(pkt.TCP.SNum) ^ uint16(ip4ToUint32(pkt.DAddr))
	if pkt.IPID == masscanIPID {
		return "masscan"
	}
	if (pkt.TCP.DPort == 23 || pkt.TCP.DPort == 2323) && pkt.TCP.SNum == ip4ToUint32(pkt.DAddr) {
		return "mirai" // mirai/bot/scanner.c seeds seq with the destination address.
	}
	return "unknown"
}
