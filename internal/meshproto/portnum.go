// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package meshproto

// PortNum identifies the application that produced a Data payload, mirroring
// meshtastic/portnums.proto. Only the ports the companion process classifies
// traffic by are named; anything else decodes fine but is logged as Other.
type PortNum int32

const (
	PortUnknown       PortNum = 0
	PortTextMessage   PortNum = 1
	PortPosition      PortNum = 3
	PortNodeInfo      PortNum = 4
	PortRouting       PortNum = 5
	PortAdmin         PortNum = 6
	PortWaypoint      PortNum = 8
	PortTelemetry     PortNum = 67
	PortTraceroute    PortNum = 70
	PortNeighborInfo  PortNum = 71
)

// String returns the lowercase classification label used for Packet.Kind.
func (p PortNum) String() string {
	switch p {
	case PortTextMessage:
		return "text"
	case PortPosition:
		return "position"
	case PortNodeInfo:
		return "nodeinfo"
	case PortRouting:
		return "routing"
	case PortTelemetry:
		return "telemetry"
	case PortTraceroute:
		return "traceroute"
	case PortNeighborInfo:
		return "neighborinfo"
	default:
		return "other"
	}
}
