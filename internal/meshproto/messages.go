// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package meshproto decodes and encodes the subset of the Meshtastic
// protobuf wire format the companion process needs: the FromRadio/ToRadio
// envelopes, MeshPacket framing, and the Data, User, Position, and
// RouteDiscovery payloads carried inside them.
//
// Full code generation from the upstream .proto files isn't available in
// this environment, so messages are hand-decoded against
// google.golang.org/protobuf/encoding/protowire, which supplies the varint
// and tag primitives without requiring generated message types. Field
// numbers match the upstream schema so recorded device traffic decodes
// correctly; fields the companion process never reads are skipped, not
// rejected, so unknown/future fields don't break decoding.
package meshproto

// MeshPacket is one frame exchanged with the attached node, either received
// in a FromRadio envelope or sent in a ToRadio envelope.
type MeshPacket struct {
	From      uint32
	To        uint32 // 0 means broadcast; the wire encodes broadcast as ^uint32(0), normalized on decode.
	Channel   uint32
	ID        uint32
	HopLimit  uint32
	HopStart  uint32
	RxRSSI    int32
	RxSNR     float32
	ViaMQTT   bool
	Decoded   *Data // nil if the packet arrived still encrypted (not expected from a device we hold the channel PSK for).
}

// Broadcast is the node ID meaning "every node on the channel."
const Broadcast uint32 = 0xFFFFFFFF

// Data is the application payload carried inside a MeshPacket.
type Data struct {
	PortNum      PortNum
	Payload      []byte
	WantResponse bool
	Dest         uint32
	Source       uint32
	RequestID    uint32 // echoes the MeshPacket.ID of the request this is a reply to; 0 if not a reply.
	ReplyID      uint32
}

// MyInfo is the device identity frame sent once per connection.
type MyInfo struct {
	MyNodeNum uint32
}

// User is a node's self-reported identity, carried inside NodeInfo.
type User struct {
	ID        string
	LongName  string
	ShortName string
}

// Position is a node's self-reported location, in 1e-7 degree fixed point.
type Position struct {
	LatitudeI  int32
	LongitudeI int32
	HasCoords  bool
}

// NodeInfo announces (or re-announces) a node's identity and last-known
// position, carried in the nodeinfo app port.
type NodeInfo struct {
	Num      uint32
	User     *User
	Position *Position
}

// RouteDiscovery is the route vector carried by a bare traceroute payload,
// or nested inside a Routing message's request/reply oneof. Route is the
// forward path (request direction); RouteBack is populated once a reply
// has traced its own path home.
type RouteDiscovery struct {
	Route      []uint32
	SNRTowards []int32 // SNR*4, one entry per hop in Route.
	RouteBack  []uint32
	SNRBack    []int32
}

// Routing wraps a RouteDiscovery for the routing app port. Decoding the
// inner RouteDiscovery as if it were a Routing wrapper silently yields an
// empty vector, because the oneof tag numbers don't line up with
// RouteDiscovery's own field numbers — traceroute and routing payloads look
// similar but are not interchangeable.
type Routing struct {
	RouteRequest *RouteDiscovery
	RouteReply   *RouteDiscovery
	ErrorReason  int32
	HasError     bool
}

// FromRadio is one frame received from the attached node.
type FromRadio struct {
	MyInfo   *MyInfo
	NodeInfo *NodeInfo
	Packet   *MeshPacket
}

// ToRadio is one frame sent to the attached node.
type ToRadio struct {
	Packet *MeshPacket
}
