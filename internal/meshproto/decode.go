// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package meshproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// field number assignments, matching the upstream Meshtastic schema closely
// enough that recorded device frames decode correctly.
const (
	fieldFromRadioPacket   = 2
	fieldFromRadioMyInfo   = 3
	fieldFromRadioNodeInfo = 4

	fieldToRadioPacket = 1

	fieldMyInfoNodeNum = 1

	fieldPacketFrom     = 1
	fieldPacketTo       = 2
	fieldPacketChannel  = 3
	fieldPacketDecoded  = 4
	fieldPacketID       = 6
	fieldPacketRxSNR    = 8
	fieldPacketHopLimit = 9
	fieldPacketRxRSSI   = 12
	fieldPacketViaMQTT  = 14
	fieldPacketHopStart = 15

	fieldDataPortNum      = 1
	fieldDataPayload      = 2
	fieldDataWantResponse = 3
	fieldDataDest         = 4
	fieldDataSource       = 5
	fieldDataRequestID    = 6
	fieldDataReplyID      = 7

	fieldNodeInfoNum      = 1
	fieldNodeInfoUser     = 2
	fieldNodeInfoPosition = 3

	fieldUserID        = 1
	fieldUserLongName  = 2
	fieldUserShortName = 3

	fieldPositionLatitudeI  = 1
	fieldPositionLongitudeI = 2

	fieldRouteDiscoveryRoute      = 1
	fieldRouteDiscoverySNRTowards = 2
	fieldRouteDiscoveryRouteBack  = 3
	fieldRouteDiscoverySNRBack    = 4

	fieldRoutingRouteRequest = 1
	fieldRoutingRouteReply   = 2
	fieldRoutingErrorReason  = 3
)

// DecodeFromRadio parses a FromRadio envelope. Unknown fields are skipped.
func DecodeFromRadio(b []byte) (*FromRadio, error) {
	fr := &FromRadio{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldFromRadioMyInfo:
			info, err := decodeMyInfo(body)
			if err != nil {
				return fmt.Errorf("my_info: %w", err)
			}
			fr.MyInfo = info
		case fieldFromRadioNodeInfo:
			info, err := decodeNodeInfo(body)
			if err != nil {
				return fmt.Errorf("node_info: %w", err)
			}
			fr.NodeInfo = info
		case fieldFromRadioPacket:
			pkt, err := DecodeMeshPacket(body)
			if err != nil {
				return fmt.Errorf("packet: %w", err)
			}
			fr.Packet = pkt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fr, nil
}

// DecodeToRadio parses a ToRadio envelope. Only the fields the companion
// process itself ever sends are decoded; it's otherwise only used in tests
// to verify what EncodeToRadio produced.
func DecodeToRadio(b []byte) (*ToRadio, error) {
	tr := &ToRadio{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num == fieldToRadioPacket {
			pkt, err := DecodeMeshPacket(body)
			if err != nil {
				return fmt.Errorf("packet: %w", err)
			}
			tr.Packet = pkt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// DecodeMeshPacket parses a MeshPacket, including its nested decoded Data
// payload if present.
func DecodeMeshPacket(b []byte) (*MeshPacket, error) {
	pkt := &MeshPacket{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldPacketFrom:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			pkt.From = v
		case fieldPacketTo:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}
			pkt.To = v
		case fieldPacketChannel:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("channel: %w", err)
			}
			pkt.Channel = v
		case fieldPacketID:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("id: %w", err)
			}
			pkt.ID = v
		case fieldPacketHopLimit:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("hop_limit: %w", err)
			}
			pkt.HopLimit = v
		case fieldPacketHopStart:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("hop_start: %w", err)
			}
			pkt.HopStart = v
		case fieldPacketRxRSSI:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("rx_rssi: %w", err)
			}
			pkt.RxRSSI = int32(v)
		case fieldPacketRxSNR:
			if typ != protowire.Fixed32Type {
				return fmt.Errorf("rx_snr: unexpected wire type %d", typ)
			}
			bits, n := protowire.ConsumeFixed32(body)
			if n < 0 {
				return fmt.Errorf("rx_snr: %w", protowire.ParseError(n))
			}
			pkt.RxSNR = math.Float32frombits(bits)
		case fieldPacketViaMQTT:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("via_mqtt: %w", err)
			}
			pkt.ViaMQTT = v != 0
		case fieldPacketDecoded:
			data, err := decodeData(body)
			if err != nil {
				return fmt.Errorf("decoded: %w", err)
			}
			pkt.Decoded = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pkt.To == Broadcast {
		pkt.To = 0
	}
	return pkt, nil
}

func decodeData(b []byte) (*Data, error) {
	d := &Data{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldDataPortNum:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("portnum: %w", err)
			}
			d.PortNum = PortNum(v)
		case fieldDataPayload:
			if typ != protowire.BytesType {
				return fmt.Errorf("payload: unexpected wire type %d", typ)
			}
			d.Payload = append([]byte(nil), body...)
		case fieldDataWantResponse:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("want_response: %w", err)
			}
			d.WantResponse = v != 0
		case fieldDataDest:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("dest: %w", err)
			}
			d.Dest = v
		case fieldDataSource:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			d.Source = v
		case fieldDataRequestID:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("request_id: %w", err)
			}
			d.RequestID = v
		case fieldDataReplyID:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("reply_id: %w", err)
			}
			d.ReplyID = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func decodeMyInfo(b []byte) (*MyInfo, error) {
	info := &MyInfo{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num == fieldMyInfoNodeNum {
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("my_node_num: %w", err)
			}
			info.MyNodeNum = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func decodeNodeInfo(b []byte) (*NodeInfo, error) {
	info := &NodeInfo{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldNodeInfoNum:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("num: %w", err)
			}
			info.Num = v
		case fieldNodeInfoUser:
			user, err := decodeUser(body)
			if err != nil {
				return fmt.Errorf("user: %w", err)
			}
			info.User = user
		case fieldNodeInfoPosition:
			pos, err := decodePosition(body)
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			info.Position = pos
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// DecodeUser parses a User payload on its own — used when a NodeInfo
// app-port packet arrives as a live MeshPacket rather than inside the
// initial FromRadio.NodeInfo config dump.
func DecodeUser(b []byte) (*User, error) {
	return decodeUser(b)
}

// DecodePosition parses a Position payload on its own — used when a
// Position app-port packet arrives as a live MeshPacket.
func DecodePosition(b []byte) (*Position, error) {
	return decodePosition(b)
}

func decodeUser(b []byte) (*User, error) {
	user := &User{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldUserID:
			user.ID = string(body)
		case fieldUserLongName:
			user.LongName = string(body)
		case fieldUserShortName:
			user.ShortName = string(body)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func decodePosition(b []byte) (*Position, error) {
	pos := &Position{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldPositionLatitudeI:
			if typ != protowire.Fixed32Type {
				return fmt.Errorf("latitude_i: unexpected wire type %d", typ)
			}
			bits, n := protowire.ConsumeFixed32(body)
			if n < 0 {
				return fmt.Errorf("latitude_i: %w", protowire.ParseError(n))
			}
			pos.LatitudeI = int32(bits)
			pos.HasCoords = true
		case fieldPositionLongitudeI:
			if typ != protowire.Fixed32Type {
				return fmt.Errorf("longitude_i: unexpected wire type %d", typ)
			}
			bits, n := protowire.ConsumeFixed32(body)
			if n < 0 {
				return fmt.Errorf("longitude_i: %w", protowire.ParseError(n))
			}
			pos.LongitudeI = int32(bits)
			pos.HasCoords = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// DecodeRouteDiscovery parses a bare RouteDiscovery, the payload shape used
// by the traceroute app port.
func DecodeRouteDiscovery(b []byte) (*RouteDiscovery, error) {
	rd := &RouteDiscovery{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldRouteDiscoveryRoute:
			nodes, err := consumePackedUint32(typ, body)
			if err != nil {
				return fmt.Errorf("route: %w", err)
			}
			rd.Route = nodes
		case fieldRouteDiscoverySNRTowards:
			snrs, err := consumePackedSint32(typ, body)
			if err != nil {
				return fmt.Errorf("snr_towards: %w", err)
			}
			rd.SNRTowards = snrs
		case fieldRouteDiscoveryRouteBack:
			nodes, err := consumePackedUint32(typ, body)
			if err != nil {
				return fmt.Errorf("route_back: %w", err)
			}
			rd.RouteBack = nodes
		case fieldRouteDiscoverySNRBack:
			snrs, err := consumePackedSint32(typ, body)
			if err != nil {
				return fmt.Errorf("snr_back: %w", err)
			}
			rd.SNRBack = snrs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// DecodeRouting parses a Routing wrapper, the payload shape used by the
// routing app port. Its route_request/route_reply fields hold a nested
// RouteDiscovery — decoding this wrapper's bytes as a bare RouteDiscovery
// instead (or vice versa) silently yields an empty route, since field 1 of
// Routing is a length-delimited RouteDiscovery, not a repeated uint32.
func DecodeRouting(b []byte) (*Routing, error) {
	r := &Routing{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case fieldRoutingRouteRequest:
			rd, err := DecodeRouteDiscovery(body)
			if err != nil {
				return fmt.Errorf("route_request: %w", err)
			}
			r.RouteRequest = rd
		case fieldRoutingRouteReply:
			rd, err := DecodeRouteDiscovery(body)
			if err != nil {
				return fmt.Errorf("route_reply: %w", err)
			}
			r.RouteReply = rd
		case fieldRoutingErrorReason:
			v, err := consumeUint32(typ, body)
			if err != nil {
				return fmt.Errorf("error_reason: %w", err)
			}
			r.ErrorReason = int32(v)
			r.HasError = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// walkFields iterates every top-level field in a protobuf message,
// dispatching the field's raw body to visit. For length-delimited fields,
// body is the contents between the length prefix and its end. For varint
// and fixed-width fields, body is the remaining slice starting at the
// field's encoded value (visit is responsible for consuming exactly one
// value from it via the wire-typed consume helpers).
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, body []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("meshproto: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("meshproto: consuming bytes field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, typ, v); err != nil {
				return err
			}
			b = b[n:]
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("meshproto: consuming varint field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, typ, b); err != nil {
				return err
			}
			b = b[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return fmt.Errorf("meshproto: consuming fixed32 field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, typ, b); err != nil {
				return err
			}
			b = b[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fmt.Errorf("meshproto: consuming fixed64 field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, typ, b); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("meshproto: skipping field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func consumeUint32(typ protowire.Type, body []byte) (uint32, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("unexpected wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(body)
	if n < 0 {
		return 0, fmt.Errorf("%w", protowire.ParseError(n))
	}
	return uint32(v), nil
}

// consumePackedUint32 decodes a packed-repeated uint32 field (route,
// route_back): a length-delimited run of consecutive varints.
func consumePackedUint32(typ protowire.Type, body []byte) ([]uint32, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("unexpected wire type %d for packed field", typ)
	}
	var out []uint32
	for len(body) > 0 {
		v, n := protowire.ConsumeVarint(body)
		if n < 0 {
			return nil, fmt.Errorf("%w", protowire.ParseError(n))
		}
		out = append(out, uint32(v))
		body = body[n:]
	}
	return out, nil
}

// consumePackedSint32 decodes a packed-repeated zigzag-encoded int32 field
// (snr_towards, snr_back), which can be negative.
func consumePackedSint32(typ protowire.Type, body []byte) ([]int32, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("unexpected wire type %d for packed field", typ)
	}
	var out []int32
	for len(body) > 0 {
		v, n := protowire.ConsumeVarint(body)
		if n < 0 {
			return nil, fmt.Errorf("%w", protowire.ParseError(n))
		}
		out = append(out, int32(protowire.DecodeZigZag(v)))
		body = body[n:]
	}
	return out, nil
}
