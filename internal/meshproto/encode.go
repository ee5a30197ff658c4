// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package meshproto

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeToRadio serializes a ToRadio envelope for transmission to the
// attached node.
func EncodeToRadio(tr *ToRadio) []byte {
	var b []byte
	if tr.Packet != nil {
		b = appendBytesField(b, fieldToRadioPacket, EncodeMeshPacket(tr.Packet))
	}
	return b
}

// EncodeFromRadio serializes a FromRadio envelope. Production code never
// sends one — this exists so tests can build recorded-frame fixtures for
// the radio adapter's decode path.
func EncodeFromRadio(fr *FromRadio) []byte {
	var b []byte
	if fr.MyInfo != nil {
		b = appendBytesField(b, fieldFromRadioMyInfo, encodeMyInfo(fr.MyInfo))
	}
	if fr.NodeInfo != nil {
		b = appendBytesField(b, fieldFromRadioNodeInfo, encodeNodeInfo(fr.NodeInfo))
	}
	if fr.Packet != nil {
		b = appendBytesField(b, fieldFromRadioPacket, EncodeMeshPacket(fr.Packet))
	}
	return b
}

// EncodeMeshPacket serializes a MeshPacket, including its decoded Data
// payload if present.
func EncodeMeshPacket(pkt *MeshPacket) []byte {
	var b []byte
	if pkt.From != 0 {
		b = appendVarintField(b, fieldPacketFrom, uint64(pkt.From))
	}
	to := pkt.To
	if to == 0 {
		// 0 is ambiguous with "no field present"; the wire broadcast
		// sentinel is all-ones, matching the decode-side normalization.
		to = Broadcast
	}
	b = appendVarintField(b, fieldPacketTo, uint64(to))
	if pkt.Channel != 0 {
		b = appendVarintField(b, fieldPacketChannel, uint64(pkt.Channel))
	}
	if pkt.ID != 0 {
		b = appendVarintField(b, fieldPacketID, uint64(pkt.ID))
	}
	if pkt.HopLimit != 0 {
		b = appendVarintField(b, fieldPacketHopLimit, uint64(pkt.HopLimit))
	}
	if pkt.HopStart != 0 {
		b = appendVarintField(b, fieldPacketHopStart, uint64(pkt.HopStart))
	}
	if pkt.RxRSSI != 0 {
		b = appendVarintField(b, fieldPacketRxRSSI, uint64(uint32(pkt.RxRSSI)))
	}
	if pkt.RxSNR != 0 {
		b = protowire.AppendTag(b, fieldPacketRxSNR, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(pkt.RxSNR))
	}
	if pkt.ViaMQTT {
		b = appendVarintField(b, fieldPacketViaMQTT, 1)
	}
	if pkt.Decoded != nil {
		b = appendBytesField(b, fieldPacketDecoded, encodeData(pkt.Decoded))
	}
	return b
}

func encodeData(d *Data) []byte {
	var b []byte
	if d.PortNum != 0 {
		b = appendVarintField(b, fieldDataPortNum, uint64(d.PortNum))
	}
	if len(d.Payload) > 0 {
		b = appendBytesField(b, fieldDataPayload, d.Payload)
	}
	if d.WantResponse {
		b = appendVarintField(b, fieldDataWantResponse, 1)
	}
	if d.Dest != 0 {
		b = appendVarintField(b, fieldDataDest, uint64(d.Dest))
	}
	if d.Source != 0 {
		b = appendVarintField(b, fieldDataSource, uint64(d.Source))
	}
	if d.RequestID != 0 {
		b = appendVarintField(b, fieldDataRequestID, uint64(d.RequestID))
	}
	if d.ReplyID != 0 {
		b = appendVarintField(b, fieldDataReplyID, uint64(d.ReplyID))
	}
	return b
}

func encodeMyInfo(info *MyInfo) []byte {
	var b []byte
	b = appendVarintField(b, fieldMyInfoNodeNum, uint64(info.MyNodeNum))
	return b
}

func encodeNodeInfo(info *NodeInfo) []byte {
	var b []byte
	b = appendVarintField(b, fieldNodeInfoNum, uint64(info.Num))
	if info.User != nil {
		b = appendBytesField(b, fieldNodeInfoUser, encodeUser(info.User))
	}
	if info.Position != nil {
		b = appendBytesField(b, fieldNodeInfoPosition, encodePosition(info.Position))
	}
	return b
}

func encodeUser(u *User) []byte {
	var b []byte
	if u.ID != "" {
		b = appendBytesField(b, fieldUserID, []byte(u.ID))
	}
	if u.LongName != "" {
		b = appendBytesField(b, fieldUserLongName, []byte(u.LongName))
	}
	if u.ShortName != "" {
		b = appendBytesField(b, fieldUserShortName, []byte(u.ShortName))
	}
	return b
}

func encodePosition(pos *Position) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPositionLatitudeI, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(pos.LatitudeI))
	b = protowire.AppendTag(b, fieldPositionLongitudeI, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(pos.LongitudeI))
	return b
}

// EncodeRouteDiscovery serializes a bare RouteDiscovery, the payload shape
// used by the traceroute app port.
func EncodeRouteDiscovery(rd *RouteDiscovery) []byte {
	var b []byte
	if len(rd.Route) > 0 {
		b = appendPackedUint32(b, fieldRouteDiscoveryRoute, rd.Route)
	}
	if len(rd.SNRTowards) > 0 {
		b = appendPackedSint32(b, fieldRouteDiscoverySNRTowards, rd.SNRTowards)
	}
	if len(rd.RouteBack) > 0 {
		b = appendPackedUint32(b, fieldRouteDiscoveryRouteBack, rd.RouteBack)
	}
	if len(rd.SNRBack) > 0 {
		b = appendPackedSint32(b, fieldRouteDiscoverySNRBack, rd.SNRBack)
	}
	return b
}

// EncodeRouting serializes a Routing wrapper, the payload shape used by the
// routing app port.
func EncodeRouting(r *Routing) []byte {
	var b []byte
	if r.RouteRequest != nil {
		b = appendBytesField(b, fieldRoutingRouteRequest, EncodeRouteDiscovery(r.RouteRequest))
	}
	if r.RouteReply != nil {
		b = appendBytesField(b, fieldRoutingRouteReply, EncodeRouteDiscovery(r.RouteReply))
	}
	if r.HasError {
		b = appendVarintField(b, fieldRoutingErrorReason, uint64(uint32(r.ErrorReason)))
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendPackedUint32(b []byte, num protowire.Number, vs []uint32) []byte {
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	return appendBytesField(b, num, packed)
}

func appendPackedSint32(b []byte, num protowire.Number, vs []int32) []byte {
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(int64(v)))
	}
	return appendBytesField(b, num, packed)
}
