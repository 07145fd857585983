package fins

// OMRON FINS codec: decode and encode FINS command frames as carried in
// UDP datagrams. FINS is stateless request/response; nothing survives
// between datagrams except the client-chosen service ID, which is echoed
// back verbatim.
//
// Frame layout (all multi-byte fields big-endian):
//
//	0..9   header (ICF, reserved, gateway count, DNA/DA1/DA2, SNA/SA1/SA2, SID)
//	10..11 command code
//	12     memory area code
//	13..14 start address (words)
//	15     bit offset
//	16..17 element count
//	18..   write payload (words, or one byte per point for bit areas)

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tturner/fieldsim/internal/memory"
)

// FINS command codes.
const (
	CommandMemoryAreaRead  uint16 = 0x0101
	CommandMemoryAreaWrite uint16 = 0x0102
)

// FINS end codes.
const (
	EndSuccess             uint16 = 0x0000
	EndServiceNotSupported uint16 = 0x0401 // undefined command
	EndCommandFormat       uint16 = 0x1004 // parameter/payload length mismatch
	EndAreaMissing         uint16 = 0x1101 // area classification not resolvable
	EndAddressRange        uint16 = 0x1103 // start address + count out of range
)

// HeaderSize is the fixed FINS header length.
const HeaderSize = 10

// MinFrameSize is header + command; anything shorter cannot be answered
// and is dropped by the transport.
const MinFrameSize = HeaderSize + 2

// minCommandSize is the smallest complete memory-area command: header,
// command, area code, address, bit offset, count.
const minCommandSize = MinFrameSize + 6

// responseICF is ORed into the inbound ICF to mark the frame a response.
const responseICF = 0x40

// Header carries the FINS routing fields. They are opaque to the
// simulator apart from the source/destination swap on the way back out.
type Header struct {
	ICF          byte
	Reserved     byte
	GatewayCount byte
	DstNetwork   byte
	DstNode      byte
	DstUnit      byte
	SrcNetwork   byte
	SrcNode      byte
	SrcUnit      byte
	ServiceID    byte
}

// Request is one decoded memory-area command.
type Request struct {
	Header    Header
	Command   uint16
	AreaCode  byte
	Address   uint16
	BitOffset byte
	Count     uint16
	Payload   []byte
}

// Memory area names backing the FINS area codes.
const (
	AreaCIO     = "CIO"
	AreaWork    = "WR"
	AreaHolding = "HR"
	AreaData    = "DM"
)

// areaInfo classifies one wire area code.
type areaInfo struct {
	name string
	bit  bool
}

// areaCodes is the closed area-code table. Word and bit codes for the
// same device resolve to the same backing buffer.
var areaCodes = map[byte]areaInfo{
	0xB0: {AreaCIO, false},
	0x30: {AreaCIO, true},
	0xB1: {AreaWork, false},
	0x31: {AreaWork, true},
	0xB2: {AreaHolding, false},
	0x32: {AreaHolding, true},
	0x82: {AreaData, false},
	0x02: {AreaData, true},
}

// ResolveArea maps a wire area code to its backing area name and
// addressing granularity. ok is false for unmapped codes.
func ResolveArea(code byte) (name string, bit bool, ok bool) {
	info, ok := areaCodes[code]
	return info.name, info.bit, ok
}

// DecodeHeader decodes the fixed header and command code. The caller
// needs these even for commands it will reject.
func DecodeHeader(data []byte) (Header, uint16, error) {
	if len(data) < MinFrameSize {
		return Header{}, 0, fmt.Errorf("FINS frame too short: %d bytes (minimum %d)", len(data), MinFrameSize)
	}
	h := Header{
		ICF:          data[0],
		Reserved:     data[1],
		GatewayCount: data[2],
		DstNetwork:   data[3],
		DstNode:      data[4],
		DstUnit:      data[5],
		SrcNetwork:   data[6],
		SrcNode:      data[7],
		SrcUnit:      data[8],
		ServiceID:    data[9],
	}
	return h, binary.BigEndian.Uint16(data[10:12]), nil
}

// DecodeRequest decodes a full memory-area command frame.
func DecodeRequest(data []byte) (Request, error) {
	h, cmd, err := DecodeHeader(data)
	if err != nil {
		return Request{}, err
	}
	if len(data) < minCommandSize {
		return Request{}, fmt.Errorf("FINS command too short: %d bytes (minimum %d)", len(data), minCommandSize)
	}
	return Request{
		Header:    h,
		Command:   cmd,
		AreaCode:  data[12],
		Address:   binary.BigEndian.Uint16(data[13:15]),
		BitOffset: data[15],
		Count:     binary.BigEndian.Uint16(data[16:18]),
		Payload:   data[18:],
	}, nil
}

// EncodeResponse builds a response frame for the given inbound header:
// routing fields swapped, response bit set in the ICF, service ID
// echoed, then command echo, end code and payload.
func EncodeResponse(h Header, command, end uint16, payload []byte) []byte {
	out := make([]byte, 0, HeaderSize+4+len(payload))
	out = append(out,
		h.ICF|responseICF,
		0x00,
		h.GatewayCount,
		h.SrcNetwork, h.SrcNode, h.SrcUnit,
		h.DstNetwork, h.DstNode, h.DstUnit,
		h.ServiceID,
	)
	out = binary.BigEndian.AppendUint16(out, command)
	out = binary.BigEndian.AppendUint16(out, end)
	return append(out, payload...)
}

// Handler executes decoded memory-area commands against a Store.
type Handler struct {
	store *memory.Store
}

// NewHandler creates a handler bound to a store.
func NewHandler(store *memory.Store) *Handler {
	return &Handler{store: store}
}

// Handle runs one request and returns the end code and read payload.
// The store is left untouched when a nonzero end code is returned.
func (h *Handler) Handle(req Request) (uint16, []byte) {
	name, bit, ok := ResolveArea(req.AreaCode)
	if !ok {
		return EndAreaMissing, nil
	}

	switch req.Command {
	case CommandMemoryAreaRead:
		if bit {
			bits, err := h.store.ReadBits(name, int(req.Address), int(req.BitOffset), int(req.Count))
			if err != nil {
				return endCodeFor(err), nil
			}
			return EndSuccess, bits
		}
		data, err := h.store.ReadWords(name, int(req.Address), int(req.Count))
		if err != nil {
			return endCodeFor(err), nil
		}
		return EndSuccess, data

	case CommandMemoryAreaWrite:
		if bit {
			if len(req.Payload) != int(req.Count) {
				return EndCommandFormat, nil
			}
			if err := h.store.WriteBits(name, int(req.Address), int(req.BitOffset), req.Payload); err != nil {
				return endCodeFor(err), nil
			}
			return EndSuccess, nil
		}
		if len(req.Payload) != int(req.Count)*2 {
			return EndCommandFormat, nil
		}
		if err := h.store.WriteWords(name, int(req.Address), req.Payload); err != nil {
			return endCodeFor(err), nil
		}
		return EndSuccess, nil

	default:
		return EndServiceNotSupported, nil
	}
}

func endCodeFor(err error) uint16 {
	if errors.Is(err, memory.ErrUnknownArea) {
		return EndAreaMissing
	}
	return EndAddressRange
}
