package melsec

// Mitsubishi MC protocol, 3E binary frame codec.
//
// 3E frames are length-delimited application messages riding a
// persistent TCP stream, so framing and command decoding are separate
// steps: CutFrame reassembles exactly one frame from buffered stream
// bytes, DecodeRequest interprets it. All multi-byte fields are
// little-endian.
//
// Request layout:
//
//	0..1   subheader 0x50 0x00
//	2..6   network, PLC, IO (2), station
//	7..8   request data length (bytes 9..end)
//	9..10  CPU monitoring timer
//	11..12 command
//	13..14 subcommand
//	15..17 head device address (3 bytes, LE, low 3 bytes of a 4-byte field)
//	18     device code
//	19..20 device point count
//	21..   write payload

import (
	"encoding/binary"
	"fmt"

	"github.com/tturner/fieldsim/internal/config"
	"github.com/tturner/fieldsim/internal/memory"
)

// MC command codes.
const (
	CommandBatchRead  uint16 = 0x0401
	CommandBatchWrite uint16 = 0x1401
)

// MC end codes.
const (
	EndSuccess      uint16 = 0x0000
	EndAddressRange uint16 = 0xC050 // device range exceeded, write rejected whole
	EndDeviceCode   uint16 = 0xC051 // unknown device code
	EndCommand      uint16 = 0xC059 // unsupported command or malformed command data
)

const (
	// headerSize covers subheader through the request length field.
	headerSize = 9
	// minRequestSize is the smallest complete batch command frame.
	minRequestSize = 21
)

// Request is one decoded 3E batch command.
type Request struct {
	Network    byte
	PLC        byte
	IO         uint16
	Station    byte
	Timer      uint16
	Command    uint16
	Subcommand uint16
	Address    uint32 // head device number
	DeviceCode byte
	Points     uint16
	Payload    []byte
}

// CutFrame extracts one complete frame from stream bytes. It returns the
// frame and the remaining buffer, or a nil frame when more bytes are
// needed. A bad subheader is unrecoverable: the stream cannot be
// reframed and the connection must close.
func CutFrame(buf []byte) (frame, rest []byte, err error) {
	if len(buf) < headerSize {
		return nil, buf, nil
	}
	if buf[0] != 0x50 || buf[1] != 0x00 {
		return nil, buf, fmt.Errorf("bad 3E subheader: 0x%02X%02X", buf[0], buf[1])
	}
	total := headerSize + int(binary.LittleEndian.Uint16(buf[7:9]))
	if len(buf) < total {
		return nil, buf, nil
	}
	return buf[:total], buf[total:], nil
}

// DecodeRouting extracts the routing fields alone, for answering frames
// whose body cannot be decoded.
func DecodeRouting(frame []byte) Request {
	var r Request
	if len(frame) >= 7 {
		r.Network = frame[2]
		r.PLC = frame[3]
		r.IO = binary.LittleEndian.Uint16(frame[4:6])
		r.Station = frame[6]
	}
	return r
}

// DecodeRequest decodes a complete frame produced by CutFrame.
func DecodeRequest(frame []byte) (Request, error) {
	if len(frame) < minRequestSize {
		return Request{}, fmt.Errorf("3E request too short: %d bytes (minimum %d)", len(frame), minRequestSize)
	}
	r := DecodeRouting(frame)
	r.Timer = binary.LittleEndian.Uint16(frame[9:11])
	r.Command = binary.LittleEndian.Uint16(frame[11:13])
	r.Subcommand = binary.LittleEndian.Uint16(frame[13:15])
	r.Address = uint32(frame[15]) | uint32(frame[16])<<8 | uint32(frame[17])<<16
	r.DeviceCode = frame[18]
	r.Points = binary.LittleEndian.Uint16(frame[19:21])
	r.Payload = frame[21:]
	return r, nil
}

// EncodeResponse builds a 3E response: fixed subheader 0xD0 0x00, the
// request's routing echoed, a length field covering end code plus
// payload, the end code, then the payload.
func EncodeResponse(req Request, end uint16, payload []byte) []byte {
	out := make([]byte, 0, 11+len(payload))
	out = append(out, 0xD0, 0x00, req.Network, req.PLC)
	out = binary.LittleEndian.AppendUint16(out, req.IO)
	out = append(out, req.Station)
	out = binary.LittleEndian.AppendUint16(out, uint16(2+len(payload)))
	out = binary.LittleEndian.AppendUint16(out, end)
	return append(out, payload...)
}

// PackBits nibble-packs bit points for the wire: two points per byte,
// even point in the high nibble, odd point in the low nibble. Any
// nonzero input counts as set.
func PackBits(bits []byte) []byte {
	out := make([]byte, (len(bits)+1)/2)
	for i, v := range bits {
		if v == 0 {
			continue
		}
		if i%2 == 0 {
			out[i/2] |= 0x10
		} else {
			out[i/2] |= 0x01
		}
	}
	return out
}

// UnpackBits is the inverse of PackBits: extract points consecutive bit
// values from nibble-packed bytes, truncating the trailing low nibble
// when points is odd. Values are normalized to 0/1.
func UnpackBits(data []byte, points int) ([]byte, error) {
	need := (points + 1) / 2
	if len(data) < need {
		return nil, fmt.Errorf("bit payload too short: %d bytes for %d points (need %d)", len(data), points, need)
	}
	out := make([]byte, points)
	for i := 0; i < points; i++ {
		b := data[i/2]
		if i%2 == 0 {
			b >>= 4
		}
		if b&0x0F != 0 {
			out[i] = 1
		}
	}
	return out, nil
}

// DeviceClass is the fixed protocol classification of one device letter.
type DeviceClass struct {
	Code byte
	Bit  bool
}

// DeviceClasses is the closed classification table. Device codes and
// word/bit granularity are protocol knowledge; configuration only
// selects which devices exist and their ranges.
var DeviceClasses = map[string]DeviceClass{
	"D": {Code: 0xA8, Bit: false},
	"W": {Code: 0xB4, Bit: false},
	"M": {Code: 0x90, Bit: true},
	"X": {Code: 0x9C, Bit: true},
	"Y": {Code: 0x9D, Bit: true},
	"B": {Code: 0xA0, Bit: true},
}

// deviceInfo is one configured device resolved against DeviceClasses.
type deviceInfo struct {
	letter string
	bit    bool
	first  int // first valid device number
	points int
}

// DeviceMap resolves wire device codes to configured devices.
type DeviceMap struct {
	byCode map[byte]deviceInfo
}

// NewDeviceMap validates a configured device table against the closed
// classification table and derives the memory areas backing it. Bit
// devices occupy ceil(points/16) words.
func NewDeviceMap(devices map[string]config.DeviceRange) (*DeviceMap, []memory.AreaDef, error) {
	m := &DeviceMap{byCode: make(map[byte]deviceInfo, len(devices))}
	var defs []memory.AreaDef
	for letter, rng := range devices {
		class, ok := DeviceClasses[letter]
		if !ok {
			return nil, nil, fmt.Errorf("device %s: not a known MC device letter", letter)
		}
		info := deviceInfo{
			letter: letter,
			bit:    class.Bit,
			first:  rng.Range[0],
			points: rng.Points(),
		}
		m.byCode[class.Code] = info

		words := info.points
		if class.Bit {
			words = (info.points + 15) / 16
		}
		defs = append(defs, memory.AreaDef{Name: letter, Words: words})
	}
	return m, defs, nil
}

// Handler executes decoded batch commands against a Store.
type Handler struct {
	store   *memory.Store
	devices *DeviceMap
}

// NewHandler creates a handler bound to a store and device map.
func NewHandler(store *memory.Store, devices *DeviceMap) *Handler {
	return &Handler{store: store, devices: devices}
}

// Handle runs one request and returns the end code and read payload.
// Writes are all-or-nothing: a range error applies zero bytes.
func (h *Handler) Handle(req Request) (uint16, []byte) {
	if req.Command != CommandBatchRead && req.Command != CommandBatchWrite {
		return EndCommand, nil
	}

	dev, ok := h.devices.byCode[req.DeviceCode]
	if !ok {
		return EndDeviceCode, nil
	}

	addr := int(req.Address)
	points := int(req.Points)
	if addr < dev.first || addr+points > dev.first+dev.points {
		return EndAddressRange, nil
	}
	offset := addr - dev.first

	switch req.Command {
	case CommandBatchRead:
		if dev.bit {
			bits, err := h.store.ReadBits(dev.letter, offset/16, offset%16, points)
			if err != nil {
				return EndAddressRange, nil
			}
			return EndSuccess, PackBits(bits)
		}
		data, err := h.store.ReadWords(dev.letter, offset, points)
		if err != nil {
			return EndAddressRange, nil
		}
		return EndSuccess, data

	default: // CommandBatchWrite
		if dev.bit {
			bits, err := UnpackBits(req.Payload, points)
			if err != nil {
				return EndCommand, nil
			}
			if err := h.store.WriteBits(dev.letter, offset/16, offset%16, bits); err != nil {
				return EndAddressRange, nil
			}
			return EndSuccess, nil
		}
		if len(req.Payload) != points*2 {
			return EndCommand, nil
		}
		if err := h.store.WriteWords(dev.letter, offset, req.Payload); err != nil {
			return EndAddressRange, nil
		}
		return EndSuccess, nil
	}
}
