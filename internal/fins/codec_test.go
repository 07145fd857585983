package fins

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/tturner/fieldsim/internal/memory"
)

func buildFrame(cmd uint16, area byte, addr uint16, bit byte, count uint16, payload []byte) []byte {
	frame := []byte{0x80, 0x00, 0x02, 0x00, 0x01, 0x00, 0x00, 0x0A, 0x00, 0x2A}
	frame = binary.BigEndian.AppendUint16(frame, cmd)
	frame = append(frame, area)
	frame = binary.BigEndian.AppendUint16(frame, addr)
	frame = append(frame, bit)
	frame = binary.BigEndian.AppendUint16(frame, count)
	return append(frame, payload...)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := memory.NewStore(binary.BigEndian, []memory.AreaDef{
		{Name: AreaCIO, Words: 16},
		{Name: AreaWork, Words: 16},
		{Name: AreaHolding, Words: 16},
		{Name: AreaData, Words: 100},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewHandler(store)
}

func TestDecodeRequest(t *testing.T) {
	frame := buildFrame(CommandMemoryAreaRead, 0x82, 0x0010, 0x00, 0x0003, nil)
	req, err := DecodeRequest(frame)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Command != CommandMemoryAreaRead {
		t.Errorf("Command = 0x%04X, want 0x0101", req.Command)
	}
	if req.AreaCode != 0x82 {
		t.Errorf("AreaCode = 0x%02X, want 0x82", req.AreaCode)
	}
	if req.Address != 0x0010 || req.Count != 3 {
		t.Errorf("Address/Count = %d/%d, want 16/3", req.Address, req.Count)
	}
	if req.Header.ServiceID != 0x2A {
		t.Errorf("ServiceID = 0x%02X, want 0x2A", req.Header.ServiceID)
	}
	if req.Header.SrcNode != 0x0A {
		t.Errorf("SrcNode = 0x%02X, want 0x0A", req.Header.SrcNode)
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{0x80, 0x00}); err == nil {
		t.Error("DecodeHeader: expected error for short frame")
	}
	// Header plus command but missing parameters.
	if _, err := DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x82, 0, 0, 1, nil)[:14]); err == nil {
		t.Error("DecodeRequest: expected error for truncated parameters")
	}
}

func TestEncodeResponseSwapsRouting(t *testing.T) {
	req, err := DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x82, 0, 0, 1, nil))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	resp := EncodeResponse(req.Header, req.Command, EndSuccess, []byte{0x12, 0x34})

	if resp[0] != 0xC0 {
		t.Errorf("response ICF = 0x%02X, want 0xC0", resp[0])
	}
	// Destination on the way back is the request's source.
	if resp[3] != 0x00 || resp[4] != 0x0A || resp[5] != 0x00 {
		t.Errorf("response destination = % 02X, want 00 0A 00", resp[3:6])
	}
	if resp[6] != 0x00 || resp[7] != 0x01 || resp[8] != 0x00 {
		t.Errorf("response source = % 02X, want 00 01 00", resp[6:9])
	}
	if resp[9] != 0x2A {
		t.Errorf("response SID = 0x%02X, want 0x2A", resp[9])
	}
	if binary.BigEndian.Uint16(resp[10:12]) != CommandMemoryAreaRead {
		t.Errorf("command echo = 0x%04X", binary.BigEndian.Uint16(resp[10:12]))
	}
	if binary.BigEndian.Uint16(resp[12:14]) != EndSuccess {
		t.Errorf("end code = 0x%04X, want 0x0000", binary.BigEndian.Uint16(resp[12:14]))
	}
	if !bytes.Equal(resp[14:], []byte{0x12, 0x34}) {
		t.Errorf("payload = % 02X, want 12 34", resp[14:])
	}
}

func TestHandleWordWriteRead(t *testing.T) {
	h := newTestHandler(t)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	req, _ := DecodeRequest(buildFrame(CommandMemoryAreaWrite, 0x82, 5, 0, 2, payload))
	end, out := h.Handle(req)
	if end != EndSuccess {
		t.Fatalf("write end = 0x%04X, want 0x0000", end)
	}
	if len(out) != 0 {
		t.Errorf("write payload len = %d, want 0", len(out))
	}

	req, _ = DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x82, 5, 0, 2, nil))
	end, out = h.Handle(req)
	if end != EndSuccess {
		t.Fatalf("read end = 0x%04X, want 0x0000", end)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("read payload = % 02X, want % 02X", out, payload)
	}
}

func TestHandleBitWriteRead(t *testing.T) {
	h := newTestHandler(t)

	bits := []byte{1, 0, 1, 1, 0}
	req, _ := DecodeRequest(buildFrame(CommandMemoryAreaWrite, 0x30, 2, 12, 5, bits))
	end, _ := h.Handle(req)
	if end != EndSuccess {
		t.Fatalf("bit write end = 0x%04X, want 0x0000", end)
	}

	req, _ = DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x30, 2, 12, 5, nil))
	end, out := h.Handle(req)
	if end != EndSuccess {
		t.Fatalf("bit read end = 0x%04X, want 0x0000", end)
	}
	if !bytes.Equal(out, bits) {
		t.Errorf("bits = %v, want %v", out, bits)
	}

	// Word and bit codes share the same backing buffer: CIO word 2 must
	// show the written pattern rolled across the word boundary.
	req, _ = DecodeRequest(buildFrame(CommandMemoryAreaRead, 0xB0, 2, 0, 2, nil))
	end, out = h.Handle(req)
	if end != EndSuccess {
		t.Fatalf("word read end = 0x%04X", end)
	}
	w2 := binary.BigEndian.Uint16(out[0:2])
	w3 := binary.BigEndian.Uint16(out[2:4])
	if w2 != 0xD000 { // bits 12, 14, 15 of word 2
		t.Errorf("CIO word 2 = 0x%04X, want 0xD000", w2)
	}
	if w3 != 0x0000 { // fifth point is 0, so word 3 bit 0 stays clear
		t.Errorf("CIO word 3 = 0x%04X, want 0x0000", w3)
	}
}

func TestHandleUnknownArea(t *testing.T) {
	h := newTestHandler(t)
	req, _ := DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x99, 0, 0, 1, nil))
	end, _ := h.Handle(req)
	if end != EndAreaMissing {
		t.Errorf("end = 0x%04X, want 0x1101", end)
	}
}

func TestHandleReadBoundary(t *testing.T) {
	h := newTestHandler(t)

	// Seed the tail of DM, then read past the end.
	seed, _ := DecodeRequest(buildFrame(CommandMemoryAreaWrite, 0x82, 98, 0, 2, []byte{0xAA, 0xBB, 0xCC, 0xDD}))
	if end, _ := h.Handle(seed); end != EndSuccess {
		t.Fatalf("seed write end = 0x%04X", end)
	}

	req, _ := DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x82, 98, 0, 3, nil))
	end, out := h.Handle(req)
	if end != EndAddressRange {
		t.Errorf("end = 0x%04X, want 0x1103", end)
	}
	if len(out) != 0 {
		t.Errorf("payload len = %d, want 0", len(out))
	}

	// Store unmodified by the failed read.
	check, _ := DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x82, 98, 0, 2, nil))
	end, out = h.Handle(check)
	if end != EndSuccess {
		t.Fatalf("check read end = 0x%04X", end)
	}
	if !bytes.Equal(out, []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Errorf("tail = % 02X, want AA BB CC DD", out)
	}
}

func TestHandleWriteBoundaryLeavesStoreUnmodified(t *testing.T) {
	h := newTestHandler(t)

	req, _ := DecodeRequest(buildFrame(CommandMemoryAreaWrite, 0x82, 99, 0, 2, []byte{1, 2, 3, 4}))
	end, _ := h.Handle(req)
	if end != EndAddressRange {
		t.Fatalf("end = 0x%04X, want 0x1103", end)
	}

	check, _ := DecodeRequest(buildFrame(CommandMemoryAreaRead, 0x82, 99, 0, 1, nil))
	end, out := h.Handle(check)
	if end != EndSuccess {
		t.Fatalf("check read end = 0x%04X", end)
	}
	if !bytes.Equal(out, []byte{0x00, 0x00}) {
		t.Errorf("word 99 = % 02X, want 00 00", out)
	}
}

func TestHandlePayloadLengthMismatch(t *testing.T) {
	h := newTestHandler(t)

	req, _ := DecodeRequest(buildFrame(CommandMemoryAreaWrite, 0x82, 0, 0, 3, []byte{1, 2}))
	end, _ := h.Handle(req)
	if end != EndCommandFormat {
		t.Errorf("end = 0x%04X, want 0x1004", end)
	}
}

func TestHandleUnsupportedCommand(t *testing.T) {
	h := newTestHandler(t)
	req, _ := DecodeRequest(buildFrame(0x0401, 0x82, 0, 0, 1, nil))
	end, _ := h.Handle(req)
	if end != EndServiceNotSupported {
		t.Errorf("end = 0x%04X, want 0x0401", end)
	}
}

func TestResolveArea(t *testing.T) {
	name, bit, ok := ResolveArea(0x82)
	if !ok || name != AreaData || bit {
		t.Errorf("0x82 = (%s, %v, %v), want (DM, false, true)", name, bit, ok)
	}
	name, bit, ok = ResolveArea(0x30)
	if !ok || name != AreaCIO || !bit {
		t.Errorf("0x30 = (%s, %v, %v), want (CIO, true, true)", name, bit, ok)
	}
	if _, _, ok := ResolveArea(0xFF); ok {
		t.Error("0xFF resolved, want unmapped")
	}
}
