package memory

// Addressable PLC memory emulation.
//
// A Store owns every memory area of one simulated device. Areas are raw
// word buffers (2 bytes per point) created once at startup and never
// resized. Word access moves raw bytes so each protocol codec keeps its
// own endianness; bit access interprets words in the byte order fixed at
// construction, because read-modify-write needs a word value to flip a
// single bit in.
//
// Bit addressing uses the rolling convention: consecutive bit points
// advance through a word's 16 bits and roll into the next word, so point
// i lives at word (wordOffset + (bitOffset+i)/16), bit (bitOffset+i)%16.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/TheCount/go-multilocker/multilocker"
)

// ErrUnknownArea is returned when a request names an area the store does
// not hold. Areas are a closed set; they are never created on demand.
var ErrUnknownArea = errors.New("unknown memory area")

// RangeError reports an access that extends past an area's buffer.
type RangeError struct {
	Area   string
	Offset int // word offset of the first point
	Count  int // points requested
	Words  int // area size in words
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("area %s: access [%d, %d) exceeds %d words",
		e.Area, e.Offset, e.Offset+e.Count, e.Words)
}

// AreaDef declares one memory area at construction time.
type AreaDef struct {
	Name  string
	Words int
}

type area struct {
	mu  sync.RWMutex
	buf []byte // Words*2 raw bytes
}

// Store is the long-lived aggregate of all memory areas of one device.
// Every range access is serialized against concurrent accesses to the
// same area, so bit read-modify-write is never visible half-applied.
type Store struct {
	order binary.ByteOrder
	areas map[string]*area
	names []string // sorted, fixes lock acquisition order for Snapshot
}

// NewStore creates a store with the given word byte order and areas.
func NewStore(order binary.ByteOrder, defs []AreaDef) (*Store, error) {
	s := &Store{
		order: order,
		areas: make(map[string]*area, len(defs)),
	}
	for _, d := range defs {
		if d.Words <= 0 {
			return nil, fmt.Errorf("area %s: invalid size %d words", d.Name, d.Words)
		}
		if _, dup := s.areas[d.Name]; dup {
			return nil, fmt.Errorf("area %s declared twice", d.Name)
		}
		s.areas[d.Name] = &area{buf: make([]byte, d.Words*2)}
		s.names = append(s.names, d.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Order returns the word byte order fixed at construction.
func (s *Store) Order() binary.ByteOrder {
	return s.order
}

// Areas returns the declared area names in sorted order.
func (s *Store) Areas() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Size returns an area's size in words.
func (s *Store) Size(name string) (int, error) {
	a, ok := s.areas[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownArea, name)
	}
	return len(a.buf) / 2, nil
}

// ReadWords returns count*2 raw bytes starting at the given word offset.
func (s *Store) ReadWords(name string, offset, count int) ([]byte, error) {
	a, ok := s.areas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArea, name)
	}
	words := len(a.buf) / 2
	if offset < 0 || count < 0 || offset+count > words {
		return nil, &RangeError{Area: name, Offset: offset, Count: count, Words: words}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]byte, count*2)
	copy(out, a.buf[offset*2:])
	return out, nil
}

// WriteWords overwrites whole words starting at the given word offset.
// The payload length must be even; nothing is applied on a range error.
func (s *Store) WriteWords(name string, offset int, data []byte) error {
	a, ok := s.areas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArea, name)
	}
	if len(data)%2 != 0 {
		return fmt.Errorf("area %s: partial-word write of %d bytes", name, len(data))
	}
	words := len(a.buf) / 2
	count := len(data) / 2
	if offset < 0 || offset+count > words {
		return &RangeError{Area: name, Offset: offset, Count: count, Words: words}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	copy(a.buf[offset*2:], data)
	return nil
}

// ReadBits extracts count consecutive bit points starting at
// (wordOffset, bitOffset), one byte (0 or 1) per point.
func (s *Store) ReadBits(name string, wordOffset, bitOffset, count int) ([]byte, error) {
	a, ok := s.areas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArea, name)
	}
	if err := s.checkBitRange(name, a, wordOffset, bitOffset, count); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]byte, count)
	for i := 0; i < count; i++ {
		pos := wordOffset*16 + bitOffset + i
		w := s.order.Uint16(a.buf[(pos/16)*2:])
		out[i] = byte((w >> (pos % 16)) & 1)
	}
	return out, nil
}

// WriteBits sets or clears count consecutive bit points starting at
// (wordOffset, bitOffset). Each target word is read-modify-written under
// the area write lock; all other bits in the word are preserved. Any
// nonzero input byte sets the bit. Nothing is applied on a range error.
func (s *Store) WriteBits(name string, wordOffset, bitOffset int, bits []byte) error {
	a, ok := s.areas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArea, name)
	}
	if err := s.checkBitRange(name, a, wordOffset, bitOffset, len(bits)); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, v := range bits {
		pos := wordOffset*16 + bitOffset + i
		off := (pos / 16) * 2
		w := s.order.Uint16(a.buf[off:])
		if v != 0 {
			w |= 1 << (pos % 16)
		} else {
			w &^= 1 << (pos % 16)
		}
		s.order.PutUint16(a.buf[off:], w)
	}
	return nil
}

func (s *Store) checkBitRange(name string, a *area, wordOffset, bitOffset, count int) error {
	words := len(a.buf) / 2
	if bitOffset < 0 || bitOffset > 15 {
		return fmt.Errorf("area %s: bit offset %d out of [0,15]", name, bitOffset)
	}
	if wordOffset < 0 || count < 0 {
		return &RangeError{Area: name, Offset: wordOffset, Count: count, Words: words}
	}
	if count == 0 {
		return nil
	}
	lastWord := wordOffset + (bitOffset+count-1)/16
	if lastWord >= words {
		return &RangeError{Area: name, Offset: wordOffset, Count: count, Words: words}
	}
	return nil
}

// Snapshot returns a consistent copy of every area. All area read locks
// are acquired atomically so no writer can interleave between areas.
func (s *Store) Snapshot() map[string][]byte {
	lockers := make([]sync.Locker, len(s.names))
	for i, name := range s.names {
		lockers[i] = s.areas[name].mu.RLocker()
	}
	ml := multilocker.New(lockers...)
	ml.Lock()
	defer ml.Unlock()

	out := make(map[string][]byte, len(s.names))
	for _, name := range s.names {
		buf := s.areas[name].buf
		cp := make([]byte, len(buf))
		copy(cp, buf)
		out[name] = cp
	}
	return out
}
