package sim

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/tturner/fieldsim/internal/memory"
	"github.com/tturner/fieldsim/internal/wire"
)

// Line register map, word offsets into the D device.
const (
	lineRegHeartbeat = 0  // free-running counter, wraps at 16 bits
	lineRegVoltage   = 10 // three phase voltages, 0.1 V units
	lineRegCurrent   = 13 // three phase currents, 0.01 A units
	linePhases       = 3
)

// Line nominal electrical values and drift bounds.
const (
	lineNominalVoltage = 2300 // 230.0 V
	lineNominalCurrent = 1250 // 12.50 A
	lineVoltageDrift   = 15
	lineCurrentDrift   = 40
)

// Line simulates a powered production line behind the MC instance: a
// heartbeat counter, per-phase electrical readings drifting around
// nominal, and the M0 command bit mirrored to the Y0 run output.
type Line struct {
	store *memory.Store
	rng   *rand.Rand
}

// NewLine creates a line model over the D, M and Y devices.
func NewLine(store *memory.Store, seed int64) *Line {
	return &Line{store: store, rng: rand.New(rand.NewSource(seed))}
}

func (l *Line) Name() string { return "line" }

func (l *Line) Tick() error {
	order := binary.LittleEndian

	hb, err := l.store.ReadWords("D", lineRegHeartbeat, 1)
	if err != nil {
		return fmt.Errorf("line heartbeat read: %w", err)
	}
	count, _ := wire.Uint16(order, hb)
	if err := l.store.WriteWords("D", lineRegHeartbeat, wire.PutWords(order, []uint16{count + 1})); err != nil {
		return fmt.Errorf("line heartbeat write: %w", err)
	}

	cmd, err := l.store.ReadBits("M", 0, 0, 1)
	if err != nil {
		return fmt.Errorf("line command read: %w", err)
	}
	powered := cmd[0] != 0

	readings := make([]uint16, linePhases*2)
	for i := 0; i < linePhases; i++ {
		if powered {
			readings[i] = uint16(lineNominalVoltage + l.rng.Intn(2*lineVoltageDrift+1) - lineVoltageDrift)
			readings[linePhases+i] = uint16(lineNominalCurrent + l.rng.Intn(2*lineCurrentDrift+1) - lineCurrentDrift)
		}
	}
	if err := l.store.WriteWords("D", lineRegVoltage, wire.PutWords(order, readings)); err != nil {
		return fmt.Errorf("line readings write: %w", err)
	}

	if err := l.store.WriteBits("Y", 0, 0, cmd[:1]); err != nil {
		return fmt.Errorf("line run output write: %w", err)
	}
	return nil
}
