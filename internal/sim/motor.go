package sim

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tturner/fieldsim/internal/memory"
	"github.com/tturner/fieldsim/internal/wire"
)

// Motor register map, word offsets into the DM area.
const (
	motorRegControl   = 0  // command word, nonzero = run
	motorRegTarget    = 1  // target RPM, int32, 2 words
	motorRegStatus    = 3  // run status, 0 or 1
	motorRegCurrent   = 4  // current RPM, int32, 2 words
	motorRegTemp      = 6  // casing temperature, float32, 2 words
	motorRegStartTime = 8  // unix start timestamp, int64, 4 words
	motorRegEnd       = 12 // one past the last motor word
)

// Motor physics per tick.
const (
	motorRampUp     = 50 // RPM per tick toward target
	motorRampDown   = 30 // RPM per tick toward zero
	motorTempIdle   = 25.0
	motorTempLoaded = 50.0
	motorWarmRate   = 0.4
	motorCoolRate   = 0.6
	motorTempFault  = 48.5
)

// Motor simulates a variable-speed drive behind the FINS instance. A
// client starts it by writing the DM control word; the model ramps RPM
// toward the target, warms the casing, stamps the start time on the
// rising edge, and mirrors run/fault state into CIO bits.
type Motor struct {
	store *memory.Store
	area  string
	bits  string
	now   func() time.Time
}

// NewMotor creates a motor over the given word and bit areas.
func NewMotor(store *memory.Store, wordArea, bitArea string) *Motor {
	return &Motor{store: store, area: wordArea, bits: bitArea, now: time.Now}
}

func (m *Motor) Name() string { return "motor" }

// Tick advances the drive one step. The control word and target RPM are
// client-owned and only read; everything from the status word up is
// written back in one store call.
func (m *Motor) Tick() error {
	order := binary.BigEndian
	buf, err := m.store.ReadWords(m.area, 0, motorRegEnd)
	if err != nil {
		return fmt.Errorf("motor read: %w", err)
	}

	control, _ := wire.Uint16(order, buf[motorRegControl*2:])
	target, _ := wire.Int32(order, buf[motorRegTarget*2:])
	status, _ := wire.Uint16(order, buf[motorRegStatus*2:])
	rpm, _ := wire.Int32(order, buf[motorRegCurrent*2:])
	temp, _ := wire.Float32(order, buf[motorRegTemp*2:])
	if temp < motorTempIdle {
		// Fresh memory reads as 0 degrees; start from ambient.
		temp = motorTempIdle
	}

	running := control != 0
	if running && status == 0 {
		// Rising edge: record when the drive came on.
		wire.PutInt64(order, buf[motorRegStartTime*2:], m.now().Unix())
	}
	if !running && status != 0 {
		wire.PutInt64(order, buf[motorRegStartTime*2:], 0)
	}

	if running {
		if rpm < target {
			rpm += motorRampUp
			if rpm > target {
				rpm = target
			}
		} else if rpm > target {
			rpm -= motorRampDown
			if rpm < target {
				rpm = target
			}
		}
		temp += motorWarmRate
		if temp > motorTempLoaded {
			temp = motorTempLoaded
		}
	} else {
		rpm -= motorRampDown
		if rpm < 0 {
			rpm = 0
		}
		temp -= motorCoolRate
		if temp < motorTempIdle {
			temp = motorTempIdle
		}
	}

	newStatus := uint16(0)
	if running {
		newStatus = 1
	}
	wire.PutUint16(order, buf[motorRegStatus*2:], newStatus)
	wire.PutInt32(order, buf[motorRegCurrent*2:], rpm)
	wire.PutFloat32(order, buf[motorRegTemp*2:], temp)

	if err := m.store.WriteWords(m.area, motorRegStatus, buf[motorRegStatus*2:motorRegEnd*2]); err != nil {
		return fmt.Errorf("motor write: %w", err)
	}

	fault := byte(0)
	if temp >= motorTempFault {
		fault = 1
	}
	run := byte(0)
	if running {
		run = 1
	}
	if err := m.store.WriteBits(m.bits, 0, 0, []byte{run, fault}); err != nil {
		return fmt.Errorf("motor status bits: %w", err)
	}
	return nil
}
