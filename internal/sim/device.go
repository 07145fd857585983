package sim

import (
	"github.com/tturner/fieldsim/internal/memory"
	"github.com/tturner/fieldsim/internal/wire"
)

// RegisterDevice is the narrow register surface a model needs from a
// host. Models written against it are protocol-neutral: any stack that
// exposes numbered 16-bit registers can carry them.
type RegisterDevice interface {
	SetRegister(addr int, value uint16) error
	GetRegister(addr int) (uint16, error)
}

// StoreRegisters adapts one Store area to RegisterDevice.
type StoreRegisters struct {
	store *memory.Store
	area  string
}

// NewStoreRegisters wraps a store area as a register device.
func NewStoreRegisters(store *memory.Store, area string) *StoreRegisters {
	return &StoreRegisters{store: store, area: area}
}

func (s *StoreRegisters) SetRegister(addr int, value uint16) error {
	return s.store.WriteWords(s.area, addr, wire.PutWords(s.store.Order(), []uint16{value}))
}

func (s *StoreRegisters) GetRegister(addr int) (uint16, error) {
	data, err := s.store.ReadWords(s.area, addr, 1)
	if err != nil {
		return 0, err
	}
	return wire.Uint16(s.store.Order(), data)
}
