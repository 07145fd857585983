package sim

import "fmt"

// Battery register map, addresses on the hosting RegisterDevice.
const (
	batteryRegSOC     = 0 // state of charge, 0.1 % units
	batteryRegVoltage = 1 // pack voltage, mV
	batteryRegCurrent = 2 // signed, 10 mA units; positive = charging
	batteryRegAlarms  = 3 // alarm bit field
)

// Battery alarm bits.
const (
	BatteryAlarmLowSOC      uint16 = 1 << 0
	BatteryAlarmOverVoltage uint16 = 1 << 1
	BatteryAlarmFull        uint16 = 1 << 2
)

const (
	batterySOCMax       = 1000 // 100.0 %
	batterySOCLow       = 200  // 20.0 %
	batteryBaseVoltage  = 3000 // mV at 0 %
	batteryVoltageSlope = 12   // mV per 1.0 % SOC
	batteryOverVoltage  = 4150 // mV
)

// Battery models a pack charging or discharging behind any host that
// exposes numbered registers. The current register is the input: a
// client (or another model) writes it, the battery integrates state of
// charge from it and derives open-circuit voltage and alarms.
type Battery struct {
	dev RegisterDevice
}

// NewBattery creates a battery on a register host.
func NewBattery(dev RegisterDevice) *Battery {
	return &Battery{dev: dev}
}

func (b *Battery) Name() string { return "battery" }

func (b *Battery) Tick() error {
	soc, err := b.dev.GetRegister(batteryRegSOC)
	if err != nil {
		return fmt.Errorf("battery soc: %w", err)
	}
	raw, err := b.dev.GetRegister(batteryRegCurrent)
	if err != nil {
		return fmt.Errorf("battery current: %w", err)
	}
	current := int16(raw)

	// One tick moves SOC by current/100 in 0.1 % units, clamped.
	next := int(soc) + int(current)/100
	if next < 0 {
		next = 0
	}
	if next > batterySOCMax {
		next = batterySOCMax
	}
	soc = uint16(next)

	voltage := uint16(batteryBaseVoltage + next*batteryVoltageSlope/10)

	var alarms uint16
	if soc <= batterySOCLow {
		alarms |= BatteryAlarmLowSOC
	}
	if voltage >= batteryOverVoltage {
		alarms |= BatteryAlarmOverVoltage
	}
	if soc == batterySOCMax {
		alarms |= BatteryAlarmFull
	}

	if err := b.dev.SetRegister(batteryRegSOC, soc); err != nil {
		return fmt.Errorf("battery soc: %w", err)
	}
	if err := b.dev.SetRegister(batteryRegVoltage, voltage); err != nil {
		return fmt.Errorf("battery voltage: %w", err)
	}
	if err := b.dev.SetRegister(batteryRegAlarms, alarms); err != nil {
		return fmt.Errorf("battery alarms: %w", err)
	}
	return nil
}
