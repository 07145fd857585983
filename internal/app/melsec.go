package app

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tturner/fieldsim/internal/config"
	"github.com/tturner/fieldsim/internal/errors"
	"github.com/tturner/fieldsim/internal/logging"
	"github.com/tturner/fieldsim/internal/melsec"
	"github.com/tturner/fieldsim/internal/sim"
	"github.com/tturner/fieldsim/internal/ui"
)

// MelsecOptions carries the melsec subcommand's flag overrides.
type MelsecOptions struct {
	ListenIP   string
	Port       int
	ConfigPath string
	PCAPFile   string
	LogLevel   string
	LogFile    string
	NoSim      bool
}

// RunMelsec starts the Mitsubishi MC simulator and blocks until
// interrupted.
func RunMelsec(opts MelsecOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return errors.WrapConfigError(err, opts.ConfigPath)
	}
	applyOverrides(&cfg.Logging, opts.LogLevel, opts.LogFile)
	if opts.ListenIP != "" {
		cfg.Melsec.ListenIP = opts.ListenIP
	}
	if opts.Port != 0 {
		cfg.Melsec.Port = opts.Port
	}
	if opts.NoSim {
		cfg.Melsec.Sim.Enable = false
	}

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	srv, err := melsec.NewServer(cfg.Melsec, logger)
	if err != nil {
		return fmt.Errorf("create MC server: %w", err)
	}

	pcapCapture, err := openCapture(srv, opts.PCAPFile)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return errors.WrapBindError(err, "melsec", cfg.Melsec.ListenIP, cfg.Melsec.Port)
	}

	simState := "disabled"
	var engines []*sim.Engine
	if cfg.Melsec.Sim.Enable {
		tick := time.Duration(cfg.Melsec.Sim.TickMs) * time.Millisecond
		models := []string{"line"}
		engines = append(engines, sim.NewEngine(sim.NewLine(srv.Store(), time.Now().UnixNano()), tick, logger))

		// The battery model only needs numbered registers; host it on
		// the W device when one is configured.
		if _, ok := cfg.Melsec.Devices["W"]; ok {
			regs := sim.NewStoreRegisters(srv.Store(), "W")
			engines = append(engines, sim.NewEngine(sim.NewBattery(regs), tick, logger))
			models = append(models, "battery")
		}
		for _, e := range engines {
			e.Start()
		}
		simState = fmt.Sprintf("%s, %s tick", strings.Join(models, "+"), tick)
	}

	fmt.Fprintln(os.Stdout, ui.Banner("Mitsubishi MC 3E simulator", []ui.Row{
		{Label: "Listen", Value: fmt.Sprintf("tcp %s", srv.Addr())},
		{Label: "Devices", Value: describeDevices(cfg.Melsec.Devices)},
		{Label: "Simulator", Value: simState, Active: cfg.Melsec.Sim.Enable},
	}))

	waitForInterrupt()

	for _, e := range engines {
		e.Stop()
	}
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop MC server: %w", err)
	}
	closeCapture(pcapCapture, opts.PCAPFile)
	return nil
}

func describeDevices(devices map[string]config.DeviceRange) string {
	letters := make([]string, 0, len(devices))
	for letter := range devices {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	parts := make([]string, len(letters))
	for i, letter := range letters {
		rng := devices[letter].Range
		parts[i] = fmt.Sprintf("%s%d-%d", letter, rng[0], rng[1])
	}
	return strings.Join(parts, ", ")
}
