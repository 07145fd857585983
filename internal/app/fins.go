package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tturner/fieldsim/internal/capture"
	"github.com/tturner/fieldsim/internal/config"
	"github.com/tturner/fieldsim/internal/errors"
	"github.com/tturner/fieldsim/internal/fins"
	"github.com/tturner/fieldsim/internal/logging"
	"github.com/tturner/fieldsim/internal/sim"
	"github.com/tturner/fieldsim/internal/ui"
)

// FINSOptions carries the fins subcommand's flag overrides.
type FINSOptions struct {
	ListenIP   string
	Port       int
	ConfigPath string
	PCAPFile   string
	LogLevel   string
	LogFile    string
	NoSim      bool
}

// RunFINS starts the OMRON FINS simulator and blocks until interrupted.
func RunFINS(opts FINSOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return errors.WrapConfigError(err, opts.ConfigPath)
	}
	applyOverrides(&cfg.Logging, opts.LogLevel, opts.LogFile)
	if opts.ListenIP != "" {
		cfg.FINS.ListenIP = opts.ListenIP
	}
	if opts.Port != 0 {
		cfg.FINS.Port = opts.Port
	}
	if opts.NoSim {
		cfg.FINS.Sim.Enable = false
	}

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	srv, err := fins.NewServer(cfg.FINS, logger)
	if err != nil {
		return fmt.Errorf("create FINS server: %w", err)
	}

	pcapCapture, err := openCapture(srv, opts.PCAPFile)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return errors.WrapBindError(err, "FINS", cfg.FINS.ListenIP, cfg.FINS.Port)
	}

	simState := "disabled"
	var engine *sim.Engine
	if cfg.FINS.Sim.Enable {
		tick := time.Duration(cfg.FINS.Sim.TickMs) * time.Millisecond
		engine = sim.NewEngine(sim.NewMotor(srv.Store(), fins.AreaData, fins.AreaCIO), tick, logger)
		engine.Start()
		simState = fmt.Sprintf("motor, %s tick", tick)
	}

	fmt.Fprintln(os.Stdout, ui.Banner("OMRON FINS simulator", []ui.Row{
		{Label: "Listen", Value: fmt.Sprintf("udp %s", srv.Addr())},
		{Label: "Areas", Value: fmt.Sprintf("CIO %d / WR %d / HR %d / DM %d words",
			cfg.FINS.Areas.CIO, cfg.FINS.Areas.Work, cfg.FINS.Areas.Holding, cfg.FINS.Areas.Data)},
		{Label: "Simulator", Value: simState, Active: cfg.FINS.Sim.Enable},
	}))

	waitForInterrupt()

	if engine != nil {
		engine.Stop()
	}
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop FINS server: %w", err)
	}
	closeCapture(pcapCapture, opts.PCAPFile)
	return nil
}

func applyOverrides(cfg *config.LoggingConfig, level, file string) {
	if level != "" {
		cfg.Level = level
	}
	if file != "" {
		cfg.File = file
	}
}

// captureSink is the slice of a server the capture layer needs.
type captureSink interface {
	SetCapture(*capture.Capture)
}

func openCapture(srv captureSink, path string) (*capture.Capture, error) {
	if path == "" {
		return nil, nil
	}
	pcapCapture, err := capture.Open(path)
	if err != nil {
		return nil, errors.WrapCaptureError(err, path)
	}
	srv.SetCapture(pcapCapture)
	return pcapCapture, nil
}

func closeCapture(pcapCapture *capture.Capture, path string) {
	if pcapCapture == nil {
		return
	}
	count := pcapCapture.PacketCount()
	pcapCapture.Close()
	absPath, _ := filepath.Abs(path)
	fmt.Fprintf(os.Stdout, "Packets captured: %d\n", count)
	fmt.Fprintf(os.Stdout, "PCAP written to: %s\n", absPath)
}

func waitForInterrupt() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Fprintf(os.Stdout, "\nShutting down...\n")
}
