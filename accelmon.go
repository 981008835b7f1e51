package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/stianeikeland/go-rpio/v4"
	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/config"
	"lautenbacher.net/accelmon/firmware"
	"lautenbacher.net/accelmon/irq"
	"lautenbacher.net/accelmon/kx134"
	"lautenbacher.net/accelmon/kx13x"
	"lautenbacher.net/accelmon/logging"
	"lautenbacher.net/accelmon/monitor"
	"lautenbacher.net/accelmon/sim"
	"lautenbacher.net/accelmon/sink"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const viewerRefresh = 200 * time.Millisecond

// App wires the firmware loop to the configured sensor, sinks and surfaces.
type App struct {
	conf    *config.Config
	cfile   string
	realHW  bool
	fw      *firmware.Firmware
	adapter *kx134.Adapter
	history *monitor.History
	viewer  *monitor.Viewer
	cleanup []func()
}

// NewApp creates an App for conf. cfile is watched for rate changes.
func NewApp(conf *config.Config, cfile string, realHW bool) *App {
	return &App{
		conf:    conf,
		cfile:   cfile,
		realHW:  realHW,
		history: monitor.NewHistory(conf.Monitor.History),
	}
}

func main() {
	cfile := flag.String("config", config.CONFILE, "Config file to use")
	realHW := flag.Bool("real", false, "Use a KX134 on I2C instead of the simulator")
	withViewer := flag.Bool("viewer", false, "Show the terminal monitor")
	timeout := flag.Duration("timeout", 0, "Stop acquisition after this time (0 runs until interrupted)")
	flag.Parse()

	conf, err := config.ReadConfig(*cfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logging.Init(conf.Logging, *withViewer); err != nil {
		fmt.Fprintf(os.Stderr, "Can't set up logging: %s\n", err)
		os.Exit(2)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	app := NewApp(conf, *cfile, *realHW)
	if err := app.Run(ctx, *withViewer); err != nil {
		slog.Error("Acquisition failed", "error", err)
		logging.Close()
		os.Exit(1)
	}
	stats := app.adapter.Stats()
	fmt.Printf("%d samples, %d dropped\n", app.fw.Samples(), stats.Dropped)
}

// Run wires sensor, sinks and surfaces and blocks until acquisition ends.
func (a *App) Run(ctx context.Context, withViewer bool) error {
	defer a.close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, err := a.openSinks()
	if err != nil {
		return err
	}
	a.cleanup = append(a.cleanup, func() {
		if err := out.Close(); err != nil {
			slog.Error("Failed to close sinks", "error", err)
		}
	})

	opts := firmware.Options{
		InitRetries:    a.conf.Hardware.InitRetries,
		InitRetryDelay: a.conf.Hardware.InitRetryDelay,
		MaxSamples:     a.conf.Output.MaxSamples,
		Sink:           out,
		History:        a.history,
	}
	if withViewer {
		a.viewer = monitor.NewViewer(a.history, cancel)
		opts.Status = a.viewer.SetStatus
	}
	a.fw = firmware.New(opts)

	if err := a.setupSensor(); err != nil {
		return err
	}
	if a.conf.Web.Enabled {
		a.serveHTTP()
	}
	err = config.Watch(ctx, a.cfile, func(c *config.Config) {
		a.fw.Update(accel.KeyRate, uint32(c.Sensor.OutputDataRate))
	})
	if err != nil {
		slog.Warn("Config reload disabled", "error", err)
	}

	// The rate from the file wins over the adapter default.
	a.adapter.Set(accel.KeyRate, uint32(a.conf.Sensor.OutputDataRate))

	if a.viewer == nil {
		return a.fw.Run(ctx, a.adapter)
	}
	return a.runWithViewer(ctx)
}

func (a *App) runWithViewer(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- a.fw.Run(ctx, a.adapter)
		a.viewer.Stop()
	}()
	if err := a.viewer.Run(viewerRefresh); err != nil {
		slog.Error("Viewer failed", "error", err)
	}
	// Back on the plain terminal.
	if err := logging.SetOutput(os.Stderr); err != nil {
		slog.Error("Failed to restore log output", "error", err)
	}
	return <-done
}

func (a *App) openSinks() (sink.Fanout, error) {
	var out sink.Fanout
	o := a.conf.Output
	if o.CSVFile != "" {
		scale := 0.0
		if o.ConvertToG {
			scale = sink.GScale(a.conf.Hardware.GRange)
		}
		rate := kx13x.OutputDataRate(a.conf.Sensor.OutputDataRate)
		csv, err := sink.NewCSV(o.CSVFile, uuid.New(), rate, scale)
		if err != nil {
			return nil, err
		}
		out = append(out, csv)
	}
	if o.SerialPort != "" {
		s, err := sink.NewSerial(o.SerialPort, o.SerialBaud)
		if err != nil {
			out.Close()
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (a *App) setupSensor() error {
	h := a.conf.Hardware
	if !a.realHW {
		drv := sim.NewDriver()
		line := irq.NewSimLine(h.InterruptPin)
		gen := sim.NewGenerator(drv, line, a.conf.Simulation.Amplitude, a.conf.Simulation.Noise)
		gen.Start()
		a.cleanup = append(a.cleanup, gen.Stop)
		a.adapter = kx134.New(drv, line, a.fw.DataReady)
		slog.Info("Running on simulated KX134", "line", line)
		return nil
	}

	slog.Info("Initialise I2C and GPIO...")
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(h.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus %q: %w", h.I2CBus, err)
	}
	a.cleanup = append(a.cleanup, func() { bus.Close() })
	dev := kx13x.New(bus, &kx13x.Opts{
		Address:          h.I2CAddress,
		ExpectedDeviceID: kx13x.WhoAmIKX134,
		GRange:           h.GRange,
	})

	var line irq.Line
	switch strings.ToLower(h.GPIOLibrary) {
	case "rpio":
		if err := rpio.Open(); err != nil {
			return fmt.Errorf("failed to open rpio: %w", err)
		}
		a.cleanup = append(a.cleanup, func() { rpio.Close() })
		line = irq.NewRpioLine(h.InterruptPin, h.RpioPollInterval)
	default:
		pl, err := irq.NewPeriphLine(h.InterruptPin, h.PollInterval)
		if err != nil {
			return err
		}
		line = pl
	}
	a.adapter = kx134.New(dev, line, a.fw.DataReady)
	slog.Info("Using KX134", "dev", dev, "line", line)
	return nil
}

func (a *App) serveHTTP() {
	srv := &http.Server{
		Addr:              a.conf.Web.Address,
		Handler:           a.fw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Starting web server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server failed", "error", err)
		}
	}()
	a.cleanup = append(a.cleanup, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Web server shutdown failed", "error", err)
		}
	})
}

// close runs the cleanups in reverse order.
func (a *App) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}
