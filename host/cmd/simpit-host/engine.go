package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"simpit/host/config"
	"simpit/host/logging"
	"simpit/host/metrics"
	"simpit/host/serial"
	"simpit/host/simpit"
	"simpit/host/telemetry"
)

// hostOptions are the flags shared by run and console
type hostOptions struct {
	configPath string
	device     string
	baud       int
	logLevel   string
	loopback   bool
}

func (o *hostOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&o.device, "device", "d", "", "Serial device path (overrides config)")
	cmd.Flags().IntVarP(&o.baud, "baud", "b", 0, "Baud rate (overrides config)")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "", "Log level (overrides config)")
	cmd.Flags().BoolVar(&o.loopback, "loopback", false, "Use a simulated device instead of a serial port")
}

func (o *hostOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("device") {
		cfg.Serial.Device = o.device
	}
	if cmd.Flags().Changed("baud") {
		cfg.Serial.Baud = o.baud
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// engine is a wired host with its collaborators
type engine struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Engine
	host    *simpit.Host
	cache   *telemetry.Cache
	closer  io.Closer
}

func newEngine(cmd *cobra.Command, opts *hostOptions, logOut io.Writer) (*engine, error) {
	cfg, err := opts.load(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New("simpit-host", cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	m := metrics.NewEngine()

	var (
		transport serial.Transport
		closer    io.Closer
	)
	if opts.loopback {
		logger.Info().Msg("Using simulated device")
		lb := newSimulatedDevice()
		transport, closer = lb, lb
	} else {
		logger.Info().
			Str("device", cfg.Serial.Device).
			Int("baud", cfg.Serial.Baud).
			Msg("Opening serial port")
		port, err := serial.Open(cfg.SerialPort())
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
		stream := serial.NewStream(port, serial.WithStreamErrorHandler(func(err error) {
			logger.Warn().Err(err).Msg("Serial read error")
		}))
		m.WatchInput(stream)
		transport, closer = stream, stream
	}

	engineCfg := cfg.EngineConfig()
	engineCfg.Logger = logger
	engineCfg.Metrics = m
	host := simpit.New(transport, engineCfg)

	cache := telemetry.NewCache(logger, telemetry.WithRecorder(m))
	cache.Attach(host)

	return &engine{
		cfg:     cfg,
		log:     logger,
		metrics: m,
		host:    host,
		cache:   cache,
		closer:  closer,
	}, nil
}

func (e *engine) Close() error {
	err := e.closer.Close()
	if err != nil {
		e.log.Warn().Err(err).Msg("Transport close failed")
	}
	return err
}
