// zktaccess-mqtt bridges a ZKTeco C3 access-control panel to MQTT.
//
// The bridge polls the panel's real-time log, derives door, lock relay,
// auxiliary input and reader states, keeps them in a persistent store and
// publishes them for Home Assistant together with MQTT discovery configs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/bridges/c3"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/homeassistant"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/config"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/database"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/logging"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/mqtt"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/state"
	"github.com/vbartusevicius/zktaccess-mqtt/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar names the environment variable holding the config file path.
const configEnvVar = "ZKTACCESS_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	once        bool
	showVersion bool
}

// parseFlags parses args. Help output goes to out and yields pflag.ErrHelp.
func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options

	fs := pflag.NewFlagSet("zktaccess-mqtt", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file (env "+configEnvVar+")")
	fs.BoolVar(&opts.once, "once", false, "run a single poll cycle and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.configPath == "" {
		opts.configPath = os.Getenv(configEnvVar)
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - out: Destination for help and version output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args, out)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(out, "zktaccess-mqtt %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting zktaccess-mqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
	)
	log.Debug("effective configuration", "config", cfg.String())

	// Entity state store
	snap, db, closeSnap, err := openSnapshotter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSnap()
	store := state.New(ctx, snap, state.WithLogger(log.With("component", "state")))

	// Panel connection and inventory
	dial := panelDialer(cfg, log.With("component", "c3"))
	panel, err := dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting to panel: %w", err)
	}
	def, err := c3.ResolveDefinition(ctx, panel, cfg.Panel.Model)
	if err != nil {
		panel.Close()
		return err
	}
	log.Info("panel inventory resolved",
		"serial", def.SerialNumber,
		"firmware", def.FirmwareVersion,
		"doors", len(def.Doors),
		"readers", len(def.Readers),
		"relays", len(def.Relays),
		"aux_inputs", len(def.AuxInputs),
	)

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		panel.Close()
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log.With("component", "mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Panel.Model, def.SerialNumber)

	processor := access.NewProcessor(cfg.Site.Timezone, access.WithLogger(log))
	log.Info("event timezone", "configured", cfg.Site.Timezone, "effective", processor.Location().String())

	bridgeOpts := c3.BridgeOptions{
		MQTTClient: mqttClient,
		Dial:       dial,
		Poller:     panel,
		Store:      store,
		Processor:  processor,
		Deriver:    access.NewDeriver(log),
		Definition: def,
		Topics:     topics,
		Interval:   cfg.GetPollingInterval(),
		QoS:        byte(cfg.MQTT.QoS),
		Logger:     log,
	}
	if cfg.HomeAssistant.Discovery {
		bridgeOpts.Discovery = homeassistant.NewBuilder(homeassistant.Config{
			Prefix:            cfg.HomeAssistant.DiscoveryPrefix,
			DeviceName:        cfg.DeviceName(),
			Manufacturer:      cfg.HomeAssistant.Manufacturer,
			SWVersion:         cfg.HomeAssistant.SWVersion,
			AvailabilityTopic: mqttClient.AvailabilityTopic(),
		}, def, topics)
	}

	bridge, err := c3.NewBridge(bridgeOpts)
	if err != nil {
		panel.Close()
		return fmt.Errorf("creating bridge: %w", err)
	}
	defer bridge.Stop()

	if opts.once {
		return runOnce(ctx, bridge, log)
	}

	var health *c3.HealthReporter
	if interval := cfg.GetHealthInterval(); interval > 0 {
		health = c3.NewHealthReporter(c3.HealthReporterConfig{
			Bridge:    logging.ServiceName,
			Serial:    def.SerialNumber,
			Version:   version,
			Topic:     topics.BridgeHealth(),
			Interval:  interval,
			QoS:       byte(cfg.MQTT.QoS),
			Publisher: mqttClient,
			Source:    bridge,
			Checks:    healthChecks(mqttClient, db),
		})
		health.SetLogger(log)
		mqttClient.SetOnDisconnect(health.RecordMQTTDisconnect)
		if err := health.PublishStarting(); err != nil {
			log.Warn("failed to publish starting status", "error", err)
		}
	}

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	mqttClient.SetOnConnect(bridge.RequestRepublish)

	if health != nil {
		health.Start(ctx)
		defer health.Stop()
	}

	log.Info("zktaccess-mqtt running")
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// runOnce initializes the bridge, runs a single poll cycle and returns.
func runOnce(ctx context.Context, bridge *c3.Bridge, log *logging.Logger) error {
	if err := bridge.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing bridge: %w", err)
	}
	n, err := bridge.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}
	log.Info("single poll cycle complete", "events", n)
	return nil
}

// healthChecks lists the dependency checks of the health report. db is nil
// for the file state backend.
func healthChecks(mqttClient *mqtt.Client, db *database.DB) []c3.HealthCheck {
	checks := []c3.HealthCheck{{Name: "mqtt", Check: mqttClient.HealthCheck}}
	if db != nil {
		checks = append(checks, c3.HealthCheck{Name: "database", Check: db.HealthCheck})
	}
	return checks
}

// panelDialer returns a function opening a new panel session.
func panelDialer(cfg *config.Config, log *logging.Logger) c3.Dialer {
	panelCfg := c3.Config{
		Host:     cfg.Panel.Host,
		Port:     cfg.Panel.Port,
		Password: cfg.Panel.Password,
		Timeout:  cfg.GetPanelTimeout(),
	}
	return func(ctx context.Context) (c3.Poller, error) {
		client, err := c3.Connect(ctx, panelCfg)
		if err != nil {
			return nil, err
		}
		client.SetLogger(log)
		log.Info("panel connected", "address", panelCfg.Address())
		return client, nil
	}
}

// openSnapshotter builds the configured state backend. The database is
// returned for the sqlite backend only. The close function is never nil.
func openSnapshotter(ctx context.Context, cfg *config.Config, log *logging.Logger) (state.Snapshotter, *database.DB, func(), error) {
	switch cfg.State.Backend {
	case config.StateBackendSQLite:
		db, err := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("state backend ready", "backend", cfg.State.Backend, "path", db.Path())

		closeDB := func() {
			log.Info("closing database")
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}
		return state.NewSQLiteSnapshotter(db.DB), db, closeDB, nil

	default:
		log.Info("state backend ready", "backend", config.StateBackendFile, "path", cfg.State.Path)
		return state.NewFileSnapshotter(cfg.State.Path), nil, func() {}, nil
	}
}
