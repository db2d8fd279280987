// Command sensord reads debounced and smoothed GPIO sensors described in a
// YAML file and publishes their state changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sweeney/sensord/internal/config"
	"github.com/sweeney/sensord/internal/device"
	"github.com/sweeney/sensord/internal/gpio"
	"github.com/sweeney/sensord/internal/logic"
	"github.com/sweeney/sensord/internal/mqtt"
	"github.com/sweeney/sensord/internal/status"
	"github.com/sweeney/sensord/internal/web"
)

// eventBuffer is the capacity of the channel between device handlers and
// the run loop.
const eventBuffer = 64

func main() {
	configPath := flag.String("config", "/etc/sensord.yaml", "Sensor configuration file")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	refresh := flag.Duration("refresh", time.Second, "Status refresh interval")
	printState := flag.Bool("print-state", false, "Print current state and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	ws := flag.Bool("ws", true, "Stream live sensor events on /ws")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	setupLogging(*debug)
	if err := run(*configPath, *broker, *heartbeat, *refresh, *printState, *httpAddr, *ws); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func run(configPath, broker string, heartbeat, refresh time.Duration, printState bool, httpAddr string, wsEnabled bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	chip, err := gpio.OpenChip(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	sensors, err := cfg.Build(chip)
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer closeSensors(sensors)

	// Print state mode
	if printState {
		for _, s := range sensors {
			waitReady(s.Device, 2*time.Second)
			fmt.Printf("%s (%s): %s %.3f\n", s.Name, s.Kind, logic.StateOf(s.Device.IsActive()), reading(s.Device))
		}
		return nil
	}

	done := make(chan struct{})
	events := make(chan logic.Event, eventBuffer)
	for _, s := range sensors {
		wire(s, events, done)
	}
	// Handlers block on the events channel; release them before the
	// deferred closeSensors waits for the dispatchers.
	defer close(done)

	publisher := mqtt.NewRealPublisher(broker)
	defer publisher.Close()

	var hub *web.Hub
	if wsEnabled && httpAddr != "" {
		hub = web.NewHub()
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:        cfg.Chip,
		ConfigPath:  configPath,
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPPort:    httpAddr,
		WSEnabled:   hub != nil,
		BootID:      uuid.NewString(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", httpAddr).Bool("ws", hub != nil).Msg("http status server listening")
	}

	log.Info().
		Str("config", configPath).
		Int("sensors", len(sensors)).
		Str("broker", broker).
		Dur("heartbeat", heartbeat).
		Msg("started")

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var bc broadcaster
	if hub != nil {
		bc = hub
	}
	return runLoop(sensors, events, publisher, publisher, tracker, bc, heartbeat, time.Now, ticker.C, sigCh)
}

func closeSensors(sensors []config.Sensor) {
	for _, s := range sensors {
		if err := s.Device.Close(); err != nil {
			log.Warn().Err(err).Str("sensor", s.Name).Msg("close sensor")
		}
	}
}

// broadcaster receives every published sensor payload. *web.Hub implements it.
type broadcaster interface {
	Broadcast(msg []byte)
}

// readiness is implemented by smoothed devices whose state is meaningless
// until the sample window fills.
type readiness interface {
	Ready() bool
}

// ranger is implemented by distance sensors, whose reading is reported in
// metres rather than as a fraction of the maximum.
type ranger interface {
	Distance() float64
}

func isReady(d device.Sensor) bool {
	if r, ok := d.(readiness); ok {
		return r.Ready()
	}
	return true
}

func waitReady(d device.Sensor, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !isReady(d) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

func reading(d device.Sensor) float64 {
	if r, ok := d.(ranger); ok {
		return r.Distance()
	}
	return d.Value()
}

// wire installs handlers that forward the device's transitions to events.
// Sends give up once done is closed.
func wire(s config.Sensor, events chan<- logic.Event, done <-chan struct{}) {
	emit := func(typ logic.EventType, active bool) device.Handler {
		return func() {
			e := logic.Event{
				Timestamp: time.Now(),
				Sensor:    s.Name,
				Kind:      s.Kind,
				Type:      typ,
				State:     logic.StateOf(active),
				Value:     reading(s.Device),
			}
			select {
			case events <- e:
			case <-done:
			}
		}
	}
	s.Device.SetWhenActivated(emit(logic.EventActivated, true))
	s.Device.SetWhenDeactivated(emit(logic.EventDeactivated, false))
	if b, ok := s.Device.(*device.Button); ok {
		b.SetWhenHeld(emit(logic.EventHeld, true))
	}
}

func runLoop(sensors []config.Sensor, events <-chan logic.Event, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, bc broadcaster, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ledger := logic.NewLedger(now())
	for _, s := range sensors {
		ledger.Register(s.Name, s.Kind)
	}

	// baseline observes sensors that have not yet reported a state. A
	// sensor that is still filling its window is left for a later tick.
	baseline := func(t time.Time) {
		for _, s := range sensors {
			if st, _ := ledger.Sensor(s.Name); st.Baselined || !isReady(s.Device) {
				continue
			}
			active := s.Device.IsActive()
			ledger.Observe(s.Name, active, reading(s.Device), t)
			log.Info().Str("sensor", s.Name).Str("state", string(logic.StateOf(active))).Msg("baseline")
		}
	}

	updateTracker := func() {
		if tracker == nil {
			return
		}
		tracker.Update(ledger.Sensors(), ledger.IsBaselined(), ledger.EventCountsSnapshot())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	baseline(now())
	updateTracker()

	// Publish startup event with full status snapshot
	startup := mqtt.SystemEvent{Timestamp: now(), Event: "STARTUP", Retained: true}
	if tracker != nil {
		startup.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", "")
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Error().Err(err).Msg("failed to publish startup event")
	} else {
		log.Info().Msg("published startup event")
	}

	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker()
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Error().Err(err).Msg("failed to publish shutdown event")
			} else {
				log.Info().Msg("published shutdown event")
			}
			return nil

		case e := <-events:
			if !ledger.Record(e) {
				log.Debug().Str("sensor", e.Sensor).Str("event", string(e.Type)).Msg("duplicate event ignored")
				continue
			}
			log.Info().
				Str("sensor", e.Sensor).
				Str("event", string(e.Type)).
				Float64("value", e.Value).
				Msg("event")
			if err := publisher.Publish(e); err != nil {
				// Don't crash on publish failure
				log.Error().Err(err).Str("sensor", e.Sensor).Msg("publish error")
			}
			if bc != nil {
				if payload, err := mqtt.FormatPayload(e); err == nil {
					bc.Broadcast(payload)
				}
			}
			updateTracker()

		case <-tick:
			t := now()
			baseline(t)

			// Check for heartbeat
			if hbData := ledger.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Info().
					Dur("uptime", hbData.Uptime).
					Int("activated", hbData.Counts.Activated).
					Int("deactivated", hbData.Counts.Deactivated).
					Int("held", hbData.Counts.Held).
					Msg("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					updateTracker()
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Error().Err(err).Msg("heartbeat publish error")
				}
			}

			// Update status tracker for HTTP consumers
			updateTracker()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
