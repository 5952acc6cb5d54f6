// Command fort-agent runs the SRC<->EPC bridge: it loads configuration,
// opens the serial link to the handheld, starts the vehicle FSM, and
// drives the UDP<->serial event loop until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lobaro/fort-agent-bridge/bridge"
	"github.com/lobaro/fort-agent-bridge/internal/config"
	"github.com/lobaro/fort-agent-bridge/internal/jausnoop"
	"github.com/lobaro/fort-agent-bridge/serialtransport"
	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

const fsmTickInterval = 100 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to the bridge's YAML config file; defaults are used if empty")
	device := flag.String("device", "", "serial device path, overrides the config file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			entry.WithError(err).Fatal("failed to load config")
		}
		cfg = loaded
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	log.SetLevel(config.ParseLevel(cfg.Log.Level))

	link := jausnoop.New(entry)
	display := jausnoop.NewDisplay(entry)
	fsm := vehiclefsm.New(link, display, entry.WithField("component", "fsm"))

	b, err := bridge.New(bridge.Config{
		Serial: serialtransport.Config{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout,
		},
		LocalAddr:  cfg.UDP.LocalAddr,
		RemoteAddr: cfg.UDP.RemoteAddr,
	}, fsm, entry.WithField("component", "bridge"))
	if err != nil {
		entry.WithError(err).Fatal("failed to construct bridge")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go fsm.Run(fsmTickInterval)
	defer fsm.Stop()

	entry.WithField("device", cfg.Serial.Device).
		WithField("local", cfg.UDP.LocalAddr).
		WithField("remote", cfg.UDP.RemoteAddr).
		Info("starting fort-agent bridge")

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		entry.WithError(err).Fatal("bridge exited with error")
	}
}

