// go-meshbridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-meshbridge.
//
// go-meshbridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-meshbridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-meshbridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-meshbridge"
	"github.com/ZaparooProject/go-meshbridge/config"
	"github.com/ZaparooProject/go-meshbridge/detection"
	_ "github.com/ZaparooProject/go-meshbridge/detection/uart"
	"github.com/ZaparooProject/go-meshbridge/indicator"
	"github.com/ZaparooProject/go-meshbridge/internal/logging"
	"github.com/ZaparooProject/go-meshbridge/internal/metrics"
	"github.com/ZaparooProject/go-meshbridge/internal/repeater"
	"github.com/ZaparooProject/go-meshbridge/internal/store"
	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/polling"
	"github.com/ZaparooProject/go-meshbridge/transport/uart"
)

var (
	runPorts          []string
	runDB             string
	runMetricsAddr    string
	runLEDPin         string
	runStatusInterval time.Duration
	runLinkGrace      time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bridge mesh traffic over the configured serial ports",
	Long: `Start one bridge per serial port and flood packets between them.

Ports come from --port, then from serial.ports in the config file. When neither
names a port the first detected USB serial adapter is used.

SIGHUP reloads the config file and reconfigures every bridge.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return fail(runBridges(cmd.Context()))
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runPorts, "port", "p", nil, "serial port to bridge (repeatable)")
	runCmd.Flags().StringVar(&runDB, "db", "", "record every frame to this SQLite file")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address (overrides metrics.listen)")
	runCmd.Flags().StringVar(&runLEDPin, "led-pin", "", "GPIO pin for the link LED (overrides indicator.pin)")
	runCmd.Flags().DurationVar(&runStatusInterval, "status-interval", time.Minute,
		"log bridge status this often (0 disables)")
	runCmd.Flags().DurationVar(&runLinkGrace, "link-grace", 0,
		"delay before a dropped link is reported down")
}

// bridgeGroup runs the repeater and every bridge on one goroutine, which is
// the threading model the bridge expects from its mesh stack.
type bridgeGroup struct {
	rep      *repeater.Repeater
	bridges  []*meshbridge.Bridge
	monitors []*polling.Monitor
}

func (g *bridgeGroup) Loop() {
	g.rep.Poll(time.Now())
	for _, b := range g.bridges {
		b.Loop()
	}
	for _, m := range g.monitors {
		m.Check()
	}
}

func runBridges(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfgStore := config.NewStore(configFile)
	prefs, err := cfgStore.Load()
	if err != nil {
		return err
	}
	if _, err := logging.Setup(prefs.Log); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	if debug || prefs.Log.Level == "debug" {
		meshbridge.SetDebugEnabled(true)
	}
	log := logging.Logger()

	ports, err := resolvePorts(ctx, prefs)
	if err != nil {
		return err
	}

	var opts []meshbridge.Option
	if runDB != "" {
		db, err := store.Open(runDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := store.Migrate(db); err != nil {
			return err
		}
		opts = append(opts, meshbridge.WithFrameObserver(store.NewFrameLog(db)))
	}

	rep := repeater.New(nil)
	group := &bridgeGroup{rep: rep}
	var radios []*uart.Transport
	defer func() {
		for _, r := range radios {
			_ = r.Close()
		}
	}()

	pollCfg := polling.DefaultConfig()
	pollCfg.PollInterval = prefs.PollInterval
	pollCfg.LinkDownGrace = runLinkGrace

	for _, port := range ports {
		radio := uart.New(port, uart.WithBaudRate(prefs.Serial.Baud))
		radios = append(radios, radio)

		bopts := append([]meshbridge.Option{
			meshbridge.WithPort(port),
			meshbridge.WithPacketPool(rep.Pool()),
		}, opts...)
		b, err := meshbridge.New(rep, radio, cfgStore, bopts...)
		if err != nil {
			return err
		}
		if err := b.Begin(); err != nil {
			return fmt.Errorf("bridge on %s: %w", port, err)
		}
		rep.AddTransmitter(b)
		group.bridges = append(group.bridges, b)
		group.monitors = append(group.monitors, newLinkMonitor(port, b.Link(), pollCfg))
		log.Infof("bridge started on %s", port)
	}

	led, err := openIndicator(prefs)
	if err != nil {
		log.WithError(err).Warn("link indicator disabled")
	}
	if led != nil {
		defer func() { _ = led.Close() }()
		led.Attach(group.monitors[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if srv := metricsServer(prefs, group.bridges); srv != nil {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer stopCancel()
			_ = srv.Stop(stopCtx)
		}()
		log.Infof("metrics on http://%s%s", srv.Addr(), prefs.Metrics.Path)
	}

	// a single link gets the adaptive idle interval; with several, the
	// group checks every monitor itself so no link is polled slowly
	var actorMonitor *polling.Monitor
	if len(group.monitors) == 1 {
		actorMonitor = group.monitors[0]
		group.monitors = nil
	}
	actor := polling.NewActor(group, actorMonitor, pollCfg)
	if err := actor.Start(ctx); err != nil {
		return err
	}

	if runStatusInterval > 0 {
		go logStatus(ctx, group.bridges, rep, runStatusInterval)
	}

	waitForSignals(ctx, cfgStore, group.bridges)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := actor.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("poll loop did not stop cleanly")
	}
	for _, b := range group.bridges {
		if err := b.Disable(); err != nil {
			logging.Debugf("disable %s: %v", b.Port(), err)
		}
	}
	return nil
}

// resolvePorts picks the ports to bridge: flags, then config, then detection.
func resolvePorts(ctx context.Context, prefs *config.Prefs) ([]string, error) {
	if len(runPorts) > 0 {
		return runPorts, nil
	}
	if len(prefs.Serial.Ports) > 0 {
		return prefs.Serial.Ports, nil
	}
	devices, err := detection.DetectAll(ctx, nil)
	if err != nil {
		if errors.Is(err, detection.ErrNoDevicesFound) {
			return nil, errors.New("no serial ports configured and none detected")
		}
		return nil, fmt.Errorf("port detection failed: %w", err)
	}
	logging.Logger().Infof("no ports configured, using detected %s", devices[0])
	return []string{devices[0].Path}, nil
}

func newLinkMonitor(port string, mgr *link.Manager, cfg *polling.Config) *polling.Monitor {
	log := logging.Logger().WithField("port", port)
	m := polling.NewMonitor(mgr, cfg)
	m.OnLinkUp = func(peer link.Address) {
		if peer.IsZero() {
			log.Info("link up")
			return
		}
		log.Infof("link up, peer %s", peer)
	}
	m.OnLinkDown = func() {
		log.Warn("link down")
	}
	m.OnStateChange = func(from, to link.State) {
		logging.Debugf("%s: link %s -> %s", port, from, to)
	}
	return m
}

func openIndicator(prefs *config.Prefs) (*indicator.LED, error) {
	pin := prefs.Indicator.Pin
	if runLEDPin != "" {
		pin = runLEDPin
	}
	if pin == "" {
		return nil, nil
	}
	led, err := indicator.Open(pin, prefs.Indicator.ActiveLow)
	if err != nil {
		return nil, fmt.Errorf("open LED pin %s: %w", pin, err)
	}
	return led, nil
}

func metricsServer(prefs *config.Prefs, bridges []*meshbridge.Bridge) *metrics.Server {
	addr := prefs.Metrics.Listen
	if runMetricsAddr == "" && !prefs.Metrics.Enabled {
		return nil
	}
	if runMetricsAddr != "" {
		addr = runMetricsAddr
	}
	collector := metrics.NewCollector()
	for _, b := range bridges {
		collector.Add(b)
	}
	return metrics.NewServer(addr, prefs.Metrics.Path, metrics.NewRegistry(collector))
}

func logStatus(ctx context.Context, bridges []*meshbridge.Bridge, rep *repeater.Repeater, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range bridges {
				logging.Logger().WithField("port", b.Port()).Info(b.Status())
			}
			s := rep.Stats()
			logging.Logger().Infof("repeater: queued=%d forwarded=%d consumed=%d pending=%d",
				s.Queued, s.Forwarded, s.Consumed, s.Pending)
		}
	}
}

// waitForSignals blocks until ctx is done or a terminating signal arrives.
// SIGHUP reloads the config file.
func waitForSignals(ctx context.Context, cfgStore *config.Store, bridges []*meshbridge.Bridge) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	log := logging.Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig != syscall.SIGHUP {
				log.Infof("received %s, shutting down", sig)
				return
			}
			reload(cfgStore, bridges)
		}
	}
}

func reload(cfgStore *config.Store, bridges []*meshbridge.Bridge) {
	log := logging.Logger()
	prefs, err := cfgStore.Load()
	if err != nil {
		log.WithError(err).Error("config reload failed, keeping current settings")
		return
	}
	if _, err := logging.Setup(prefs.Log); err != nil {
		log.WithError(err).Warn("logging not reconfigured")
	}
	for _, b := range bridges {
		if err := b.Reconfigure(); err != nil {
			log.WithError(err).WithField("port", b.Port()).Error("reconfigure failed")
		}
	}
	log.Info("config reloaded")
}
