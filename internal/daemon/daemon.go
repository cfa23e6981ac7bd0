package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/leonardotrapani/copresenter/internal/bus"
	"github.com/leonardotrapani/copresenter/internal/config"
	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/deps"
	"github.com/leonardotrapani/copresenter/internal/gesture"
	"github.com/leonardotrapani/copresenter/internal/notify"
	"github.com/leonardotrapani/copresenter/internal/orchestrator"
	"github.com/leonardotrapani/copresenter/internal/playback"
	"github.com/leonardotrapani/copresenter/internal/server"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

const shutdownTimeout = 5 * time.Second

// Components replaces parts the daemon would otherwise build from config.
// Zero fields are built.
type Components struct {
	Source   continuation.Source
	Backend  playback.Backend
	Engine   transcript.Engine
	Notifier notify.Notifier
}

type Daemon struct {
	cfgMgr *config.Manager
	orch   *orchestrator.Orchestrator
	hub    *server.Hub
	srv    *server.Server
	feed   *gesture.Feed

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	source continuation.Source // as built from config; nil when injected
}

func New(cfgMgr *config.Manager, comps Components) (*Daemon, error) {
	cfg := cfgMgr.GetConfig()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		cfgMgr: cfgMgr,
		ctx:    ctx,
		cancel: cancel,
		feed:   gesture.NewFeed(cfg.Gesture.FrameMaxAge),
	}
	d.hub = server.NewHub(d.feed)

	var err error
	if comps.Source == nil {
		if comps.Source, err = buildSource(ctx, cfg); err != nil {
			cancel()
			return nil, err
		}
		d.source = comps.Source
	}
	if comps.Backend == nil {
		if comps.Backend, err = buildBackend(cfg); err != nil {
			cancel()
			return nil, err
		}
	}
	if comps.Engine == nil {
		if comps.Engine, err = buildEngine(cfg, d.hub); err != nil {
			cancel()
			return nil, err
		}
	}
	if comps.Notifier == nil {
		comps.Notifier = notify.New(cfg.NotifierType())
	}

	d.srv = server.New(cfg.Server.Addr, d.hub, comps.Source, buildSynthesizer(cfg, comps.Backend))
	d.orch = orchestrator.New(ctx, orchestrator.Options{
		Tick:  cfg.Gesture.Tick,
		Style: cfg.Continuation.Style,
	}, orchestrator.Deps{
		Source:     comps.Source,
		Backend:    comps.Backend,
		Engine:     comps.Engine,
		Retry:      cfg.ToRetryPolicy(),
		Classifier: d.feed,
		Labels:     cfg.ToLabels(),
		Cooldown:   cfg.Gesture.Cooldown,
		Notifier:   comps.Notifier,
		OnChange:   func(s orchestrator.Status) { d.hub.BroadcastStatus(s) },
	})

	cfgMgr.OnChange(d.applyConfig)
	return d, nil
}

// Snapshot returns the orchestrator's last published status.
func (d *Daemon) Snapshot() orchestrator.Status {
	return d.orch.Snapshot()
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if missing := deps.Missing(d.cfgMgr.GetConfig()); len(missing) > 0 {
		log.Printf("Daemon: missing tools on PATH: %s (see copresenter doctor)", strings.Join(missing, ", "))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal %v, shutting down gracefully", sig)
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	if err := d.cfgMgr.StartWatching(d.ctx); err != nil {
		log.Printf("Config watch disabled: %v", err)
	}
	defer d.cfgMgr.Stop()

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		if err := d.orch.Run(d.ctx); err != nil {
			log.Printf("Orchestrator error: %v", err)
			d.cancel()
		}
	}()

	go func() {
		if err := d.srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
			d.cancel()
		}
	}()

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
		<-orchDone
	}()

	log.Printf("Daemon started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("Shutdown requested")
				return nil
			}
			log.Printf("Accept error: %v", err)
			d.cancel()
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	cmd, arg, err := bus.ReadRequest(bufio.NewReader(c))
	if err != nil {
		log.Printf("Client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, shutdownTimeout)
	defer cancel()

	switch cmd {
	case bus.CmdStatus:
		s := d.orch.Snapshot()
		fmt.Fprintf(c, "STATUS state=%s session=%d queued=%d cooldown=%s\n", s.State, s.Session, s.Queued, s.CooldownRemaining)
	case bus.CmdStatusJSON:
		data, err := json.Marshal(d.orch.Snapshot())
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(c, "%s\n", data)
	case bus.CmdWave:
		if err := d.orch.Trigger(ctx); err != nil {
			fmt.Fprintf(c, "ERR %s\n", waveError(err))
			return
		}
		fmt.Fprint(c, "OK wave\n")
	case bus.CmdInterrupt:
		if err := d.orch.Interrupt(ctx); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK interrupted\n")
	case bus.CmdStyle:
		style, err := d.orch.SetStyle(ctx, arg)
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK style=%s\n", style)
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		log.Printf("Unknown command: %c", cmd)
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func waveError(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		return "busy"
	case errors.Is(err, orchestrator.ErrCooldown):
		return "cooldown"
	case errors.Is(err, orchestrator.ErrEmpty):
		return "empty"
	default:
		return err.Error()
	}
}

// applyConfig pushes the settings that can change at runtime into the live
// orchestrator and server.
func (d *Daemon) applyConfig(old, updated *config.Config) {
	ctx, cancel := context.WithTimeout(d.ctx, shutdownTimeout)
	defer cancel()

	if old.Continuation.Style != updated.Continuation.Style {
		if _, err := d.orch.SetStyle(ctx, updated.Continuation.Style); err != nil {
			log.Printf("Config reload: style: %v", err)
		}
	}
	if old.Gesture.Cooldown != updated.Gesture.Cooldown {
		if err := d.orch.SetCooldown(ctx, updated.Gesture.Cooldown); err != nil {
			log.Printf("Config reload: cooldown: %v", err)
		}
	}

	d.mu.Lock()
	built := d.source != nil
	d.mu.Unlock()
	if built && continuationChanged(old, updated) {
		source, err := buildSource(d.ctx, updated)
		if err != nil {
			log.Printf("Config reload: keeping current continuation provider: %v", err)
		} else {
			d.mu.Lock()
			d.source = source
			d.mu.Unlock()
			d.orch.SetSource(source)
			d.srv.SetSource(source)
			log.Printf("Config reload: continuation provider is now %s", source.Name())
		}
	}

	if sections := restartRequired(old, updated); len(sections) > 0 {
		log.Printf("Config reload: restart to apply changes to %s", strings.Join(sections, ", "))
	}
}
