package connectivity

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"
	"fieldscan/scanner-relay/prometheus"
)

const probeTimeout = 2 * time.Second

type dialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// Monitor keeps a cheap view of whether the network is reachable by
// periodically opening a TCP connection to a well-known host. Only edge
// transitions matter: coming back online raises a single coalesced
// drain signal for the delivery worker.
type Monitor struct {
	probeAddr string
	interval  time.Duration
	dial      dialFunc

	online  uint32
	signals chan struct{}
}

func NewMonitor(cfg *config.Config) *Monitor {
	return &Monitor{
		probeAddr: cfg.ConnectivityProbeAddr,
		interval:  cfg.GetConnectivityPollInterval(),
		dial:      net.DialTimeout,
		signals:   make(chan struct{}, 1),
	}
}

func NewMonitorWithDialer(cfg *config.Config, dial func(network, addr string, timeout time.Duration) (net.Conn, error)) *Monitor {
	m := NewMonitor(cfg)
	m.dial = dial

	return m
}

// Run probes immediately and then on every tick until the context is
// cancelled. The immediate probe means a unit that boots with network
// starts draining its backlog right away.
func (m *Monitor) Run(ctx context.Context) {
	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) Online() bool {
	return atomic.LoadUint32(&m.online) == 1
}

// Nudge raises the drain signal without blocking. Multiple nudges
// before the worker wakes collapse into one.
func (m *Monitor) Nudge() {
	select {
	case m.signals <- struct{}{}:
	default:
	}
}

// DrainSignals delivers one value per coalesced drain request.
func (m *Monitor) DrainSignals() <-chan struct{} {
	return m.signals
}

func (m *Monitor) probe() {
	conn, err := m.dial("tcp", m.probeAddr, probeTimeout)
	if err != nil {
		m.setOnline(false)
		return
	}
	_ = conn.Close()
	m.setOnline(true)
}

func (m *Monitor) setOnline(online bool) {
	var next uint32
	if online {
		next = 1
	}

	was := atomic.SwapUint32(&m.online, next)
	prometheus.SetOnline(online)

	if online && was == 0 {
		log.Logger.Info("connectivity restored, draining queued scans")
		m.Nudge()
	} else if !online && was == 1 {
		log.Logger.Warn("connectivity lost, scans will queue locally")
	}
}
