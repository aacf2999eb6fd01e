package dmxp

import "sync/atomic"

// Metrics tracks per-bus send/receive counters. Each Bus carries its
// own; Metrics implements interfaces.Observer, and the admin
// Prometheus exporter reads it through Snapshot.
type Metrics struct {
	SendOps     atomic.Uint64
	SendBytes   atomic.Uint64
	SendErrors  atomic.Uint64
	FullEvents  atomic.Uint64

	ReceiveOps    atomic.Uint64
	ReceiveBytes  atomic.Uint64
	ReceiveErrors atomic.Uint64
	EmptyEvents   atomic.Uint64

	BrokenPipeEvents atomic.Uint64

	TotalSendLatencyNs    atomic.Uint64
	TotalReceiveLatencyNs atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics for reporting.
type MetricsSnapshot struct {
	SendOps, SendBytes, SendErrors, FullEvents             uint64
	ReceiveOps, ReceiveBytes, ReceiveErrors, EmptyEvents    uint64
	BrokenPipeEvents                                        uint64
	AvgSendLatencyNs, AvgReceiveLatencyNs                   uint64
}

// Snapshot returns a consistent-enough point-in-time read of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		SendOps:          m.SendOps.Load(),
		SendBytes:        m.SendBytes.Load(),
		SendErrors:       m.SendErrors.Load(),
		FullEvents:       m.FullEvents.Load(),
		ReceiveOps:       m.ReceiveOps.Load(),
		ReceiveBytes:     m.ReceiveBytes.Load(),
		ReceiveErrors:    m.ReceiveErrors.Load(),
		EmptyEvents:      m.EmptyEvents.Load(),
		BrokenPipeEvents: m.BrokenPipeEvents.Load(),
	}
	if s.SendOps > 0 {
		s.AvgSendLatencyNs = m.TotalSendLatencyNs.Load() / s.SendOps
	}
	if s.ReceiveOps > 0 {
		s.AvgReceiveLatencyNs = m.TotalReceiveLatencyNs.Load() / s.ReceiveOps
	}
	return s
}

// ObserveSend implements interfaces.Observer.
func (m *Metrics) ObserveSend(channelID uint32, bytes uint32, latencyNs uint64, success bool) {
	m.SendOps.Add(1)
	m.SendBytes.Add(uint64(bytes))
	m.TotalSendLatencyNs.Add(latencyNs)
	if !success {
		m.SendErrors.Add(1)
	}
}

// ObserveReceive implements interfaces.Observer.
func (m *Metrics) ObserveReceive(channelID uint32, bytes uint32, latencyNs uint64, success bool) {
	m.ReceiveOps.Add(1)
	m.ReceiveBytes.Add(uint64(bytes))
	m.TotalReceiveLatencyNs.Add(latencyNs)
	if !success {
		m.ReceiveErrors.Add(1)
	}
}

// ObserveFull implements interfaces.Observer.
func (m *Metrics) ObserveFull(channelID uint32) { m.FullEvents.Add(1) }

// ObserveEmpty implements interfaces.Observer.
func (m *Metrics) ObserveEmpty(channelID uint32) { m.EmptyEvents.Add(1) }

// ObserveBrokenPipe implements interfaces.Observer.
func (m *Metrics) ObserveBrokenPipe(channelID uint32) { m.BrokenPipeEvents.Add(1) }
