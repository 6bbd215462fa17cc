// Package observe provides the server's OpenTelemetry metrics and the
// Prometheus bridge that exposes them on /metrics.
package observe

import (
	"context"
	"strconv"
	"time"

	"github.com/astraeus/server/internal/core/system"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all server metrics.
const meterName = "github.com/astraeus/server"

// Metrics holds all OpenTelemetry metric instruments for the server.
// All fields are safe for concurrent use.
type Metrics struct {
	// TickDuration tracks the wall time of a complete tick.
	TickDuration metric.Float64Histogram

	// PhaseDuration tracks each tick phase. Attribute: phase.
	PhaseDuration metric.Float64Histogram

	// LateTicks counts ticks that overran the tick period.
	LateTicks metric.Int64Counter

	// PacketsIn / PacketsOut count decoded and encoded packets.
	// Attribute: opcode.
	PacketsIn  metric.Int64Counter
	PacketsOut metric.Int64Counter

	// ProtocolErrors counts sessions dropped for malformed input.
	ProtocolErrors metric.Int64Counter

	// ActivePlayers / ActiveNpcs track registered entities.
	ActivePlayers metric.Int64UpDownCounter
	ActiveNpcs    metric.Int64UpDownCounter

	// Logins counts login attempts. Attribute: result.
	Logins metric.Int64Counter
}

// tickBuckets are histogram boundaries in seconds around a 600ms tick.
var tickBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 0.6, 1, 2.5,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TickDuration, err = m.Float64Histogram("astraeus.tick.duration",
		metric.WithDescription("Wall time of a complete game tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PhaseDuration, err = m.Float64Histogram("astraeus.tick.phase.duration",
		metric.WithDescription("Wall time of one tick phase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LateTicks, err = m.Int64Counter("astraeus.tick.late",
		metric.WithDescription("Ticks that overran the tick period."),
	); err != nil {
		return nil, err
	}
	if met.PacketsIn, err = m.Int64Counter("astraeus.packets.in",
		metric.WithDescription("Packets decoded from clients."),
	); err != nil {
		return nil, err
	}
	if met.PacketsOut, err = m.Int64Counter("astraeus.packets.out",
		metric.WithDescription("Packets encoded for clients."),
	); err != nil {
		return nil, err
	}
	if met.ProtocolErrors, err = m.Int64Counter("astraeus.protocol.errors",
		metric.WithDescription("Sessions closed because of malformed input."),
	); err != nil {
		return nil, err
	}
	if met.ActivePlayers, err = m.Int64UpDownCounter("astraeus.players.active",
		metric.WithDescription("Players registered in the world."),
	); err != nil {
		return nil, err
	}
	if met.ActiveNpcs, err = m.Int64UpDownCounter("astraeus.npcs.active",
		metric.WithDescription("Npcs registered in the world."),
	); err != nil {
		return nil, err
	}
	if met.Logins, err = m.Int64Counter("astraeus.logins",
		metric.WithDescription("Login attempts by result."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// PhaseDone records one phase of a tick.
func (m *Metrics) PhaseDone(p system.Phase, elapsed time.Duration) {
	m.PhaseDuration.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(attribute.String("phase", p.String())))
}

// TickDone records a complete tick.
func (m *Metrics) TickDone(elapsed time.Duration, late bool) {
	ctx := context.Background()
	m.TickDuration.Record(ctx, elapsed.Seconds())
	if late {
		m.LateTicks.Add(ctx, 1)
	}
}

func (m *Metrics) PacketIn(opcode int) {
	m.PacketsIn.Add(context.Background(), 1, metric.WithAttributes(opcodeAttr(opcode)))
}

func (m *Metrics) PacketOut(opcode int) {
	m.PacketsOut.Add(context.Background(), 1, metric.WithAttributes(opcodeAttr(opcode)))
}

func (m *Metrics) ProtocolError() {
	m.ProtocolErrors.Add(context.Background(), 1)
}

// LoginResult counts a login attempt.
func (m *Metrics) LoginResult(result string) {
	m.Logins.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) PlayerJoined() { m.ActivePlayers.Add(context.Background(), 1) }

func (m *Metrics) PlayerLeft() { m.ActivePlayers.Add(context.Background(), -1) }

func (m *Metrics) NpcsSpawned(n int) { m.ActiveNpcs.Add(context.Background(), int64(n)) }

func (m *Metrics) NpcsDespawned(n int) { m.ActiveNpcs.Add(context.Background(), -int64(n)) }

func opcodeAttr(opcode int) attribute.KeyValue {
	return attribute.String("opcode", strconv.Itoa(opcode))
}
