package observe

import (
	"context"
	"testing"
	"time"

	"github.com/astraeus/server/internal/core/system"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestTickObserver(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.PhaseDone(system.PhasePrepare, 2*time.Millisecond)
	m.PhaseDone(system.PhaseSynchronize, 5*time.Millisecond)
	m.TickDone(10*time.Millisecond, false)
	m.TickDone(700*time.Millisecond, true)

	rm := collect(t, reader)
	if got := sumOf(t, rm, "astraeus.tick.late"); got != 1 {
		t.Fatalf("late ticks = %d", got)
	}
	phases := findMetric(rm, "astraeus.tick.phase.duration")
	hist, ok := phases.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 2 {
		t.Fatalf("phase histogram = %+v", phases.Data)
	}
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("phase")); !ok || v.AsString() == "" {
			t.Fatal("phase attribute missing")
		}
	}
	tick := findMetric(rm, "astraeus.tick.duration").Data.(metricdata.Histogram[float64])
	if tick.DataPoints[0].Count != 2 {
		t.Fatalf("tick count = %d", tick.DataPoints[0].Count)
	}
}

func TestTrafficCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.PacketIn(185)
	m.PacketIn(185)
	m.PacketIn(4)
	m.PacketOut(81)
	m.ProtocolError()
	m.PlayerJoined()
	m.PlayerJoined()
	m.PlayerLeft()
	m.NpcsSpawned(8)
	m.NpcsDespawned(3)
	m.LoginResult("ok")

	rm := collect(t, reader)
	for name, want := range map[string]int64{
		"astraeus.packets.in":      3,
		"astraeus.packets.out":     1,
		"astraeus.protocol.errors": 1,
		"astraeus.players.active":  1,
		"astraeus.npcs.active":     5,
		"astraeus.logins":          1,
	} {
		if got := sumOf(t, rm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	in := findMetric(rm, "astraeus.packets.in").Data.(metricdata.Sum[int64])
	if len(in.DataPoints) != 2 {
		t.Fatalf("opcode attribute produced %d series", len(in.DataPoints))
	}
}
