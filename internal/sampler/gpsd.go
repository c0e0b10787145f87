package sampler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// gpsd wire protocol: newline-delimited JSON over TCP. The client enables
// streaming with a WATCH command and receives TPV (time-position-velocity)
// reports.
const gpsdWatchCommand = `?WATCH={"enable":true,"json":true}` + "\n"

// GpsdProvider streams position fixes from a gpsd daemon.
type GpsdProvider struct {
	addr   string
	dialer net.Dialer
}

// NewGpsdProvider creates a provider for the gpsd daemon at addr
// (host:port, conventionally 127.0.0.1:2947).
func NewGpsdProvider(addr string) *GpsdProvider {
	return &GpsdProvider{
		addr:   addr,
		dialer: net.Dialer{Timeout: 5 * time.Second},
	}
}

// RequestPermission probes the daemon. An unreachable or refusing daemon is
// the device denying access to positioning, reported as ErrPermissionDenied.
func (p *GpsdProvider) RequestPermission(ctx context.Context) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("%w: gpsd at %s: %v", ErrPermissionDenied, p.addr, err)
	}
	conn.Close()
	return nil
}

// tpvReport is the subset of a gpsd TPV report the sampler consumes.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"` // 0/1 no fix, 2 2D, 3 3D
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Time  string  `json:"time"` // RFC 3339
}

// Watch connects to gpsd, enables JSON streaming, and forwards every report
// with a usable fix. Blocks until ctx is cancelled or the connection drops.
func (p *GpsdProvider) Watch(ctx context.Context, onFix func(Fix)) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("sampler: connect gpsd at %s: %w", p.addr, err)
	}
	defer conn.Close()

	// Unblock the read loop when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if _, err := conn.Write([]byte(gpsdWatchCommand)); err != nil {
		return fmt.Errorf("sampler: enable gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue // non-JSON or truncated line
		}
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}

		at, err := time.Parse(time.RFC3339, report.Time)
		if err != nil {
			at = time.Now()
		}
		onFix(Fix{Latitude: report.Lat, Longitude: report.Lon, Time: at})
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("sampler: gpsd stream: %w", err)
	}
	return nil
}
