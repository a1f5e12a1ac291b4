package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/sisbarc/camshell/internal/storage"
)

// DefaultBrowseTimeout matches the firmware's own query window.
const DefaultBrowseTimeout = 5 * time.Second

// Browser lists cameras currently answering on the network.
type Browser interface {
	Browse(ctx context.Context) ([]storage.Device, error)
}

// MDNSBrowser queries ServiceType over multicast DNS.
type MDNSBrowser struct {
	Timeout time.Duration
	Logger  *slog.Logger

	// query is mdns.QueryContext outside tests.
	query func(ctx context.Context, p *mdns.QueryParam) error
	now   func() time.Time
}

// NewMDNSBrowser returns a browser waiting timeout for answers.
func NewMDNSBrowser(timeout time.Duration, logger *slog.Logger) *MDNSBrowser {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MDNSBrowser{
		Timeout: timeout,
		Logger:  logger,
		query:   mdns.QueryContext,
		now:     time.Now,
	}
}

// Browse collects answers until the timeout. Entries repeated across
// interfaces are reported once.
func (b *MDNSBrowser) Browse(ctx context.Context) ([]storage.Device, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(ServiceType)
	params.Domain = domain
	params.Timeout = b.Timeout
	params.Entries = entries
	params.DisableIPv6 = true

	seen := make(map[string]bool)
	var devices []storage.Device
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			d, ok := deviceFromEntry(e, b.now().UTC())
			if !ok || seen[d.Instance] {
				continue
			}
			seen[d.Instance] = true
			devices = append(devices, d)
		}
	}()

	err := b.query(ctx, params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", ServiceType, err)
	}

	b.Logger.Debug("mdns browse finished", slog.Int("devices", len(devices)))
	return devices, nil
}

// deviceFromEntry converts an answer; entries for other services are
// rejected.
func deviceFromEntry(e *mdns.ServiceEntry, seen time.Time) (storage.Device, bool) {
	if e == nil {
		return storage.Device{}, false
	}
	suffix := "." + ServiceType + "." + domain + "."
	if !strings.HasSuffix(e.Name, suffix) {
		return storage.Device{}, false
	}
	instance := unescape(strings.TrimSuffix(e.Name, suffix))

	var addr string
	switch {
	case e.AddrV4 != nil:
		addr = e.AddrV4.String()
	case e.AddrV6 != nil:
		addr = e.AddrV6.String()
	}

	info := ParseTXT(e.InfoFields)
	return storage.Device{
		Instance:   instance,
		Host:       e.Host,
		Addr:       addr,
		Port:       e.Port,
		Board:      info.Board,
		Model:      info.Model,
		StreamPort: info.StreamPort,
		FrameSize:  info.FrameSize,
		PixFormat:  info.PixFormat,
		LastSeen:   seen,
	}, true
}

// unescape drops DNS label escaping from instance names.
func unescape(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
