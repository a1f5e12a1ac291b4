package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Board and sensor names reported by the emulator.
const (
	DefaultBoard = "AI-THINKER"
	DefaultModel = "OV2640"
)

const (
	defaultFramerate  = 60
	defaultFeedPeriod = time.Second
)

// DefaultStatus is the sensor state of a freshly booted board.
func DefaultStatus() Status {
	return Status{
		Board:        DefaultBoard,
		XCLK:         20,
		PixFormat:    4,
		FrameSize:    8,
		Quality:      12,
		AWB:          1,
		AWBGain:      1,
		AEC:          1,
		AECValue:     168,
		AGC:          1,
		BPC:          0,
		WPC:          1,
		RawGMA:       1,
		LENC:         1,
		LEDIntensity: -1,
	}
}

// EmulatorOption configures an Emulator.
type EmulatorOption func(*Emulator)

// WithFrameSource replaces the synthetic test pattern.
func WithFrameSource(src FrameSource) EmulatorOption {
	return func(e *Emulator) { e.frames = src }
}

// WithFramerate sets the stream rate in frames per second.
func WithFramerate(fps int) EmulatorOption {
	return func(e *Emulator) {
		if fps > 0 {
			e.framerate = fps
		}
	}
}

// WithFeedPeriod sets how often the status feed pushes.
func WithFeedPeriod(d time.Duration) EmulatorOption {
	return func(e *Emulator) {
		if d > 0 {
			e.feedPeriod = d
		}
	}
}

// WithEmulatorLogger sets the logger.
func WithEmulatorLogger(l *slog.Logger) EmulatorOption {
	return func(e *Emulator) { e.logger = l }
}

// Emulator serves the camera firmware's HTTP API from a synthetic source.
type Emulator struct {
	frames     FrameSource
	framerate  int
	feedPeriod time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	status Status
	info   SystemInfo
}

// NewEmulator returns an emulator with the default status and a 320x240
// synthetic stream.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		frames:     NewSynthetic(320, 240, 80),
		framerate:  defaultFramerate,
		feedPeriod: defaultFeedPeriod,
		logger:     slog.Default(),
		status:     DefaultStatus(),
		info: SystemInfo{
			Chip:  ChipInfo{Name: "ESP32", Cores: 2, Features: "WiFi/BT/BLE", Revision: 1},
			Flash: FlashInfo{Size: "4MB", Type: "external"},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns a copy of the current sensor state.
func (e *Emulator) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// SetStatus replaces the sensor state; the feed pushes it on its next tick.
func (e *Emulator) SetStatus(s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}

// Handler returns the emulator's router.
func (e *Emulator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		ExposedHeaders: []string{HeaderTimestamp, "X-Framerate"},
	}))

	r.Get(PathSystemInfo, e.handleSystemInfo)
	r.Get(PathStatus, e.handleStatus)
	r.Get(PathCapture, e.handleCapture)
	r.Get(PathStream, e.handleStream)
	r.Get(PathStatusFeed, e.handleStatusFeed)
	return r
}

// Run serves the emulator on addr until ctx is canceled.
func (e *Emulator) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.logger.Info("shutting down emulator")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (e *Emulator) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	e.mu.RLock()
	info := e.info
	e.mu.RUnlock()
	writeJSON(w, info)
}

func (e *Emulator) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, e.Status())
}

func (e *Emulator) handleCapture(w http.ResponseWriter, _ *http.Request) {
	f, err := e.frames.Frame()
	if err != nil {
		e.logger.Error("capture failed", slog.String("error", err.Error()))
		http.Error(w, "camera capture failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", "inline; filename=capture.jpg")
	w.Header().Set(HeaderTimestamp, FormatTimestamp(f.Timestamp))
	_, _ = w.Write(f.JPEG)
}

func (e *Emulator) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+StreamBoundary)
	w.Header().Set("X-Framerate", strconv.Itoa(e.framerate))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(time.Second / time.Duration(e.framerate))
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		f, err := e.frames.Frame()
		if err != nil {
			e.logger.Error("stream frame failed", slog.String("error", err.Error()))
			return
		}
		if _, err := fmt.Fprintf(w, "\r\n--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n%s: %s\r\n\r\n",
			StreamBoundary, len(f.JPEG), HeaderTimestamp, FormatTimestamp(f.Timestamp)); err != nil {
			return
		}
		if _, err := w.Write(f.JPEG); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleStatusFeed pushes the status as JSON on every tick until the client
// goes away.
func (e *Emulator) handleStatusFeed(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		e.logger.Warn("status feed handshake failed", slog.String("error", err.Error()))
		return
	}
	defer c.CloseNow()

	ctx := c.CloseRead(r.Context())
	ticker := time.NewTicker(e.feedPeriod)
	defer ticker.Stop()

	for {
		if err := wsjson.Write(ctx, c, e.Status()); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
