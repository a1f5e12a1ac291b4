// Package device talks to ESP32 camera boards over their HTTP API and
// provides an emulator of that API for development without hardware.
package device

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Firmware API paths.
const (
	PathSystemInfo = "/api/v1/system/info"
	PathStatus     = "/api/v1/cam/status"
	PathCapture    = "/api/v1/cam/capture"
	PathStream     = "/api/v1/cam/stream"
	PathStatusFeed = "/api/v1/cam/ws"
)

// StreamBoundary separates MJPEG parts on the stream endpoint.
const StreamBoundary = "123456789000000000000987654321"

// HeaderTimestamp carries a frame's capture time as seconds.microseconds.
const HeaderTimestamp = "X-Timestamp"

// SystemInfo is the response of the system info endpoint.
type SystemInfo struct {
	Chip  ChipInfo  `json:"chip"`
	Flash FlashInfo `json:"flash"`
}

// ChipInfo describes the SoC.
type ChipInfo struct {
	Name     string `json:"name"`
	Cores    int    `json:"cores"`
	Features string `json:"features"`
	Revision int    `json:"revision"`
}

// FlashInfo describes the SPI flash.
type FlashInfo struct {
	Size string `json:"size"`
	Type string `json:"type"`
}

// Status mirrors the sensor settings reported by the camera.
type Status struct {
	Board         string `json:"board"`
	XCLK          int    `json:"xclk"`
	PixFormat     int    `json:"pixformat"`
	FrameSize     int    `json:"framesize"`
	Quality       int    `json:"quality"`
	Brightness    int    `json:"brightness"`
	Contrast      int    `json:"contrast"`
	Saturation    int    `json:"saturation"`
	Sharpness     int    `json:"sharpness"`
	SpecialEffect int    `json:"special_effect"`
	WBMode        int    `json:"wb_mode"`
	AWB           int    `json:"awb"`
	AWBGain       int    `json:"awb_gain"`
	AEC           int    `json:"aec"`
	AEC2          int    `json:"aec2"`
	AELevel       int    `json:"ae_level"`
	AECValue      int    `json:"aec_value"`
	AGC           int    `json:"agc"`
	AGCGain       int    `json:"agc_gain"`
	GainCeiling   int    `json:"gainceiling"`
	BPC           int    `json:"bpc"`
	WPC           int    `json:"wpc"`
	RawGMA        int    `json:"raw_gma"`
	LENC          int    `json:"lenc"`
	HMirror       int    `json:"hmirror"`
	DCW           int    `json:"dcw"`
	Colorbar      int    `json:"colorbar"`
	LEDIntensity  int    `json:"led_intensity"`
}

// Frame is one JPEG image and the device uptime at which it was taken.
type Frame struct {
	JPEG      []byte
	Timestamp time.Duration
}

// FormatTimestamp renders d the way the firmware does: seconds, a dot, and
// six digits of microseconds.
func FormatTimestamp(d time.Duration) string {
	us := d.Microseconds()
	return fmt.Sprintf("%d.%06d", us/1e6, us%1e6)
}

// ParseTimestamp parses a value produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Duration, error) {
	secPart, usPart, ok := strings.Cut(s, ".")
	if !ok {
		usPart = "0"
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	us, err := strconv.ParseInt(usPart, 10, 64)
	if err != nil || us < 0 || us >= 1e6 {
		return 0, fmt.Errorf("parsing timestamp %q: bad microseconds", s)
	}
	return time.Duration(sec)*time.Second + time.Duration(us)*time.Microsecond, nil
}
