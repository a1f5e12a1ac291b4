// Package discovery finds camera boards on the local network over mDNS and
// keeps the device store in sync with what it sees.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service the camera firmware registers.
const ServiceType = "_esp-cam._tcp"

const domain = "local"

// TXT record keys.
const (
	txtBoard      = "board"
	txtModel      = "model"
	txtStreamPort = "stream_port"
	txtFrameSize  = "framesize"
	txtPixFormat  = "pixformat"
)

// Info is the metadata a camera publishes in its TXT record.
type Info struct {
	Board      string
	Model      string
	StreamPort int
	FrameSize  int
	PixFormat  int
}

// TXT renders info as key=value TXT fields in the firmware's order.
func (i Info) TXT() []string {
	return []string{
		txtBoard + "=" + i.Board,
		txtModel + "=" + i.Model,
		txtStreamPort + "=" + strconv.Itoa(i.StreamPort),
		txtFrameSize + "=" + strconv.Itoa(i.FrameSize),
		txtPixFormat + "=" + strconv.Itoa(i.PixFormat),
	}
}

// ParseTXT reads the fields TXT produces. Unknown keys are ignored and
// malformed numbers are left at zero.
func ParseTXT(fields []string) Info {
	var info Info
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch k {
		case txtBoard:
			info.Board = v
		case txtModel:
			info.Model = v
		case txtStreamPort:
			info.StreamPort, _ = strconv.Atoi(v)
		case txtFrameSize:
			info.FrameSize, _ = strconv.Atoi(v)
		case txtPixFormat:
			info.PixFormat, _ = strconv.Atoi(v)
		}
	}
	return info
}

// InstanceName builds the default instance name the firmware uses when no
// host name is configured: board, model, and the last three MAC octets.
func InstanceName(board, model string, mac net.HardwareAddr) string {
	if len(mac) < 3 {
		return board + "-" + model
	}
	n := len(mac)
	return fmt.Sprintf("%s-%s-%02X%02X%02X", board, model, mac[n-3], mac[n-2], mac[n-1])
}

// Advertisement is a running mDNS responder.
type Advertisement struct {
	server *mdns.Server
}

// Advertise announces an instance of ServiceType on port. With nil ips the
// addresses of the local host name are used.
func Advertise(instance string, port int, info Info, ips []net.IP) (*Advertisement, error) {
	svc, err := mdns.NewMDNSService(instance, ServiceType, domain+".", "", port, ips, info.TXT())
	if err != nil {
		return nil, fmt.Errorf("building mdns service %q: %w", instance, err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("starting mdns responder: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Close stops answering queries.
func (a *Advertisement) Close() error {
	return a.server.Shutdown()
}
