// Package discovery finds Emby and Jellyfin servers on the local network
// with the UDP broadcast probe both servers answer on port 7359.
package discovery

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// Port is the discovery port both servers listen on.
const Port = 7359

// DefaultTimeout is how long Discover listens for replies.
const DefaultTimeout = 1750 * time.Millisecond

// Server is one discovered media server.
type Server struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"` // host only
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Type     string `json:"type"` // "emby" or "jellyfin"
}

type probe struct {
	typ     string
	message string
}

var probes = []probe{
	{typ: "emby", message: "who is EmbyServer?"},
	{typ: "jellyfin", message: "who is JellyfinServer?"},
}

// reply is the JSON body a server answers a probe with.
type reply struct {
	Address string `json:"Address"` // e.g. http://192.168.1.20:8096
	ID      string `json:"Id"`
	Name    string `json:"Name"`
}

// Discover broadcasts both probes and collects replies until timeout or ctx
// is done. Failures are logged and yield whatever was found, possibly
// nothing. The result is sorted by name.
func Discover(ctx context.Context, timeout time.Duration) []Server {
	return discover(ctx, timeout, &net.UDPAddr{IP: net.IPv4bcast, Port: Port})
}

func discover(ctx context.Context, timeout time.Duration, target *net.UDPAddr) []Server {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make([][]Server, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		g.Go(func() error {
			servers, err := send(gctx, p, target)
			if err != nil {
				slog.Debug("discovery probe failed", "type", p.typ, "error", err)
			}
			found[i] = servers
			return nil
		})
	}
	_ = g.Wait()

	var out []Server
	seen := make(map[string]bool)
	for _, servers := range found {
		for _, s := range servers {
			key := s.Type + "/" + s.ID + "/" + s.Address
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Server) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Address, b.Address), cmp.Compare(a.Type, b.Type))
	})
	return out
}

// send broadcasts one probe on its own socket, so every reply on that
// socket is known to be from that server type.
func send(ctx context.Context, p probe, target *net.UDPAddr) ([]Server, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.WriteToUDP([]byte(p.message), target); err != nil {
		return nil, err
	}

	var servers []Server
	buf := make([]byte, 4096)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return servers, nil
			}
			return servers, err
		}
		s, ok := parseReply(buf[:n], p.typ, from)
		if !ok {
			slog.Debug("ignoring discovery reply", "from", from.String(), "type", p.typ)
			continue
		}
		servers = append(servers, s)
	}
}

// parseReply decodes a server's answer. A missing or relative Address falls
// back to the sender's IP on the default port.
func parseReply(data []byte, typ string, from *net.UDPAddr) (Server, bool) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil || r.ID == "" {
		return Server{}, false
	}
	s := Server{ID: r.ID, Name: r.Name, Type: typ, Protocol: "http", Port: 8096}
	if from != nil {
		s.Address = from.IP.String()
	}

	if u, err := url.Parse(r.Address); err == nil && u.Hostname() != "" {
		s.Address = u.Hostname()
		if u.Scheme == "https" {
			s.Protocol = "https"
			s.Port = 443
		}
		if port, err := strconv.Atoi(u.Port()); err == nil {
			s.Port = port
		}
	}
	if s.Address == "" {
		return Server{}, false
	}
	return s, true
}
