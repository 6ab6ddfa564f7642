package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// responder answers probes on a loopback socket the way a server would.
func responder(t *testing.T, answers map[string]string) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if body, ok := answers[string(buf[:n])]; ok {
				_, _ = conn.WriteToUDP([]byte(body), from)
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestDiscover_CollectsBothTypes(t *testing.T) {
	addr := responder(t, map[string]string{
		"who is EmbyServer?":     `{"Address":"http://192.168.1.20:8096","Id":"emby-1","Name":"Basement"}`,
		"who is JellyfinServer?": `{"Address":"https://media.example.org:8920","Id":"jf-1","Name":"Attic"}`,
	})

	start := time.Now()
	got := discover(context.Background(), 200*time.Millisecond, addr)

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "listens for the whole window")
	assert.Equal(t, []Server{
		{ID: "jf-1", Name: "Attic", Address: "media.example.org", Port: 8920, Protocol: "https", Type: "jellyfin"},
		{ID: "emby-1", Name: "Basement", Address: "192.168.1.20", Port: 8096, Protocol: "http", Type: "emby"},
	}, got)
}

func TestDiscover_NoRepliesIsEmpty(t *testing.T) {
	addr := responder(t, nil)
	got := discover(context.Background(), 100*time.Millisecond, addr)
	assert.Empty(t, got)
}

func TestDiscover_CancelledContextReturnsEarly(t *testing.T) {
	addr := responder(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	got := discover(ctx, 5*time.Second, addr)
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseReply(t *testing.T) {
	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 7), Port: Port}
	tests := []struct {
		name string
		data string
		want Server
		ok   bool
	}{
		{
			name: "full address",
			data: `{"Address":"http://10.0.0.7:8097","Id":"a","Name":"Den"}`,
			want: Server{ID: "a", Name: "Den", Address: "10.0.0.7", Port: 8097, Protocol: "http", Type: "emby"},
			ok:   true,
		},
		{
			name: "https without port",
			data: `{"Address":"https://media.lan","Id":"a","Name":"Den"}`,
			want: Server{ID: "a", Name: "Den", Address: "media.lan", Port: 443, Protocol: "https", Type: "emby"},
			ok:   true,
		},
		{
			name: "missing address uses sender",
			data: `{"Id":"a","Name":"Den"}`,
			want: Server{ID: "a", Name: "Den", Address: "10.0.0.7", Port: 8096, Protocol: "http", Type: "emby"},
			ok:   true,
		},
		{name: "missing id", data: `{"Address":"http://10.0.0.7:8096"}`},
		{name: "not json", data: `who is EmbyServer?`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseReply([]byte(tt.data), "emby", from)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
