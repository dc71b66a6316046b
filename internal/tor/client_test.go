package tor

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "valid address", address: "127.0.0.1:9050", wantErr: false},
		{name: "high port", address: "localhost:65535", wantErr: false},
		{name: "missing port", address: "127.0.0.1", wantErr: true},
		{name: "empty host", address: ":9050", wantErr: true},
		{name: "port zero", address: "127.0.0.1:0", wantErr: true},
		{name: "port out of range", address: "127.0.0.1:70000", wantErr: true},
		{name: "not a number", address: "127.0.0.1:abc", wantErr: true},
		{name: "empty", address: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.address, time.Second)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

func TestNewProxyPool(t *testing.T) {
	t.Parallel()

	t.Run("empty pool fails", func(t *testing.T) {
		t.Parallel()
		if _, err := NewProxyPool(nil, time.Second); err != ErrEmptyProxyPool {
			t.Errorf("NewProxyPool(nil) error = %v, want ErrEmptyProxyPool", err)
		}
	})

	t.Run("invalid address fails", func(t *testing.T) {
		t.Parallel()
		if _, err := NewProxyPool([]string{"127.0.0.1:9050", "bogus"}, time.Second); err == nil {
			t.Error("NewProxyPool() error = nil, want error")
		}
	})

	t.Run("pick stays within pool", func(t *testing.T) {
		t.Parallel()
		addrs := []string{"127.0.0.1:9100", "127.0.0.1:9101", "127.0.0.1:9102"}
		pool, err := NewProxyPool(addrs, time.Second)
		if err != nil {
			t.Fatalf("NewProxyPool() error = %v", err)
		}
		if pool.Size() != 3 {
			t.Fatalf("Size() = %d, want 3", pool.Size())
		}
		valid := map[string]bool{}
		for _, a := range addrs {
			valid[a] = true
		}
		for range 50 {
			httpClient, addr := pool.RandomHTTPClient()
			if httpClient == nil {
				t.Fatal("RandomHTTPClient() returned nil client")
			}
			if !valid[addr] {
				t.Fatalf("RandomHTTPClient() address = %q, not in pool", addr)
			}
		}
	})
}

// fakeSOCKS5Server answers one handshake the way a Tor SOCKS port would:
// accepts no-auth, then replies to CONNECT with host-unreachable.
func fakeSOCKS5Server(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		greeting := make([]byte, 3)
		if _, err := io.ReadFull(conn, greeting); err != nil {
			return
		}
		if _, err := conn.Write([]byte{socks5Version, socks5AuthNone}); err != nil {
			return
		}

		header := make([]byte, 5)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		rest := make([]byte, int(header[4])+2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}
		// Reply 0x04 (host unreachable) with a zero bind address.
		conn.Write([]byte{socks5Version, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0}) //nolint:errcheck // test server
	}()

	return ln.Addr().String()
}

func TestClientCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("socks5 proxy is detected", func(t *testing.T) {
		t.Parallel()
		addr := fakeSOCKS5Server(t)
		c, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := c.CheckConnection(context.Background()); got != ProxyStatusOK {
			t.Errorf("CheckConnection() = %v, want ProxyStatusOK", got)
		}
	})

	t.Run("closed port cannot connect", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		c, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := c.CheckConnection(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("CheckConnection() = %v, want ProxyStatusCannotConnect", got)
		}
	})

	t.Run("non-socks server is wrong type", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		t.Cleanup(func() { ln.Close() })
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			buf := make([]byte, 3)
			io.ReadFull(conn, buf)                                           //nolint:errcheck // test server
			conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))           //nolint:errcheck // test server
		}()

		c, err := NewClient(ln.Addr().String(), time.Second)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := c.CheckConnection(context.Background()); got != ProxyStatusWrongType {
			t.Errorf("CheckConnection() = %v, want ProxyStatusWrongType", got)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	if ProxyStatusOK.Error() != nil {
		t.Errorf("ProxyStatusOK.Error() = %v, want nil", ProxyStatusOK.Error())
	}
	if ProxyStatusTimeout.Error() != ErrProxyTimeout {
		t.Errorf("ProxyStatusTimeout.Error() = %v, want ErrProxyTimeout", ProxyStatusTimeout.Error())
	}
	if ProxyStatusWrongType.String() != "wrong type (not Tor)" {
		t.Errorf("String() = %q", ProxyStatusWrongType.String())
	}
}
