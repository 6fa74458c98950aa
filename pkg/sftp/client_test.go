package sftp

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/sftp"

	"github.com/quocson95/sftpane/pkg/vfs"
)

// newTestClient connects a Client to an in-memory SFTP server.
func newTestClient(t *testing.T) (*Client, func()) {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()

	client, err := NewClientPipe(clientConn, clientConn)
	if err != nil {
		t.Fatalf("NewClientPipe failed: %v", err)
	}
	return client, func() {
		client.Close()
		server.Close()
	}
}

func writeRemote(t *testing.T, c *Client, p string, data []byte) {
	t.Helper()
	w, err := c.Create(p)
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", p, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write(%s) failed: %v", p, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(%s) failed: %v", p, err)
	}
}

func TestClientMkdirAndList(t *testing.T) {
	c, cleanup := newTestClient(t)
	defer cleanup()

	if err := c.Mkdir("/srv"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := c.Mkdir("/srv"); err != nil {
		t.Fatalf("Mkdir on existing directory should succeed, got %v", err)
	}
	if err := c.Mkdir("/srv/logs"); err != nil {
		t.Fatal(err)
	}
	writeRemote(t, c, "/srv/report.txt", []byte("hello"))

	entries, err := c.ReadDir("/srv")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	for _, e := range entries {
		switch e.Name {
		case "logs":
			if !e.IsDir || e.Size != 0 {
				t.Errorf("unexpected dir entry %+v", e)
			}
		case "report.txt":
			if e.IsDir || e.Size != 5 {
				t.Errorf("unexpected file entry %+v", e)
			}
		default:
			t.Errorf("unexpected entry %q", e.Name)
		}
	}
}

func TestClientMkdirOverFile(t *testing.T) {
	c, cleanup := newTestClient(t)
	defer cleanup()

	writeRemote(t, c, "/taken", []byte("x"))
	if err := c.Mkdir("/taken"); !errors.Is(err, vfs.ErrAlreadyExistsAsFile) {
		t.Fatalf("expected ErrAlreadyExistsAsFile, got %v", err)
	}
}

func TestClientReadWrite(t *testing.T) {
	c, cleanup := newTestClient(t)
	defer cleanup()

	payload := make([]byte, 100*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	writeRemote(t, c, "/data.bin", payload)

	r, err := c.Open("/data.bin")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if r.Size() != int64(len(payload)) {
		t.Errorf("expected size %d, got %d", len(payload), r.Size())
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("read %d bytes, want %d", len(got), len(payload))
	}
	for i := range got {
		if got[i] != payload[i] {
			t.Fatalf("mismatch at byte %d", i)
		}
	}
}

func TestClientNotFound(t *testing.T) {
	c, cleanup := newTestClient(t)
	defer cleanup()

	if _, err := c.ReadDir("/missing"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("ReadDir: expected ErrNotFound, got %v", err)
	}
	if _, err := c.Open("/missing.txt"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Open: expected ErrNotFound, got %v", err)
	}
	if _, err := c.Stat("/missing.txt"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Stat: expected ErrNotFound, got %v", err)
	}
}

func TestClientConnectionLost(t *testing.T) {
	c, cleanup := newTestClient(t)
	defer cleanup()

	if !c.Alive() {
		t.Fatal("client should be alive after connecting")
	}
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for c.Alive() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Alive() {
		t.Fatal("client still alive after close")
	}
	if _, err := c.ReadDir("/"); !errors.Is(err, vfs.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"connection lost code", sftp.ErrSSHFxConnectionLost, vfs.ErrConnectionLost},
		{"no connection code", sftp.ErrSSHFxNoConnection, vfs.ErrConnectionLost},
		{"unexpected eof", io.ErrUnexpectedEOF, vfs.ErrConnectionLost},
		{"disk full message", errors.New("write failed: No space left on device"), vfs.ErrDiskFull},
		{"unknown", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
