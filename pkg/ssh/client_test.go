package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

type fakePrompter struct {
	password  string
	confirm   bool
	confirms  int
	passwords int
}

func (p *fakePrompter) Password(title, description string) (string, error) {
	p.passwords++
	return p.password, nil
}

func (p *fakePrompter) Confirm(title, description string) (bool, error) {
	p.confirms++
	return p.confirm, nil
}

func newHostKey(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return signer
}

func TestHostKeyVerifier(t *testing.T) {
	knownHosts := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	key := newHostKey(t).PublicKey()
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}

	t.Run("unknown host rejected", func(t *testing.T) {
		prompter := &fakePrompter{confirm: false}
		v, err := newHostKeyVerifier(knownHosts, prompter)
		if err != nil {
			t.Fatal(err)
		}
		if err := v.Callback("server:22", addr, key); !errors.Is(err, ErrHostKeyRejected) {
			t.Fatalf("expected ErrHostKeyRejected, got %v", err)
		}
		if prompter.confirms != 1 {
			t.Errorf("expected one confirmation prompt, got %d", prompter.confirms)
		}
	})

	t.Run("unknown host accepted and remembered", func(t *testing.T) {
		prompter := &fakePrompter{confirm: true}
		v, err := newHostKeyVerifier(knownHosts, prompter)
		if err != nil {
			t.Fatal(err)
		}
		if err := v.Callback("server:22", addr, key); err != nil {
			t.Fatalf("accepted key failed: %v", err)
		}
		if err := v.Callback("server:22", addr, key); err != nil {
			t.Fatalf("remembered key failed: %v", err)
		}
		if prompter.confirms != 1 {
			t.Errorf("expected a single prompt, got %d", prompter.confirms)
		}

		data, err := os.ReadFile(knownHosts)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "server") {
			t.Errorf("known_hosts does not mention the host: %q", data)
		}
	})

	t.Run("changed key refused", func(t *testing.T) {
		prompter := &fakePrompter{confirm: true}
		v, err := newHostKeyVerifier(knownHosts, prompter)
		if err != nil {
			t.Fatal(err)
		}
		other := newHostKey(t).PublicKey()
		err = v.Callback("server:22", addr, other)
		var changed *HostKeyChangedError
		if !errors.As(err, &changed) {
			t.Fatalf("expected HostKeyChangedError, got %v", err)
		}
		if prompter.confirms != 0 {
			t.Error("a changed key must not be offered for confirmation")
		}
	})
}

// startServer runs a password-only SSH server that accepts one connection.
func startServer(t *testing.T, password string) (string, chan net.Conn) {
	t.Helper()

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if conn.User() == "tester" && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(newHostKey(t))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- conn
		_, chans, reqs, err := ssh.NewServerConn(conn, config)
		if err != nil {
			return
		}
		go ssh.DiscardRequests(reqs)
		for ch := range chans {
			ch.Reject(ssh.Prohibited, "no channels in this test")
		}
	}()
	return listener.Addr().String(), accepted
}

func TestClientConnect(t *testing.T) {
	addr, accepted := startServer(t, "secret")
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	prompter := &fakePrompter{password: "secret", confirm: true}
	client := NewClient(&SSHConfig{
		Host:           host,
		Port:           port,
		Username:       "tester",
		KnownHostsPath: filepath.Join(t.TempDir(), "known_hosts"),
	}, prompter)

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if !client.IsConnected() || client.GetRawClient() == nil {
		t.Fatal("client should be connected")
	}
	if prompter.confirms != 1 {
		t.Errorf("expected the new host key to be confirmed once, got %d", prompter.confirms)
	}

	// Dropping the server side must be noticed without any client traffic.
	(<-accepted).Close()
	deadline := time.Now().Add(5 * time.Second)
	for client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if client.IsConnected() {
		t.Fatal("client still reports connected after the server went away")
	}
}

func TestClientConnectWrongPassword(t *testing.T) {
	addr, _ := startServer(t, "secret")
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	prompter := &fakePrompter{password: "wrong", confirm: true}
	client := NewClient(&SSHConfig{
		Host:           host,
		Port:           port,
		Username:       "tester",
		KnownHostsPath: filepath.Join(t.TempDir(), "known_hosts"),
	}, prompter)

	if err := client.Connect(); err == nil {
		client.Close()
		t.Fatal("expected authentication failure")
	}
	if client.IsConnected() {
		t.Error("client must not report connected after a failed login")
	}
}

func TestClientConnectLoadsIdentity(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "id_missing")
	cfg := &SSHConfig{
		Host:           "127.0.0.1",
		Port:           22,
		Username:       "tester",
		PrivateKey:     missing,
		KnownHostsPath: filepath.Join(t.TempDir(), "known_hosts"),
	}
	client := NewClient(cfg, &fakePrompter{})

	err := client.Connect()
	if err == nil {
		client.Close()
		t.Fatal("expected the missing identity file to fail the connection")
	}
	if !errors.Is(err, os.ErrNotExist) || !strings.Contains(err.Error(), "private key") {
		t.Errorf("unexpected error %v", err)
	}
	if client.IsConnected() {
		t.Error("client must not report connected")
	}
}
