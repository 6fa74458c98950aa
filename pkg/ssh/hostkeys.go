package ssh

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrHostKeyRejected is returned when the user declines an unknown host key.
var ErrHostKeyRejected = errors.New("host key rejected by user")

// HostKeyChangedError reports a host whose key no longer matches known_hosts.
type HostKeyChangedError struct {
	Host        string
	Fingerprint string
	KnownHosts  string
	Line        int
}

func (e *HostKeyChangedError) Error() string {
	return fmt.Sprintf("remote host identification has changed for %s (offending key in %s:%d, server sent %s); "+
		"someone could be eavesdropping on you right now",
		e.Host, e.KnownHosts, e.Line, e.Fingerprint)
}

// hostKeyVerifier checks server keys against a known_hosts file and asks the
// user before trusting a host it has never seen.
type hostKeyVerifier struct {
	path     string
	prompter Prompter

	mu sync.Mutex
}

func newHostKeyVerifier(path string, prompter Prompter) (*hostKeyVerifier, error) {
	if path == "" {
		return nil, errors.New("known_hosts path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
		f.Close()
	}
	return &hostKeyVerifier{path: path, prompter: prompter}, nil
}

// Callback is the ssh.HostKeyCallback for a connection.
func (v *hostKeyVerifier) Callback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Reload on every call so keys added by a previous prompt are seen.
	check, err := knownhosts.New(v.path)
	if err != nil {
		return fmt.Errorf("failed to read known_hosts: %w", err)
	}

	err = check(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) {
		return err
	}

	fingerprint := ssh.FingerprintSHA256(key)
	if len(keyErr.Want) > 0 {
		want := keyErr.Want[0]
		log.Printf("[ERROR] Host key mismatch for %s: got %s", hostname, fingerprint)
		return &HostKeyChangedError{
			Host:        hostname,
			Fingerprint: fingerprint,
			KnownHosts:  want.Filename,
			Line:        want.Line,
		}
	}

	if v.prompter == nil {
		return fmt.Errorf("unknown host %s (%s) and no way to confirm it", hostname, fingerprint)
	}
	question := fmt.Sprintf("The authenticity of host '%s' can't be established.\n%s key fingerprint is %s.",
		hostname, key.Type(), fingerprint)
	ok, err := v.prompter.Confirm("Unknown host", question+"\nWould you like to add it?")
	if err != nil {
		return fmt.Errorf("failed to confirm host key: %w", err)
	}
	if !ok {
		return ErrHostKeyRejected
	}

	if err := v.add(hostname, remote, key); err != nil {
		// The user accepted the key for this session even if it cannot be saved.
		log.Printf("[WARN] Failed to save host key for %s: %v", hostname, err)
		return nil
	}
	log.Printf("[INFO] Added %s (%s) to %s", hostname, fingerprint, v.path)
	return nil
}

func (v *hostKeyVerifier) add(hostname string, remote net.Addr, key ssh.PublicKey) error {
	addresses := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if ra := knownhosts.Normalize(remote.String()); ra != addresses[0] {
			addresses = append(addresses, ra)
		}
	}

	f, err := os.OpenFile(v.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, knownhosts.Line(addresses, key))
	return err
}
