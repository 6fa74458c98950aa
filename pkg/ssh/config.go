package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPort is the standard SSH port.
const DefaultPort = 22

// SSHConfig represents SSH connection configuration. Secrets are never
// stored here; they are requested through a Prompter while connecting.
type SSHConfig struct {
	Host           string
	Port           int
	Username       string
	PrivateKey     string // Path to private key file or PEM content
	KeyContent     []byte // Loaded private key content
	KnownHostsPath string
	UseAgent       bool
}

// Destination is a parsed [user@]host[:port] argument.
type Destination struct {
	User string
	Host string
	Port int // 0 when not given
}

// ParseDestination splits a [user@]host[:port] string. IPv6 literals must
// be bracketed when a port is given.
func ParseDestination(s string) (Destination, error) {
	var d Destination
	if s == "" {
		return d, errors.New("destination is required")
	}

	if at := strings.LastIndex(s, "@"); at >= 0 {
		d.User = s[:at]
		s = s[at+1:]
		if d.User == "" {
			return d, errors.New("empty user name in destination")
		}
	}

	host, port, err := net.SplitHostPort(s)
	switch {
	case err == nil:
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return d, fmt.Errorf("invalid port %q", port)
		}
		d.Host, d.Port = host, p
	case strings.Count(s, ":") > 1 && !strings.HasPrefix(s, "["):
		// Bare IPv6 literal.
		d.Host = s
	default:
		d.Host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}

	if d.Host == "" {
		return d, errors.New("host is required")
	}
	return d, nil
}

// Validate checks if the SSH configuration is valid
func (c *SSHConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port number")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// LoadPrivateKey loads the private key from file if PrivateKey is a file path
func (c *SSHConfig) LoadPrivateKey() error {
	if c.PrivateKey == "" {
		return nil
	}

	if strings.HasPrefix(c.PrivateKey, "-----") {
		c.KeyContent = []byte(c.PrivateKey)
		return nil
	}

	content, err := os.ReadFile(expandHome(c.PrivateKey))
	if err != nil {
		return err
	}
	c.KeyContent = content
	return nil
}

// Address returns the host:port pair to dial.
func (c *SSHConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ConnectionID returns a unique identifier for this connection
func (c *SSHConfig) ConnectionID() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Address())
}

// DefaultKnownHostsPath returns ~/.ssh/known_hosts.
func DefaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// defaultIdentityFiles lists the private keys OpenSSH tries by default.
func defaultIdentityFiles() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var files []string
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	return files
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
