// Package ssh establishes the single SSH session the browser runs over.
package ssh

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// passwordAttempts matches OpenSSH's NumberOfPasswordPrompts default.
const passwordAttempts = 3

// Prompter asks the user for secrets and confirmations while connecting.
type Prompter interface {
	Password(title, description string) (string, error)
	Confirm(title, description string) (bool, error)
}

// Client manages SSH connections
type Client struct {
	config   *SSHConfig
	prompter Prompter

	mu        sync.Mutex
	client    *ssh.Client
	agentConn net.Conn
	connected bool
	lastErr   error
}

// NewClient creates a new SSH client
func NewClient(config *SSHConfig, prompter Prompter) *Client {
	return &Client{
		config:   config,
		prompter: prompter,
	}
}

// Connect establishes SSH connection
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.config.LoadPrivateKey(); err != nil {
		return fmt.Errorf("failed to load private key: %w", err)
	}

	knownHosts := c.config.KnownHostsPath
	if knownHosts == "" {
		knownHosts = DefaultKnownHostsPath()
	}
	verifier, err := newHostKeyVerifier(knownHosts, c.prompter)
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            c.authMethods(),
		HostKeyCallback: verifier.Callback,
		Timeout:         30 * time.Second,
	}

	addr := c.config.Address()
	log.Printf("[INFO] Connecting to %s", c.config.ConnectionID())
	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		c.closeAgentLocked()
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c.client = client
	c.connected = true
	go c.waitForExit(client)
	return nil
}

// authMethods builds the authentication chain: agent, public keys, then
// password and keyboard-interactive through the prompter.
func (c *Client) authMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if c.config.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				log.Printf("[WARN] Failed to reach SSH agent: %v", err)
			} else {
				c.agentConn = conn
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if signers := c.signers(); len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if c.prompter != nil {
		methods = append(methods,
			ssh.RetryableAuthMethod(ssh.PasswordCallback(func() (string, error) {
				return c.prompter.Password("Password", fmt.Sprintf("%s's password:", c.config.ConnectionID()))
			}), passwordAttempts),
			ssh.RetryableAuthMethod(ssh.KeyboardInteractive(c.challenge), passwordAttempts),
		)
	}
	return methods
}

// signers loads the explicit identity, or the default ones when none is
// given. Keys that cannot be decrypted are skipped.
func (c *Client) signers() []ssh.Signer {
	type keyFile struct {
		name    string
		content []byte
	}

	var keys []keyFile
	if len(c.config.KeyContent) > 0 {
		keys = append(keys, keyFile{name: c.config.PrivateKey, content: c.config.KeyContent})
	} else {
		for _, p := range defaultIdentityFiles() {
			content, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			keys = append(keys, keyFile{name: p, content: content})
		}
	}

	var signers []ssh.Signer
	for _, k := range keys {
		signer, err := ssh.ParsePrivateKey(k.content)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && c.prompter != nil {
			passphrase, perr := c.prompter.Password("Passphrase", fmt.Sprintf("Enter passphrase for key '%s':", k.name))
			if perr != nil {
				log.Printf("[WARN] No passphrase for %s: %v", k.name, perr)
				continue
			}
			signer, err = ssh.ParsePrivateKeyWithPassphrase(k.content, []byte(passphrase))
		}
		if err != nil {
			log.Printf("[WARN] Skipping private key %s: %v", k.name, err)
			continue
		}
		signers = append(signers, signer)
	}
	return signers
}

func (c *Client) challenge(name, instruction string, questions []string, echos []bool) ([]string, error) {
	answers := make([]string, len(questions))
	for i, q := range questions {
		title := name
		if title == "" {
			title = "Authentication"
		}
		answer, err := c.prompter.Password(title, instruction+q)
		if err != nil {
			return nil, err
		}
		answers[i] = answer
	}
	return answers, nil
}

// waitForExit marks the client disconnected once the transport is gone.
func (c *Client) waitForExit(client *ssh.Client) {
	err := client.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == client {
		c.connected = false
		c.lastErr = err
	}
	if err != nil {
		log.Printf("[WARN] SSH connection closed: %v", err)
	}
}

// IsConnected returns true if connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Err returns the error the transport ended with, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// GetRawClient returns the underlying SSH client for SFTP usage
func (c *Client) GetRawClient() *ssh.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Close closes the SSH connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	c.closeAgentLocked()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

func (c *Client) closeAgentLocked() {
	if c.agentConn != nil {
		c.agentConn.Close()
		c.agentConn = nil
	}
}
