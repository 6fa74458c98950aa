// Package sftp implements the remote side of the browser on top of an SFTP
// subsystem session.
package sftp

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path"
	"strings"
	"sync/atomic"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/quocson95/sftpane/pkg/vfs"
)

// Client is the remote vfs.FileSystem.
type Client struct {
	vfs.SlashPaths

	sftpClient *sftp.Client
	lost       atomic.Bool
}

// NewClient opens the SFTP subsystem on an established SSH connection.
func NewClient(sshClient *ssh.Client, opts ...sftp.ClientOption) (*Client, error) {
	sftpClient, err := sftp.NewClient(sshClient, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return newClient(sftpClient), nil
}

// NewClientPipe speaks SFTP over an arbitrary stream pair.
func NewClientPipe(rd io.Reader, wr io.WriteCloser, opts ...sftp.ClientOption) (*Client, error) {
	sftpClient, err := sftp.NewClientPipe(rd, wr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return newClient(sftpClient), nil
}

func newClient(sftpClient *sftp.Client) *Client {
	c := &Client{sftpClient: sftpClient}
	go func() {
		err := sftpClient.Wait()
		c.lost.Store(true)
		if err != nil {
			log.Printf("[WARN] SFTP session ended: %v", err)
		}
	}()
	return c
}

func (c *Client) Label() string { return "Remote" }

// Alive reports whether the SFTP session is still usable.
func (c *Client) Alive() bool {
	return !c.lost.Load()
}

// ReadDir lists dir, resolving symbolic links the same way the local side does.
func (c *Client) ReadDir(dir string) ([]vfs.Entry, error) {
	infos, err := c.sftpClient.ReadDir(dir)
	if err != nil {
		return nil, c.wrap("readdir", dir, err)
	}

	entries := make([]vfs.Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if !vfs.ValidName(name) {
			log.Printf("[WARN] Ignoring remote entry with unsafe name %q in %s", name, dir)
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if target, err := c.sftpClient.Stat(path.Join(dir, name)); err == nil {
				e := vfs.FromFileInfo(name, target)
				e.Symlink = true
				entries = append(entries, e)
				continue
			}
		}
		entries = append(entries, vfs.FromFileInfo(name, info))
	}
	return entries, nil
}

func (c *Client) Stat(p string) (vfs.Entry, error) {
	info, err := c.sftpClient.Stat(p)
	if err != nil {
		return vfs.Entry{}, c.wrap("stat", p, err)
	}
	return vfs.FromFileInfo(path.Base(p), info), nil
}

func (c *Client) Open(p string) (vfs.Reader, error) {
	f, err := c.sftpClient.Open(p)
	if err != nil {
		return nil, c.wrap("open", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, c.wrap("stat", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, &vfs.PathError{Op: "open", Path: p, Err: errors.New("is a directory")}
	}
	return &remoteReader{client: c, file: f, size: info.Size()}, nil
}

func (c *Client) Create(p string) (io.WriteCloser, error) {
	f, err := c.sftpClient.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, c.wrap("create", p, err)
	}
	return &remoteWriter{client: c, file: f}, nil
}

// Mkdir creates p, treating an existing directory as success.
func (c *Client) Mkdir(p string) error {
	err := c.sftpClient.Mkdir(p)
	if err == nil {
		return nil
	}
	// Servers disagree on the status code for an existing target, so look.
	if info, statErr := c.sftpClient.Stat(p); statErr == nil {
		if info.IsDir() {
			return nil
		}
		return &vfs.PathError{Op: "mkdir", Path: p, Kind: vfs.ErrAlreadyExistsAsFile, Err: err}
	}
	return c.wrap("mkdir", p, err)
}

// Getwd returns the directory the server starts sessions in.
func (c *Client) Getwd() (string, error) {
	wd, err := c.sftpClient.Getwd()
	if err != nil {
		return "", c.wrap("getwd", ".", err)
	}
	return wd, nil
}

// Close closes the SFTP session.
func (c *Client) Close() error {
	c.lost.Store(true)
	return c.sftpClient.Close()
}

func (c *Client) wrap(op, p string, err error) error {
	return vfs.Wrap(op, p, err, c.classify)
}

func (c *Client) classify(err error) error {
	if c.lost.Load() {
		return vfs.ErrConnectionLost
	}
	return classify(err)
}

func classify(err error) error {
	var status *sftp.StatusError
	if errors.As(err, &status) {
		switch status.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return vfs.ErrNotFound
		case sftp.ErrSSHFxPermissionDenied:
			return vfs.ErrPermission
		case sftp.ErrSSHFxNoConnection, sftp.ErrSSHFxConnectionLost:
			return vfs.ErrConnectionLost
		}
	}

	switch {
	case errors.Is(err, sftp.ErrSSHFxConnectionLost),
		errors.Is(err, sftp.ErrSSHFxNoConnection),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return vfs.ErrConnectionLost
	case errors.Is(err, os.ErrNotExist), errors.Is(err, sftp.ErrSSHFxNoSuchFile):
		return vfs.ErrNotFound
	case errors.Is(err, os.ErrPermission), errors.Is(err, sftp.ErrSSHFxPermissionDenied):
		return vfs.ErrPermission
	}

	// Fallback for servers that only report these as generic failures.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no space"), strings.Contains(msg, "quota"):
		return vfs.ErrDiskFull
	case strings.Contains(msg, "does not exist"):
		return vfs.ErrNotFound
	}
	return nil
}

type remoteReader struct {
	client *Client
	file   *sftp.File
	size   int64
}

func (r *remoteReader) Size() int64 { return r.size }

func (r *remoteReader) Read(b []byte) (int, error) {
	n, err := r.file.Read(b)
	if err != nil && err != io.EOF {
		err = r.client.wrap("read", r.file.Name(), err)
	}
	return n, err
}

func (r *remoteReader) Close() error {
	return r.client.wrap("close", r.file.Name(), r.file.Close())
}

type remoteWriter struct {
	client *Client
	file   *sftp.File
}

func (w *remoteWriter) Write(b []byte) (int, error) {
	n, err := w.file.Write(b)
	if err != nil {
		err = w.client.wrap("write", w.file.Name(), err)
	}
	return n, err
}

func (w *remoteWriter) Close() error {
	return w.client.wrap("close", w.file.Name(), w.file.Close())
}
