// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshtool

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/toeirei/keyrot/internal/model"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultConnectTimeout bounds network dials when no timeout is configured.
const DefaultConnectTimeout = 5 * time.Second

// HostKeys selects the host key policy for native connections.
type HostKeys struct {
	Strict     bool
	KnownHosts string // known_hosts file consulted when Strict is set.
}

// Callback returns the ssh.HostKeyCallback for the policy.
func (h HostKeys) Callback() (ssh.HostKeyCallback, error) {
	if !h.Strict {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(h.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("%w: load known hosts %s: %v", model.ErrConfigIO, h.KnownHosts, err)
	}
	return cb, nil
}

// signerFromFile reads an unencrypted private key.
func signerFromFile(keyPath string) (ssh.Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read key %s: %v", model.ErrExternalTool, keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse private key %s: %v", model.ErrExternalTool, keyPath, err)
	}
	return signer, nil
}

// dial connects and authenticates with the given methods, honouring ctx and
// timeout for the TCP connect and the handshake.
func dial(ctx context.Context, t Target, auth []ssh.AuthMethod, hostKeys HostKeys, timeout time.Duration) (*ssh.Client, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	cb, err := hostKeys.Callback()
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            t.login(),
		Auth:            auth,
		HostKeyCallback: cb,
		Timeout:         timeout,
	}
	addr := t.Addr()
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", model.ErrExternalTool, addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake with %s: %v", model.ErrExternalTool, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}
