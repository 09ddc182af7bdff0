// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshtool

import (
	"fmt"
	"net"
	"os/user"
	"strconv"
	"strings"

	"github.com/toeirei/keyrot/internal/model"
)

// Target is a remote endpoint. Host may be an SSH config alias for the exec
// backend; the native backend dials it as a hostname.
type Target struct {
	User string
	Host string
	Port int
}

// ParseTarget parses "[user@]host[:port]".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	var t Target
	if i := strings.LastIndex(s, "@"); i >= 0 {
		t.User, s = s[:i], s[i+1:]
		if t.User == "" {
			return Target{}, fmt.Errorf("%w: empty user in target", model.ErrInvalidInput)
		}
	}
	if h, p, err := net.SplitHostPort(s); err == nil {
		port, perr := strconv.Atoi(p)
		if perr != nil || port <= 0 || port > 65535 {
			return Target{}, fmt.Errorf("%w: invalid port %q", model.ErrInvalidInput, p)
		}
		s, t.Port = h, port
	}
	if s == "" || strings.ContainsAny(s, " \t/") {
		return Target{}, fmt.Errorf("%w: invalid host %q", model.ErrInvalidInput, s)
	}
	t.Host = s
	return t, nil
}

// TargetFromProfile converts a connection profile into a Target.
func TargetFromProfile(p model.ConnectionProfile) Target {
	return Target{User: p.Username, Host: p.Hostname, Port: p.EffectivePort()}
}

// Destination renders "user@host" or "host".
func (t Target) Destination() string {
	if t.User == "" {
		return t.Host
	}
	return t.User + "@" + t.Host
}

// String renders the target including a non-default port.
func (t Target) String() string {
	if t.Port != 0 && t.Port != model.DefaultSSHPort {
		return t.Destination() + ":" + strconv.Itoa(t.Port)
	}
	return t.Destination()
}

// Addr returns host:port for dialing, defaulting the port to 22.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = model.DefaultSSHPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// login returns the user to authenticate as, falling back to the local user.
func (t Target) login() string {
	if t.User != "" {
		return t.User
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "root"
}
