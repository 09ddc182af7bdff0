// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Uploader installs a public key into a target's authorized_keys.
// identityPath, when set, is the key used to authenticate the upload.
type Uploader interface {
	Upload(ctx context.Context, pubKeyPath, identityPath string, t Target) error
}

// ExecUploader drives ssh-copy-id.
type ExecUploader struct {
	Runner Runner
	Binary string
}

// Upload implements Uploader.
func (e *ExecUploader) Upload(ctx context.Context, pubKeyPath, identityPath string, t Target) error {
	args := []string{"-i", pubKeyPath}
	if identityPath != "" {
		args = append(args, "-o", "IdentityFile="+identityPath)
	}
	if t.Port != 0 {
		args = append(args, "-p", strconv.Itoa(t.Port))
	}
	args = append(args, t.Destination())
	_, err := e.Runner.Run(ctx, binaryOr(e.Binary, "ssh-copy-id"), args...)
	return err
}

// SFTPUploader appends the public key over SFTP. It authenticates with the
// identity key and falls back to the running SSH agent.
type SFTPUploader struct {
	Timeout  time.Duration
	HostKeys HostKeys
	// Agent returns the SSH agent, or nil when none is running.
	Agent func() agent.Agent
}

// Upload implements Uploader.
func (u *SFTPUploader) Upload(ctx context.Context, pubKeyPath, identityPath string, t Target) error {
	line, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return fmt.Errorf("%w: read public key %s: %v", model.ErrExternalTool, pubKeyPath, err)
	}
	client, err := u.connect(ctx, identityPath, t)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("%w: failed to create sftp client: %v", model.ErrExternalTool, err)
	}
	defer func() { _ = sc.Close() }()

	added, err := AppendAuthorizedKey(sftpFS{sc}, string(line))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrExternalTool, t, err)
	}
	if !added {
		logging.Infof("upload: key already present on %s", t)
	}
	return nil
}

func (u *SFTPUploader) connect(ctx context.Context, identityPath string, t Target) (*ssh.Client, error) {
	var firstErr error
	if identityPath != "" {
		signer, err := signerFromFile(identityPath)
		if err == nil {
			client, dialErr := dial(ctx, t, []ssh.AuthMethod{ssh.PublicKeys(signer)}, u.HostKeys, u.Timeout)
			if dialErr == nil {
				return client, nil
			}
			// Only an auth failure is worth retrying with the agent.
			if !isAuthFailure(dialErr) {
				return nil, dialErr
			}
			err = dialErr
		}
		firstErr = err
	}

	getAgent := u.Agent
	if getAgent == nil {
		getAgent = getSSHAgent
	}
	agentClient := getAgent()
	if agentClient == nil {
		if firstErr != nil {
			return nil, fmt.Errorf("identity authentication failed and no SSH agent available: %w", firstErr)
		}
		return nil, fmt.Errorf("%w: no authentication method available (no identity and no ssh agent)", model.ErrExternalTool)
	}
	return dial(ctx, t, []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)}, u.HostKeys, u.Timeout)
}

// remoteFS is the subset of SFTP operations used to edit authorized_keys.
type remoteFS interface {
	ReadFile(p string) ([]byte, error)
	WriteFile(p string, data []byte, mode os.FileMode) error
	Mkdir(p string, mode os.FileMode) error
	Replace(oldPath, newPath string) error
	Remove(p string) error
}

// AppendAuthorizedKey adds line to .ssh/authorized_keys unless a key with
// the same type and data is already present. The file is replaced through a
// temporary file and rename. It reports whether the file changed.
func AppendAuthorizedKey(rfs remoteFS, line string) (bool, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false, fmt.Errorf("malformed public key line")
	}

	sshDir := ".ssh"
	if err := rfs.Mkdir(sshDir, 0o700); err != nil {
		return false, fmt.Errorf("failed to prepare .ssh directory: %w", err)
	}
	finalPath := path.Join(sshDir, "authorized_keys")
	current, err := rfs.ReadFile(finalPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read remote authorized_keys: %w", err)
	}
	for _, existing := range strings.Split(string(current), "\n") {
		f := strings.Fields(existing)
		if len(f) >= 2 && f[0] == fields[0] && f[1] == fields[1] {
			return false, nil
		}
	}

	var buf bytes.Buffer
	buf.Write(current)
	if len(current) > 0 && !bytes.HasSuffix(current, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(line)
	buf.WriteByte('\n')

	tmpPath := path.Join(sshDir, fmt.Sprintf("authorized_keys.keyrot.%d", time.Now().UnixNano()))
	if err := rfs.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		_ = rfs.Remove(tmpPath)
		return false, fmt.Errorf("failed to write temporary file on remote: %w", err)
	}
	if err := rfs.Replace(tmpPath, finalPath); err != nil {
		_ = rfs.Remove(tmpPath)
		return false, fmt.Errorf("failed to rename authorized_keys file: %w", err)
	}
	return true, nil
}

// sftpFS adapts *sftp.Client to remoteFS.
type sftpFS struct{ c *sftp.Client }

func (s sftpFS) ReadFile(p string) ([]byte, error) {
	f, err := s.c.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s sftpFS) WriteFile(p string, data []byte, mode os.FileMode) error {
	f, err := s.c.Create(p)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.c.Chmod(p, mode)
}

func (s sftpFS) Mkdir(p string, mode os.FileMode) error {
	_ = s.c.Mkdir(p) // Ignore error if it already exists.
	return s.c.Chmod(p, mode)
}

// Replace prefers the posix-rename extension, which overwrites the target.
func (s sftpFS) Replace(oldPath, newPath string) error {
	if err := s.c.PosixRename(oldPath, newPath); err == nil {
		return nil
	}
	_ = s.c.Remove(newPath)
	return s.c.Rename(oldPath, newPath)
}

func (s sftpFS) Remove(p string) error { return s.c.Remove(p) }
