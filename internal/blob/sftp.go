// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig describes a remote directory reachable over SSH.
type SFTPConfig struct {
	Host     string
	User     string
	Password string
	KeyFile  string
	// KnownHosts defaults to ~/.ssh/known_hosts. Unknown host keys are
	// always rejected.
	KnownHosts string
	Root       string
}

// SFTP stores blobs as files in a remote directory.
type SFTP struct {
	ssh    *ssh.Client
	client *sftp.Client
	root   string
}

// DialSFTP connects to cfg.Host and opens an sftp session.
func DialSFTP(cfg SFTPConfig) (*SFTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("sftp host required")
	}
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no authentication method available (set key_file or password)")
	}
	known := cfg.KnownHosts
	if known == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		known = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeyCallback, err := knownhosts.New(known)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	addr := cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %w", addr, err)
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	s := NewSFTP(sftpClient, cfg.Root)
	s.ssh = client
	return s, nil
}

// NewSFTP wraps an existing sftp session. Close closes client.
func NewSFTP(client *sftp.Client, root string) *SFTP {
	if root == "" {
		root = "."
	}
	return &SFTP{client: client, root: root}
}

func (s *SFTP) Driver() Driver { return DriverSFTP }

func (s *SFTP) Close() error {
	err := s.client.Close()
	if s.ssh != nil {
		if cerr := s.ssh.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *SFTP) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return path.Join(s.root, key), nil
}

func (s *SFTP) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	p, err := s.path(key)
	if err != nil {
		return Info{}, err
	}
	if err := s.client.MkdirAll(path.Dir(p)); err != nil {
		return Info{}, fmt.Errorf("failed to create remote directory: %w", err)
	}
	f, err := s.client.Create(p)
	if err != nil {
		return Info{}, fmt.Errorf("failed to create remote file %s: %w", p, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.client.Remove(p)
		return Info{}, fmt.Errorf("failed to write remote file %s: %w", p, err)
	}
	return Info{Key: key, Size: n, ContentType: contentType, LastModified: time.Now().UTC()}, nil
}

func (s *SFTP) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return Info{}, nil, err
	}
	f, err := s.client.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, nil, ErrNotFound
		}
		return Info{}, nil, fmt.Errorf("failed to open remote file %s: %w", p, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Info{}, nil, err
	}
	return sftpInfo(key, st), f, nil
}

func (s *SFTP) List(ctx context.Context, prefix string) ([]Info, error) {
	var out []Info
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := s.client.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			key := e.Name()
			if rel != "" {
				key = rel + "/" + e.Name()
			}
			if e.IsDir() {
				if err := walk(path.Join(dir, e.Name()), key); err != nil {
					return err
				}
				continue
			}
			if strings.HasPrefix(key, prefix) {
				out = append(out, sftpInfo(key, e))
			}
		}
		return nil
	}
	if err := walk(s.root, ""); err != nil {
		return nil, fmt.Errorf("failed to list remote directory: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *SFTP) Delete(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if err := s.client.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func sftpInfo(key string, st fs.FileInfo) Info {
	return Info{Key: key, Size: st.Size(), ContentType: mime.TypeByExtension(path.Ext(key)), LastModified: st.ModTime().UTC()}
}
