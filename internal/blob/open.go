// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/genepanels/panelapp/internal/config"
)

// Open selects a Store from a sink URL. Credentials and endpoints come from
// the blob section of the configuration; the URL names the location.
//
//	file://./exports          local directory (relative paths allowed)
//	memory://                 in-process, lost on exit
//	s3://bucket/prefix        S3 or MinIO
//	sftp://host[:port]/dir    remote directory over SSH
func Open(ctx context.Context, sink string, cfg config.Config) (Store, error) {
	if sink == "" {
		sink = "file://./exports"
	}
	u, err := url.Parse(sink)
	if err != nil {
		return nil, fmt.Errorf("invalid export sink %q: %w", sink, err)
	}
	switch Driver(u.Scheme) {
	case DriverFilesystem, "":
		return NewFilesystem(localPath(u))
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		c := cfg.Blob.S3
		bucket := u.Host
		if bucket == "" {
			bucket = c.Bucket
		}
		return NewS3(ctx, S3Config{
			Bucket:          bucket,
			Prefix:          strings.TrimPrefix(u.Path, "/"),
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			PathStyle:       c.PathStyle,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
		})
	case DriverSFTP:
		c := cfg.Blob.SFTP
		host := u.Host
		if host == "" {
			host = c.Host
		}
		user := c.User
		if u.User != nil && u.User.Username() != "" {
			user = u.User.Username()
		}
		return DialSFTP(SFTPConfig{
			Host:       host,
			User:       user,
			Password:   c.Password,
			KeyFile:    c.KeyFile,
			KnownHosts: c.KnownHosts,
			Root:       strings.TrimPrefix(u.Path, "/"),
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", u.Scheme)
	}
}

// localPath turns file://./exports and file:///var/exports into paths.
func localPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	if u.Host != "" {
		return u.Host + u.Path
	}
	return u.Path
}
