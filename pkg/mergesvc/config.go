// Package mergesvc exposes the merge engine (package merge) as a network
// service: a TOML-configured bundle shared by the HTTP (pkg/mergesvc/httpapi)
// and SSH (pkg/mergesvc/sshapi) transports, grounded on the reference VCS's
// own httpserver/sshserver split (pkg/serve/httpserver, pkg/serve/sshserver).
package mergesvc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/threestage/mergetree/pkg/odb"
)

const (
	DefaultHTTPListen  = "127.0.0.1:8721"
	DefaultSSHListen   = "127.0.0.1:8722"
	DefaultIdleTimeout = 5 * time.Minute
)

// StorageConfig selects and configures one of the object store backends
// package odb ships: local disk (the default, for a single-node deployment)
// or S3, mirroring the reference repo's own pluggable OSS-backed store
// (pkg/serve/httpserver/config.go's ServerConfig.PersistentOSS).
type StorageConfig struct {
	Kind string `toml:"kind,omitempty"` // "file" (default) or "s3"
	Root string `toml:"root,omitempty"`

	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
}

// Build opens the WritableStorage backend this config names. Exported so
// callers outside package mergesvc (the mergetree CLI) can resolve the same
// storage selection the service binaries use, without going through a
// ServiceConfig's TOML file.
func (sc StorageConfig) Build(ctx context.Context) (odb.WritableStorage, error) {
	switch sc.Kind {
	case "", "file":
		root := sc.Root
		if root == "" {
			root = "./mergesvc-objects"
		}
		return odb.NewFileStorage(root)
	case "s3":
		return odb.NewS3Storage(ctx, odb.S3Config{
			Bucket:   sc.S3Bucket,
			Prefix:   sc.S3Prefix,
			Region:   sc.S3Region,
			Endpoint: sc.S3Endpoint,
		})
	case "memory":
		return odb.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("mergesvc: unknown storage kind %q", sc.Kind)
	}
}

// ServiceConfig is the TOML-loadable superset of the in-process merge.Config
// bundle (spec.md §6) that the two service binaries (httpapi, sshapi) load
// at startup, mirroring httpserver.ServerConfig / sshserver.ServerConfig.
type ServiceConfig struct {
	HTTPListen string `toml:"http_listen,omitempty"`
	SSHListen  string `toml:"ssh_listen,omitempty"`

	// JWTSecret signs/verifies bearer tokens issued to httpapi clients.
	JWTSecret string `toml:"jwt_secret"`
	// HostPrivateKeys are PEM-encoded SSH host keys, following
	// sshserver.ServerConfig.HostPrivateKeys.
	HostPrivateKeys []string `toml:"host_private_keys,omitempty"`

	Storage StorageConfig `toml:"storage,omitempty"`

	// ContentMergeLimit, ShowRenameProgress mirror merge.Config fields
	// the service applies to every request it serves.
	ContentMergeLimit  int64 `toml:"content_merge_limit,omitempty"`
	ShowRenameProgress bool  `toml:"show_rename_progress,omitempty"`

	// IdleTimeout bounds how long the HTTP transport keeps an idle
	// keep-alive connection open; zero means DefaultIdleTimeout.
	IdleTimeout time.Duration `toml:"idle_timeout,omitempty"`
}

// NewServiceConfig loads and decodes a TOML file, filling in the documented
// defaults first, the way httpserver.NewServerConfig does.
func NewServiceConfig(file string) (*ServiceConfig, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := &ServiceConfig{
		HTTPListen:        DefaultHTTPListen,
		SSHListen:         DefaultSSHListen,
		ContentMergeLimit: 50 << 20,
		IdleTimeout:       DefaultIdleTimeout,
	}
	if _, err := toml.NewDecoder(f).Decode(sc); err != nil {
		return nil, fmt.Errorf("mergesvc: decoding %s: %w", file, err)
	}
	if sc.JWTSecret == "" {
		return nil, fmt.Errorf("mergesvc: jwt_secret is required")
	}
	return sc, nil
}

// OpenStorage builds the WritableStorage backend this config names.
func (sc *ServiceConfig) OpenStorage(ctx context.Context) (odb.WritableStorage, error) {
	return sc.Storage.Build(ctx)
}
