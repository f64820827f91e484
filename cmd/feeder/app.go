package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alfredjeanlab/feeder/internal/blob"
	"github.com/alfredjeanlab/feeder/internal/client"
	"github.com/alfredjeanlab/feeder/internal/credential"
	"github.com/alfredjeanlab/feeder/internal/events"
	"github.com/alfredjeanlab/feeder/internal/library"
	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/servers"
	"github.com/alfredjeanlab/feeder/internal/store"
	"github.com/alfredjeanlab/feeder/internal/store/postgres"
	"github.com/alfredjeanlab/feeder/internal/store/sqlite"
	"github.com/alfredjeanlab/feeder/internal/submit"
)

// app is the wiring shared by commands that touch saved state.
type app struct {
	store     store.Store
	blobs     blob.Store
	lib       *library.Library
	publisher events.Publisher
}

// openApp connects the store, blob store and event publisher once per
// process.
func openApp(ctx context.Context) (*app, error) {
	if env != nil {
		return env, nil
	}

	var (
		s   store.Store
		err error
	)
	if cfg.DatabaseURL != "" {
		s, err = postgres.New(cfg.DatabaseURL)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o700); err != nil {
			return nil, err
		}
		s, err = sqlite.New(cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	var blobs blob.Store
	if cfg.BlobS3Bucket != "" {
		blobs, err = blob.NewS3Store(ctx, cfg.BlobS3Bucket, cfg.BlobS3Prefix, cfg.BlobS3Region, cfg.BlobS3Endpoint)
	} else {
		blobs, err = blob.NewFSStore(cfg.BlobDir)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("attachment storage: %w", err)
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Warn("events disabled", "nats_url", cfg.NATSURL, "err", err)
		} else {
			publisher = pub
			logger.Debug("events enabled", "nats_url", cfg.NATSURL)
		}
	}

	env = &app{
		store:     s,
		blobs:     blobs,
		lib:       library.New(s, blobs, logger),
		publisher: publisher,
	}
	return env, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		logger.Error("error closing publisher", "err", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Error("error closing store", "err", err)
	}
	env = nil
}

func (a *app) submitter() (*submit.Submitter, error) {
	policy, err := mapping.ParseLastFlagPolicy(cfg.LastFlag)
	if err != nil {
		return nil, err
	}
	return submit.New(a.lib, submit.Options{
		Publisher: a.publisher,
		Logger:    logger,
		LastFlag:  policy,
	}), nil
}

func loadRegistry() (*servers.Registry, error) {
	return servers.Load(cfg.ServersFile)
}

func openCredentials() (*credential.Store, error) {
	return credential.Open(cfg.KeyringDir)
}

// target builds a client for a registered server; an empty name selects
// the default server.
func target(reg *servers.Registry, creds *credential.Store, name string) (submit.Target, error) {
	name, srv, err := reg.Get(name)
	if err != nil {
		return submit.Target{}, err
	}
	key, err := creds.APIKey(name)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return submit.Target{}, fmt.Errorf("no API key stored for server %s (run: feeder server add %s --url ...)", name, name)
		}
		return submit.Target{}, err
	}
	c := client.NewHTTPClient(client.Options{
		URL:      srv.URL,
		APIKey:   key,
		AuthID:   srv.AuthID,
		Insecure: srv.Insecure,
		Timeout:  cfg.HTTPTimeout,
		Logger:   logger,
	})
	return submit.Target{Name: name, Client: c}, nil
}

// targets builds clients for names, or for every active server when names
// is empty.
func targets(names []string) ([]submit.Target, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = reg.ActiveNames()
	}
	if len(names) == 0 {
		return nil, errors.New("no active servers (run: feeder server activate <name>)")
	}
	creds, err := openCredentials()
	if err != nil {
		return nil, err
	}
	out := make([]submit.Target, 0, len(names))
	for _, n := range names {
		t, err := target(reg, creds, n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// defaultTarget builds a client for name or the default server.
func defaultTarget(name string) (submit.Target, error) {
	reg, err := loadRegistry()
	if err != nil {
		return submit.Target{}, err
	}
	creds, err := openCredentials()
	if err != nil {
		return submit.Target{}, err
	}
	return target(reg, creds, name)
}
