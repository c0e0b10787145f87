package main

import (
	"fmt"

	"github.com/omniwatch/omniwatch/internal/api"
	"github.com/omniwatch/omniwatch/internal/config"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/notify"
	"github.com/omniwatch/omniwatch/internal/patrol"
	"github.com/omniwatch/omniwatch/internal/sampler"
	"github.com/omniwatch/omniwatch/internal/session"
	"github.com/omniwatch/omniwatch/internal/store"
)

const defaultConfigPath = "omniwatch.yaml"

// app bundles the pieces most commands need: config, device storage, the
// saved session, and an API client carrying the session token.
type app struct {
	cfg      *config.Config
	store    *store.Store
	sessions *session.Provider
	client   *api.Client
}

// openApp loads config, opens device storage, and builds an API client. If a
// session is saved its token is attached to the client.
func openApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	storagePath := cfg.Storage.Path
	if cfg.Storage.Driver == "mysql" {
		storagePath = cfg.Storage.DSN
	}
	st, err := store.Open(cfg.Storage.Driver, storagePath)
	if err != nil {
		return nil, err
	}

	sessions := session.New(st)
	client := api.NewClient(cfg.APIURL)
	if sess, ok := sessions.Load(); ok {
		client.SetToken(sess.Token)
	}

	return &app{cfg: cfg, store: st, sessions: sessions, client: client}, nil
}

// requireSession returns the saved session or an error telling the user to
// log in.
func (a *app) requireSession() (models.Session, error) {
	sess, ok := a.sessions.Load()
	if !ok {
		return models.Session{}, fmt.Errorf("not logged in; run \"ow login\" first")
	}
	return sess, nil
}

// newManager builds the patrol session manager with the gpsd-backed sampler
// and the configured notification channels.
func (a *app) newManager() (*patrol.Manager, error) {
	smp, err := sampler.New(sampler.Opts{
		Provider:     sampler.NewGpsdProvider(a.cfg.Sampler.GpsdAddr),
		MinDistanceM: a.cfg.Sampler.MinDistanceM,
		MinInterval:  a.cfg.Sampler.MinInterval(),
	})
	if err != nil {
		return nil, err
	}

	notifier, err := notify.FromConfig(a.cfg.Notify)
	if err != nil {
		return nil, err
	}

	return patrol.NewManager(patrol.Opts{
		API:           a.client,
		Sampler:       smp,
		Store:         a.store,
		Sessions:      a.sessions,
		Notifier:      notifier,
		FlushInterval: a.cfg.Patrol.FlushInterval(),
	})
}
