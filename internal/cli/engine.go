package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/hstswatch/internal/audit"
	"github.com/ppiankov/hstswatch/internal/config"
	"github.com/ppiankov/hstswatch/internal/guard"
	"github.com/ppiankov/hstswatch/internal/ignore"
	"github.com/ppiankov/hstswatch/internal/logging"
	"github.com/ppiankov/hstswatch/internal/looptrack"
	"github.com/ppiankov/hstswatch/internal/policy"
	"github.com/ppiankov/hstswatch/internal/prefs"
)

// engine bundles the components shared by run and mcp.
type engine struct {
	sessionID string
	ignore    *ignore.List
	prefs     *prefs.Store
	policy    *policy.Runtime
	guard     *guard.Guard
	auditLog  *audit.Log
}

// openEngine loads ignore rules and preferences and builds the guard. The
// policy follows the preference store for the lifetime of the engine.
func openEngine(cfg *config.Config, log zerolog.Logger) (*engine, error) {
	e := &engine{sessionID: uuid.NewString()}

	list, err := ignore.Load(config.ExpandPath(cfg.IgnoreFile))
	if err != nil {
		return nil, err
	}
	for _, bad := range list.Invalid() {
		log.Warn().Err(bad).Msg("ignore rule disabled")
	}
	e.ignore = list

	store, err := prefs.Open(config.ExpandPath(cfg.PrefsDB), logging.Component(log, "prefs"))
	if err != nil {
		return nil, err
	}
	e.prefs = store

	block, err := store.GetBool(policy.PrefBlockDowngrades, false)
	if err != nil {
		log.Warn().Err(err).Msg("reading block-downgrades preference, using false")
	}
	e.policy = policy.NewRuntime(block)
	store.Subscribe(e.policy.OnPreference)

	var rec guard.Recorder
	if cfg.AuditLog != "" {
		l, err := audit.Open(config.ExpandPath(cfg.AuditLog), e.sessionID)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		e.auditLog = l
		rec = audit.NewRecorder(l, logging.Component(log, "audit"))
	}

	e.guard = guard.New(guard.Config{
		Ignore:   list,
		Tracker:  looptrack.New(cfg.Tracker.Size, cfg.Tracker.TTL),
		Policy:   e.policy,
		MaxAge:   cfg.MaxAgeDuration(),
		Logger:   logging.Component(log, "guard"),
		Recorder: rec,
	})
	return e, nil
}

func (e *engine) Close() error {
	var firstErr error
	if e.auditLog != nil {
		if err := e.auditLog.Close(); err != nil {
			firstErr = err
		}
	}
	if err := e.prefs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
