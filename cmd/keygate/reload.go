package main

import (
	"context"
	"reflect"
	"strconv"
	"time"

	"github.com/vyrodovalexey/keygate/internal/audit"
	"github.com/vyrodovalexey/keygate/internal/authz"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
)

// retiredBundleGrace is how long a replaced authority stays open for
// requests that were already using it.
const retiredBundleGrace = 5 * time.Second

// startConfigWatcher starts the configuration watcher.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, app.reload,
		config.WithLogger(app.logger),
		config.WithErrorCallback(app.reportReloadError),
	)
	if err != nil {
		app.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}

// reload applies a changed configuration. The authority, the authorization
// policies and the log level change in place; everything else needs a
// restart.
func (a *application) reload(newCfg *config.Config) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	current := a.active
	if current == nil {
		current = a.config
	}

	event := audit.ConfigReloadEvent(audit.OutcomeSuccess)

	// Policies compile before the authority changes so that a rejected
	// reload leaves both untouched.
	var policies *authz.PolicySet
	if !reflect.DeepEqual(current.Authz.Policies, newCfg.Authz.Policies) {
		set, err := a.engine.Compile(newCfg.Authz.Policies)
		if err != nil {
			a.logger.Error("failed to reload authorization policies", observability.Error(err))
			a.auditReloadFailure("policies", err)
			return
		}
		policies = set
	}

	if !reflect.DeepEqual(current.Authority, newCfg.Authority) {
		if err := a.reloadAuthority(newCfg); err != nil {
			a.logger.Error("failed to reload authority, keeping the previous one", observability.Error(err))
			a.auditReloadFailure("authority", err)
			return
		}
		event.WithMetadata("authority", newCfg.Authority.Store.Type)
	}

	if policies != nil {
		a.engine.Install(policies)
		a.logger.Info("authorization policies reloaded",
			observability.Int("policies", policies.Len()),
		)
		event.WithMetadata("policies", strconv.Itoa(policies.Len()))
	}

	if level := newCfg.Observability.Logging.Level; level != current.Observability.Logging.Level {
		a.applyLogLevel(level)
		event.WithMetadata("log_level", level)
	}

	if restartRequired(current, newCfg) {
		a.logger.Warn("server, auth, observability and audit changes take effect after a restart")
	}

	a.active = newCfg
	a.auditor.LogEvent(context.Background(), event)
}

// applyLogLevel changes the level of the running logger when it supports it.
func (a *application) applyLogLevel(level string) {
	ls, ok := a.logger.(observability.LevelSetter)
	if !ok {
		return
	}
	if err := ls.SetLevel(level); err != nil {
		a.logger.Warn("failed to change log level", observability.Error(err))
		return
	}
	a.logger.Info("log level changed", observability.String("level", level))
}

// restartRequired reports changes that a reload cannot apply. The log level
// is applied in place and is ignored here.
func restartRequired(current, next *config.Config) bool {
	curObs, nextObs := current.Observability, next.Observability
	curObs.Logging.Level, nextObs.Logging.Level = "", ""

	return !reflect.DeepEqual(current.Server, next.Server) ||
		!reflect.DeepEqual(current.Auth, next.Auth) ||
		!reflect.DeepEqual(curObs, nextObs) ||
		!reflect.DeepEqual(current.Audit, next.Audit)
}

func (a *application) auditReloadFailure(component string, err error) {
	a.auditor.LogEvent(context.Background(),
		audit.ConfigReloadEvent(audit.OutcomeFailure).
			WithReason(err.Error()).
			WithMetadata("component", component),
	)
}

// reportReloadError audits a configuration file that failed to load or
// validate.
func (a *application) reportReloadError(err error) {
	a.auditReloadFailure("file", err)
}

func (a *application) reloadAuthority(newCfg *config.Config) error {
	bundle, err := buildAuthority(context.Background(), &newCfg.Authority, a.authorityDep)
	if err != nil {
		return err
	}

	old := a.swapAuthority(bundle)
	if old != nil {
		time.AfterFunc(retiredBundleGrace, func() {
			if err := old.Close(); err != nil {
				a.logger.Warn("failed to close retired key store", observability.Error(err))
			}
		})
	}

	a.logger.Info("authority reloaded",
		observability.String("store", newCfg.Authority.Store.Type),
		observability.Int("static_keys", len(newCfg.Authority.Store.Keys)),
	)
	return nil
}
