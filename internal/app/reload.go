package app

import (
	"context"
	"errors"
	"slices"
	"strings"

	"preppertrack/internal/config"
	"preppertrack/internal/eventbus"
	"preppertrack/internal/task/scheduler"
	logx "preppertrack/pkg/logx"
)

// Reload re-reads the config file now, as SIGHUP does. A valid change is
// applied by the running reload loop; an identical file is not an error.
func (a *App) Reload(ctx context.Context) error {
	_, err := a.cfgm.Reload(ctx)
	if errors.Is(err, config.ErrUnchanged) {
		a.log.Debug("config reload requested; file unchanged")
		return nil
	}
	return err
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig pushes the live-reloadable parts of newCfg into the running
// components. Storage, delivery channels and the metrics listener need a
// restart.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	for _, s := range []string{"storage", "delivery", "metrics"} {
		if slices.Contains(sections, s) {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	res, err := config.Resolve(newCfg)
	if err != nil {
		// Validate already parsed every duration; this only guards a manual Commit.
		a.log.Warn("config apply skipped", logx.Err(err))
		return
	}
	a.res = res

	a.logs.Apply(mapLogConfig(newCfg))

	a.sched.Apply(scheduler.Config{Timezone: newCfg.Scheduler.Timezone})
	loc := a.sched.Location()
	a.gate.SetLocation(loc)
	if err := a.engine.Apply(res.ScanInterval, loc); err != nil {
		a.log.Warn("scan schedule update failed", logx.Err(err))
	}
	a.stager.SetTTL(res.StageTTL)

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: a.clock.Now(), Data: sections})
}
