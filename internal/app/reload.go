package app

import (
	"context"
	"strings"

	"eventflow/internal/config"
	logx "eventflow/pkg/logx"
)

// reloadLoop applies hot-reloadable sections of every published config.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
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

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := logx.String("changed", strings.Join(ch.Sections, ","))
	a.log.Debug("config change summary", append([]logx.Field{changed}, ch.Fields...)...)

	if ch.Has("logging") {
		a.logs.Apply(mapLoggingConfig(newCfg))
	}
	if ch.Has("producer") {
		if d, err := producerDelay(newCfg); err != nil {
			a.log.Warn("invalid producer.delay; keeping previous", logx.Err(err))
		} else {
			a.mu.Lock()
			a.delay = d
			p := a.producer
			a.mu.Unlock()
			if p != nil {
				p.SetDelay(d)
			}
		}
		if err := a.trig.Apply(newCfg.Producer.Schedule); err != nil {
			a.log.Warn("invalid producer.schedule; keeping previous", logx.Err(err))
		}
	}
	if ch.Has("failures") {
		a.sink.SetRate(newCfg.Failures.RatePerSec)
	}
	if ch.RestartRequired {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(ch.Sections, ",")))
	}

	a.log.Info("config reloaded", changed)
}
