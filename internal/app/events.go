package app

import (
	"context"
	"time"

	"bjornwatch/internal/eventbus"
	"bjornwatch/internal/notify"
	"bjornwatch/internal/storage"
	logx "bjornwatch/pkg/logx"
)

// dispatchEvents drives notifications, the detection log, and the SSH
// session off probe events. The subscription is opened by Start before the
// poller runs so the very first probe.found is never missed.
func (a *App) dispatchEvents(ctx context.Context, events <-chan eventbus.Event, unsub func()) {
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			pe, ok := e.Data.(eventbus.ProbeEvent)
			if !ok {
				continue
			}
			switch e.Type {
			case eventbus.EventProbeFound:
				if pe.First {
					a.recordDetection(ctx, pe, true)
					a.handleDetection(ctx, pe)
				}
			case eventbus.EventProbeLost:
				a.recordDetection(ctx, pe, false)
			case eventbus.EventProbeTimeout:
				// The poller returns ErrWatchdogTimeout; the supervisor
				// cancels the app. Nothing to fan out here.
			}
		}
	}
}

// handleDetection runs once per reachability transition to "found".
func (a *App) handleDetection(ctx context.Context, pe eventbus.ProbeEvent) {
	a.mu.Lock()
	launcher := a.ssh
	link := a.link
	a.mu.Unlock()

	msg := notify.DetectionMessage(a.notif.Channel(), pe.Addr)
	// A silenced announcement doesn't earn a multi-second speed test.
	if link != nil && a.notif.WouldSend(ctx, msg.SenderID) {
		if res, err := link.Run(ctx); err != nil {
			a.log.Debug("link test failed", logx.Err(err))
		} else {
			msg.Body += "\n" + res.Summary()
		}
	}
	a.notif.Announce(ctx, msg)

	if launcher != nil && launcher.Enabled() {
		if err := launcher.Launch(ctx, pe.Host); err != nil {
			a.log.Error("ssh session launch failed", logx.String("host", pe.Host), logx.Err(err))
		}
	}
}

func (a *App) recordDetection(ctx context.Context, pe eventbus.ProbeEvent, found bool) {
	if a.store == nil {
		return
	}
	channel := ""
	if found {
		channel = a.notif.Channel()
	}
	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err := a.store.AppendDetection(wctx, storage.DetectionEntry{
		At:      pe.At,
		Host:    pe.Host,
		Addr:    pe.Addr,
		Found:   found,
		Channel: channel,
	})
	if err != nil {
		a.log.Debug("detection log write failed", logx.Err(err))
	}
}
