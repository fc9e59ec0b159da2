// Package linktest measures the local uplink right after the device is
// detected, so the notification can say whether the network itself is
// healthy.
package linktest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/showwin/speedtest-go/speedtest"

	logx "bjornwatch/pkg/logx"
)

// Result holds one uplink measurement.
type Result struct {
	Server   string
	Ping     time.Duration
	Download float64 // Mbps
	Upload   float64 // Mbps
}

// Summary renders the result for inclusion in a notification body.
func (r Result) Summary() string {
	return fmt.Sprintf("Link: %s, ping %dms, down %.1f Mbps, up %.1f Mbps",
		r.Server, r.Ping.Milliseconds(), r.Download, r.Upload)
}

// Runner measures against the closest speedtest server.
type Runner struct {
	timeout time.Duration
	log     logx.Logger
}

func NewRunner(timeout time.Duration, log logx.Logger) *Runner {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{timeout: timeout, log: log}
}

// Run performs one measurement. A fresh client per run keeps the memory
// held by speedtest-go's data manager from accumulating.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	st := speedtest.New()
	defer func() {
		st.Snapshots().Clean()
		st.Reset()
	}()

	servers, err := st.FetchServerListContext(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch server list: %w", err)
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return Result{}, errors.New("no speedtest servers available")
	}

	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Distance < servers[j].Distance
	})
	srv := servers[0]

	if err := srv.PingTestContext(ctx, nil); err != nil {
		return Result{}, fmt.Errorf("ping test: %w", err)
	}
	if err := srv.DownloadTestContext(ctx); err != nil {
		return Result{}, fmt.Errorf("download test: %w", err)
	}
	if err := srv.UploadTestContext(ctx); err != nil {
		return Result{}, fmt.Errorf("upload test: %w", err)
	}

	res := Result{
		Server:   srv.Sponsor,
		Ping:     srv.Latency,
		Download: srv.DLSpeed.Mbps(),
		Upload:   srv.ULSpeed.Mbps(),
	}
	r.log.Debug("link test finished",
		logx.String("server", res.Server),
		logx.Int64("ping_ms", res.Ping.Milliseconds()),
		logx.Float64("down_mbps", res.Download),
		logx.Float64("up_mbps", res.Upload),
	)
	return res, nil
}
