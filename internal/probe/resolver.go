package probe

import (
	"context"
	"net"
)

// Resolver is the DNS lookup surface used by the poller.
// It exists so tests can fake resolution outcomes.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type systemResolver struct {
	r *net.Resolver
}

// SystemResolver returns a Resolver backed by the OS resolver configuration.
func SystemResolver() Resolver {
	return &systemResolver{r: net.DefaultResolver}
}

func (s *systemResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return s.r.LookupHost(ctx, host)
}
