package dispatch

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/time/rate"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/backend/algebra"
	"github.com/Aanthord/knuckledragger/pkg/backend/bv"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/backend/eqsat"
	"github.com/Aanthord/knuckledragger/pkg/backend/fol"
	"github.com/Aanthord/knuckledragger/pkg/backend/smt"
	"github.com/Aanthord/knuckledragger/pkg/backend/wasm"
	"github.com/Aanthord/knuckledragger/pkg/config"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
)

// Build constructs the oracle fleet a registry declares and a
// dispatcher over it. The returned cleanup releases adapters that hold
// resources (wasm runtimes) and must be called when the dispatcher is
// retired.
func Build(ctx context.Context, kern *kernel.Kernel, reg *config.Registry, cfg *config.Config, opts ...Option) (*Dispatcher, func(), error) {
	var entries []Entry
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	for i, spec := range reg.Oracles {
		adapter, closer, err := buildAdapter(ctx, spec, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		e := Entry{Adapter: adapter, Rank: i}
		if len(cfg.Priority) > 0 {
			e.Rank = cfg.Rank(spec.ID)
		}
		if spec.RatePerSec > 0 {
			e.Limiter = rate.NewLimiter(rate.Limit(spec.RatePerSec), 1)
		}
		entries = append(entries, e)
	}

	policy := mergedPolicy{cfg: cfg, reg: reg}
	opts = append([]Option{
		WithTimeout(cfg.OracleTimeout),
		WithChecker(cert.TruthTable{}),
		WithChecker(cert.RewriteTrace{}),
	}, opts...)
	return New(kern, policy, entries, opts...), cleanup, nil
}

func buildAdapter(ctx context.Context, spec config.OracleSpec, cfg *config.Config) (backend.Adapter, func() error, error) {
	timeout := spec.Timeout(cfg.OracleTimeout)
	switch spec.Kind {
	case "smt":
		return smt.NewAdapter(spec.ID, spec.Command, spec.Args, timeout), nil, nil
	case "fol":
		return fol.NewAdapter(spec.ID, spec.Command, spec.Args, timeout), nil, nil
	case "eqsat":
		return eqsat.NewAdapter(spec.ID, spec.Command, spec.Args, timeout), nil, nil
	case "bv":
		return bv.NewAdapter(spec.ID, spec.Command, spec.Args, timeout), nil, nil
	case "algebra":
		return algebra.NewAdapter(spec.ID), nil, nil
	case "wasm":
		module, err := os.ReadFile(spec.Module)
		if err != nil {
			return nil, nil, fmt.Errorf("oracle %q: read module: %w", spec.ID, err)
		}
		a, err := wasm.New(ctx, spec.ID, module, wasm.Config{
			MemoryLimitBytes: spec.MemoryLimitBytes,
			Timeout:          timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	default:
		return nil, nil, fmt.Errorf("oracle %q: unknown kind %q", spec.ID, spec.Kind)
	}
}

// mergedPolicy trusts an oracle if either the environment or the
// registry says so. Both are explicit operator configuration.
type mergedPolicy struct {
	cfg *config.Config
	reg *config.Registry
}

func (p mergedPolicy) Trusted(oracleID string) bool {
	if p.cfg != nil && p.cfg.Trusted(oracleID) {
		return true
	}
	if p.reg != nil {
		for _, o := range p.reg.Oracles {
			if o.ID == oracleID && o.Trusted {
				return true
			}
		}
	}
	return false
}
