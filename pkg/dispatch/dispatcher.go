// Package dispatch races oracle backends against one goal and turns
// their verdicts into kernel theorems. The dispatcher is the only code
// that calls the oracle admission paths, and it does so under the
// configured trust policy and certificate checkers; everything an
// oracle claims is either independently checked or explicitly trusted,
// never silently believed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/observability"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Entry is one registered oracle: the adapter plus its dispatch
// policy.
type Entry struct {
	Adapter backend.Adapter
	// Rank breaks ties between simultaneously conclusive verdicts;
	// lower wins.
	Rank int
	// Limiter throttles invocations of this oracle; nil means
	// unlimited.
	Limiter *rate.Limiter
}

// Dispatcher fans a goal out to every oracle whose input language can
// express it, races the invocations, and mints a theorem for the
// winning refutation when trust or a certificate allows.
type Dispatcher struct {
	kern     *kernel.Kernel
	policy   kernel.TrustPolicy
	checkers map[string]kernel.CertChecker
	entries  []Entry
	timeout  time.Duration
	logger   *slog.Logger
	obs      *observability.Provider

	mu   sync.Mutex
	memo map[string]*outcome
}

type outcome struct {
	th *kernel.Theorem
	v  *backend.Verdict
}

// Option configures a dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each oracle invocation.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.timeout = d }
}

// WithLogger sets the dispatch logger.
func WithLogger(l *slog.Logger) Option {
	return func(dp *Dispatcher) { dp.logger = l }
}

// WithObservability sets the telemetry provider.
func WithObservability(p *observability.Provider) Option {
	return func(dp *Dispatcher) { dp.obs = p }
}

// WithChecker registers a certificate checker by its scheme. A
// Refuted verdict carrying that scheme is admitted through the checker
// instead of the trust list.
func WithChecker(c kernel.CertChecker) Option {
	return func(dp *Dispatcher) { dp.checkers[c.Scheme()] = c }
}

// New creates a dispatcher over the given oracles. Entries keep their
// order as the default rank.
func New(kern *kernel.Kernel, policy kernel.TrustPolicy, entries []Entry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		kern:     kern,
		policy:   policy,
		checkers: map[string]kernel.CertChecker{},
		entries:  append([]Entry(nil), entries...),
		timeout:  10 * time.Second,
		logger:   slog.Default().With("component", "dispatch"),
		memo:     map[string]*outcome{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type raceResult struct {
	entry   Entry
	verdict *backend.Verdict
	err     error
}

// Prove asks every applicable oracle about hyps |- concl. It returns a
// theorem when a refutation was admitted, otherwise the most
// informative verdict seen: a counterexample model beats everything,
// and inconclusive answers are reported but prove nothing.
func (d *Dispatcher) Prove(ctx context.Context, hyps []*term.Term, concl *term.Term) (*kernel.Theorem, *backend.Verdict, error) {
	key := goalKey(hyps, concl)
	d.mu.Lock()
	if out, ok := d.memo[key]; ok {
		d.mu.Unlock()
		return out.th, out.v, nil
	}
	d.mu.Unlock()

	if d.obs != nil {
		d.obs.RecordDispatch(ctx, attribute.Int("oracles", len(d.entries)))
	}

	jobs := d.translate(hyps, concl)
	if len(jobs) == 0 {
		return nil, nil, errors.New("dispatch: no oracle can express the goal")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult, len(jobs))
	var g errgroup.Group
	for _, tj := range jobs {
		e, j := tj.entry, tj.job
		g.Go(func() error {
			results <- d.invoke(ctx, e, j)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	th, v := d.collect(ctx, hyps, concl, results, cancel)
	if th != nil || (v != nil && v.Conclusive()) {
		d.mu.Lock()
		if len(d.memo) >= memoLimit {
			for k := range d.memo {
				delete(d.memo, k)
				break
			}
		}
		d.memo[key] = &outcome{th: th, v: v}
		d.mu.Unlock()
	}
	return th, v, nil
}

// memoLimit caps the per-dispatcher verdict cache; an arbitrary entry
// is evicted once full.
const memoLimit = 4096

type translatedJob struct {
	entry Entry
	job   *backend.Job
}

// translate runs every adapter's translation, dropping oracles whose
// language cannot express the goal.
func (d *Dispatcher) translate(hyps []*term.Term, concl *term.Term) []translatedJob {
	jobs := make([]translatedJob, 0, len(d.entries))
	for _, e := range d.entries {
		job, err := e.Adapter.Translate(hyps, concl)
		if err != nil {
			if backend.IsUntranslatable(err) {
				d.logger.Debug("oracle demoted", "oracle", e.Adapter.ID(), "reason", err)
				continue
			}
			d.logger.Warn("translation failed", "oracle", e.Adapter.ID(), "error", err)
			continue
		}
		jobs = append(jobs, translatedJob{entry: e, job: job})
	}
	return jobs
}

func (d *Dispatcher) invoke(ctx context.Context, e Entry, job *backend.Job) raceResult {
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return raceResult{entry: e, err: err}
		}
	}
	var done func(error)
	if d.obs != nil {
		ctx, done = d.obs.TrackOracle(ctx, e.Adapter.ID())
	}
	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	v, err := e.Adapter.Invoke(callCtx, job)
	if done != nil {
		done(err)
	}
	if err == nil && v != nil {
		d.logger.Debug("verdict",
			"oracle", e.Adapter.ID(),
			"kind", v.Kind.String(),
			"elapsed", v.Elapsed,
		)
		if d.obs != nil {
			d.obs.RecordVerdict(ctx, e.Adapter.ID(), v.Kind.String())
		}
	}
	return raceResult{entry: e, verdict: v, err: err}
}

// collect drains the race. The first conclusive verdict decides,
// except that results already waiting in the channel get to compete:
// among simultaneously available conclusive verdicts the lowest rank
// wins. A refutation that fails admission does not end the race.
func (d *Dispatcher) collect(ctx context.Context, hyps []*term.Term, concl *term.Term, results <-chan raceResult, cancel context.CancelFunc) (*kernel.Theorem, *backend.Verdict) {
	var best *backend.Verdict
	for {
		r, ok := <-results
		if !ok {
			return nil, best
		}
		batch := []raceResult{r}
		// pull everything else that has already arrived
	drain:
		for {
			select {
			case r, ok := <-results:
				if !ok {
					break drain
				}
				batch = append(batch, r)
			default:
				break drain
			}
		}
		sortByRank(batch)
		for _, r := range batch {
			if r.err != nil {
				if !errors.Is(r.err, context.Canceled) {
					d.logger.Warn("oracle failed", "oracle", r.entry.Adapter.ID(), "error", r.err)
				}
				continue
			}
			v := r.verdict
			if v == nil {
				continue
			}
			switch v.Kind {
			case backend.ModelFound:
				cancel()
				return nil, v
			case backend.Refuted:
				th, err := d.admit(ctx, r.entry, hyps, concl, v)
				if err != nil {
					d.logger.Warn("refutation not admitted",
						"oracle", r.entry.Adapter.ID(), "error", err)
					continue
				}
				cancel()
				return th, v
			default:
				if best == nil || moreInformative(v, best) {
					best = v
				}
			}
		}
	}
}

// admit turns a Refuted verdict into a theorem: certificate first,
// trust list second, nothing else.
func (d *Dispatcher) admit(ctx context.Context, e Entry, hyps []*term.Term, concl *term.Term, v *backend.Verdict) (*kernel.Theorem, error) {
	id := e.Adapter.ID()
	if v.CertScheme != "" {
		checker, ok := d.checkers[v.CertScheme]
		if !ok {
			return nil, fmt.Errorf("no checker for certificate scheme %q", v.CertScheme)
		}
		th, err := d.kern.AdmitCertified(checker, id, hyps, concl, v.Certificate)
		if err != nil {
			return nil, err
		}
		if d.obs != nil {
			d.obs.RecordTheorem(ctx, id, v.CertScheme)
		}
		d.logger.Info("theorem minted", "oracle", id, "cert_scheme", v.CertScheme)
		return th, nil
	}
	th, err := d.kern.AdmitTrusted(d.policy, id, hyps, concl)
	if err != nil {
		return nil, err
	}
	if d.obs != nil {
		d.obs.RecordTheorem(ctx, id, "")
	}
	d.logger.Info("theorem minted", "oracle", id, "trusted", true)
	return th, nil
}

// moreInformative orders inconclusive verdicts: a timeout says more
// than unknown, a crash the least.
func moreInformative(a, b *backend.Verdict) bool {
	weight := func(k backend.VerdictKind) int {
		switch k {
		case backend.TimedOut:
			return 2
		case backend.Unknown:
			return 1
		default:
			return 0
		}
	}
	return weight(a.Kind) > weight(b.Kind)
}

func sortByRank(rs []raceResult) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].entry.Rank < rs[j-1].entry.Rank; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// goalKey is the memo key: interned node ids uniquely identify the
// sequent within one session.
func goalKey(hyps []*term.Term, concl *term.Term) string {
	ids := make([]uint64, 0, len(hyps))
	for _, h := range hyps {
		ids = append(ids, h.ID())
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(strconv.FormatUint(id, 10))
		sb.WriteByte(',')
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(concl.ID(), 10))
	return sb.String()
}
