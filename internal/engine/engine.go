// Package engine drives inspectors over a graph: for each node type in a configured
// order it runs node inspectors in passes until nothing changes, then runs that type's
// global inspectors once each.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
	"archscan/internal/resolver"
	"archscan/internal/slogutil"
)

// DefaultMaxPasses bounds the converging loop of one node type.
const DefaultMaxPasses = 32

// Config controls scheduling.
type Config struct {
	// TypeOrder is the order node types are analyzed in. Empty means graph.AllNodeTypes.
	TypeOrder []graph.NodeType
	// MaxPasses is the safety valve of the converging loop.
	MaxPasses int
	// Workers > 1 runs the nodes of a pass concurrently.
	Workers int
	// InvocationTimeout bounds a single inspector invocation. Zero disables it.
	InvocationTimeout time.Duration
}

// DefaultConfig returns a sequential configuration over every node type.
func DefaultConfig() Config {
	return Config{
		TypeOrder: graph.AllNodeTypes(),
		MaxPasses: DefaultMaxPasses,
		Workers:   1,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type registered struct {
	id       inspector.Identity
	insp     inspector.Inspector
	required resolver.RequiredTags
	node     inspector.NodeInspector
	global   inspector.GlobalInspector
}

type bucket struct {
	node   []*registered
	global []*registered
}

// Engine is built once per inspector set and may run over many graphs.
type Engine struct {
	cfg         Config
	resolver    *resolver.Resolver
	buckets     map[graph.NodeType]*bucket
	unscheduled []inspector.Identity

	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// New validates the configuration and the inspectors' declarations. Every error it
// returns is a configuration error; no analysis has happened.
func New(cfg Config, inspectors []inspector.Inspector, opts ...Option) (*Engine, error) {
	if len(cfg.TypeOrder) == 0 {
		cfg.TypeOrder = graph.AllNodeTypes()
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = DefaultMaxPasses
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.InvocationTimeout < 0 {
		return nil, scanerrors.Newf(scanerrors.ConfigInvalid, "invocation timeout must not be negative")
	}
	seen := make(map[graph.NodeType]bool, len(cfg.TypeOrder))
	for _, t := range cfg.TypeOrder {
		if !t.Valid() {
			return nil, scanerrors.Newf(scanerrors.ConfigInvalid, "type order contains unknown node type %d", int(t))
		}
		if seen[t] {
			return nil, scanerrors.Newf(scanerrors.ConfigInvalid, "type order lists %s twice", t)
		}
		seen[t] = true
	}

	res, err := resolver.New(inspectors)
	if err != nil {
		return nil, err
	}
	if err := res.CheckTypeOrder(cfg.TypeOrder); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		resolver: res,
		buckets:  make(map[graph.NodeType]*bucket, len(cfg.TypeOrder)),
		logger:   slogutil.NewDiscardLogger(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, t := range cfg.TypeOrder {
		e.buckets[t] = &bucket{}
	}
	for _, insp := range res.Order() {
		reg := &registered{
			id:       insp.Identity(),
			insp:     insp,
			required: res.MustResolve(insp.Identity()),
		}
		b, ok := e.buckets[insp.Target()]
		if !ok {
			e.unscheduled = append(e.unscheduled, reg.id)
			e.logger.Warn("Inspector targets a node type outside the type order",
				"inspector", reg.id,
				"type", insp.Target().String(),
			)
			continue
		}
		if insp.Descriptor().RequiresAllNodes {
			reg.global = insp.(inspector.GlobalInspector)
			b.global = append(b.global, reg)
		} else {
			reg.node = insp.(inspector.NodeInspector)
			b.node = append(b.node, reg)
		}
	}

	e.logger.Debug("Engine configured",
		"inspectors", res.Len(),
		"typeOrder", fmt.Sprint(cfg.TypeOrder),
		"maxPasses", cfg.MaxPasses,
		"workers", cfg.Workers,
	)
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Resolver exposes the validated dependency model.
func (e *Engine) Resolver() *resolver.Resolver { return e.resolver }

// Inspectors returns the node and global inspectors scheduled for t, in run order.
func (e *Engine) Inspectors(t graph.NodeType) (node, global []inspector.Inspector) {
	b, ok := e.buckets[t]
	if !ok {
		return nil, nil
	}
	for _, r := range b.node {
		node = append(node, r.insp)
	}
	for _, r := range b.global {
		global = append(global, r.insp)
	}
	return node, global
}

// Run analyzes g. Inspector failures and non-convergence are recorded in the report;
// the returned error is non-nil only when ctx ends the run early, in which case the
// partial report is returned as well.
func (e *Engine) Run(ctx context.Context, g *graph.Graph) (*Report, error) {
	rep := newReport(uuid.NewString(), e.cfg.TypeOrder, e.now())
	log := e.logger.With("run", rep.RunID)

	log.Info("Analysis started",
		"phase", Discovering.String(),
		"nodes", g.Len(),
		"edges", g.EdgeCount(),
	)
	for _, id := range e.unscheduled {
		insp, _ := e.resolver.Lookup(id)
		rep.addWarning(Warning{
			Code:    scanerrors.ConfigInvalid,
			Type:    insp.Target(),
			Message: fmt.Sprintf("inspector %q never runs: %s is not in the type order", id, insp.Target()),
		})
	}

	for _, t := range e.cfg.TypeOrder {
		summary, err := e.runType(ctx, log, g, t, rep)
		rep.Types = append(rep.Types, summary)
		if err != nil {
			rep.FinishedAt = e.now()
			log.Warn("Analysis interrupted", "type", t.String(), "error", err)
			return rep, err
		}
	}

	rep.FinishedAt = e.now()
	log.Info("Analysis finished",
		"phase", Done.String(),
		"duration", rep.Duration().String(),
		"warnings", len(rep.Warnings),
		"errors", len(rep.Errors),
	)
	return rep, nil
}

func (e *Engine) runType(ctx context.Context, log *slog.Logger, g *graph.Graph, t graph.NodeType, rep *Report) (TypeSummary, error) {
	b := e.buckets[t]
	nodes := g.Nodes(t)
	summary := TypeSummary{Type: t, Nodes: len(nodes), GlobalInspectors: len(b.global)}

	e.observer.PhaseStarted(PerTypeConverging, t)
	if err := e.converge(ctx, log, g, t, nodes, b.node, rep, &summary); err != nil {
		return summary, err
	}
	log.Info("Converging phase finished",
		"type", t.String(),
		"passes", summary.Passes,
		"changingPasses", summary.ChangingPasses,
		"converged", summary.Converged,
		"invocations", summary.NodeInvocations,
	)

	if len(b.global) == 0 {
		return summary, nil
	}
	e.observer.PhaseStarted(GlobalPhase, t)
	if err := e.runGlobals(ctx, log, g, t, nodes, b.global, rep, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

type nodeWork struct {
	node       *graph.Node
	inspectors []*registered
}

// plan lists, per node, the inspectors eligible against the node's current state.
func plan(nodes []*graph.Node, inspectors []*registered) ([]nodeWork, int) {
	var work []nodeWork
	pairs := 0
	for _, n := range nodes {
		var due []*registered
		for _, r := range inspectors {
			if eligible(n, r) {
				due = append(due, r)
			}
		}
		if len(due) > 0 {
			work = append(work, nodeWork{node: n, inspectors: due})
			pairs += len(due)
		}
	}
	return work, pairs
}

func eligible(n *graph.Node, r *registered) bool {
	return r.required.SatisfiedBy(n) && r.insp.Supports(n) && n.NeedsRun(string(r.id))
}

func (e *Engine) converge(ctx context.Context, log *slog.Logger, g *graph.Graph, t graph.NodeType, nodes []*graph.Node, inspectors []*registered, rep *Report, summary *TypeSummary) error {
	if len(inspectors) == 0 || len(nodes) == 0 {
		summary.Converged = true
		return nil
	}

	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		work, pairs := plan(nodes, inspectors)
		if len(work) == 0 {
			summary.Converged = true
			return nil
		}
		if pass > e.cfg.MaxPasses {
			summary.Skipped = pairs
			rep.addWarning(Warning{
				Code:    scanerrors.NonConvergence,
				Type:    t,
				Message: fmt.Sprintf("%s nodes did not converge within %d passes; %d pending invocations skipped", t, e.cfg.MaxPasses, pairs),
				Skipped: pairs,
			})
			log.Warn("Pass limit reached before convergence",
				"type", t.String(),
				"maxPasses", e.cfg.MaxPasses,
				"skipped", pairs,
			)
			return nil
		}

		stats, err := e.runPass(ctx, g, t, pass, work, rep)
		summary.Passes++
		summary.NodeInvocations += stats.Invocations
		if stats.Changed {
			summary.ChangingPasses++
		}
		rep.Passes = append(rep.Passes, stats)
		e.observer.PassCompleted(stats)
		log.Debug("Pass finished",
			"type", t.String(),
			"pass", pass,
			"nodes", stats.Nodes,
			"invocations", stats.Invocations,
			"writes", stats.Writes,
			"errors", stats.Errors,
			"changed", stats.Changed,
		)
		if err != nil {
			return err
		}
		if !stats.Changed {
			summary.Converged = true
			return nil
		}
	}
}

type passCounters struct {
	invocations atomic.Int64
	writes      atomic.Int64
	errors      atomic.Int64
	changed     atomic.Bool
}

func (e *Engine) runPass(ctx context.Context, g *graph.Graph, t graph.NodeType, pass int, work []nodeWork, rep *Report) (PassStats, error) {
	started := e.now()
	errBase := rep.errorCount()
	edgeBase := g.EdgeCount()
	var c passCounters

	if e.cfg.Workers <= 1 {
		for _, w := range work {
			e.runNode(ctx, g, t, pass, w, rep, &c)
		}
	} else {
		var eg errgroup.Group
		eg.SetLimit(e.cfg.Workers)
		for _, w := range work {
			eg.Go(func() error {
				e.runNode(ctx, g, t, pass, w, rep, &c)
				return nil
			})
		}
		_ = eg.Wait()
		rep.sortErrors(errBase)
	}
	g.SortEdgesFrom(edgeBase)

	stats := PassStats{
		Type:        t,
		Phase:       PerTypeConverging,
		Pass:        pass,
		Nodes:       len(work),
		Invocations: int(c.invocations.Load()),
		Writes:      int(c.writes.Load()),
		Errors:      int(c.errors.Load()),
		Changed:     c.changed.Load(),
		Duration:    e.now().Sub(started),
	}
	return stats, ctx.Err()
}

// runNode runs the due inspectors of one node sequentially, in dependency order.
func (e *Engine) runNode(ctx context.Context, g *graph.Graph, t graph.NodeType, pass int, w nodeWork, rep *Report, c *passCounters) {
	for _, r := range w.inspectors {
		if ctx.Err() != nil {
			return
		}
		writes, errs := e.invokeNode(ctx, g, t, pass, w.node, r, rep)
		c.invocations.Add(1)
		c.writes.Add(int64(writes))
		c.errors.Add(int64(errs))
		if writes > 0 {
			c.changed.Store(true)
		}
	}
}

func (e *Engine) invokeNode(ctx context.Context, g *graph.Graph, t graph.NodeType, pass int, n *graph.Node, r *registered, rep *Report) (writes, errs int) {
	rep.countInvocation(r.id)
	d := g.Decorate(n, string(r.id)).WithErrorSink(func(node *graph.Node, ae graph.AnalysisError) {
		rep.addError(InvocationError{
			Inspector: r.id,
			NodeID:    node.ID(),
			Type:      t,
			Phase:     PerTypeConverging,
			Pass:      pass,
			Code:      ae.Code,
			Message:   ae.Message,
		})
	})

	abandoned, err := e.call(ctx, func(ctx context.Context) error {
		return r.node.Inspect(ctx, n, d)
	})
	if err != nil {
		d.ReportError(err)
		e.logger.Warn("Inspector failed",
			"inspector", r.id,
			"node", n.ID(),
			"pass", pass,
			"error", err.Error(),
		)
	}
	if abandoned {
		d.Seal()
	}
	n.MarkRun(string(r.id))
	return d.Writes() + d.EdgesAdded(), len(d.Errors())
}

func (e *Engine) runGlobals(ctx context.Context, log *slog.Logger, g *graph.Graph, t graph.NodeType, nodes []*graph.Node, globals []*registered, rep *Report, summary *TypeSummary) error {
	started := e.now()
	stats := PassStats{Type: t, Phase: GlobalPhase, Nodes: len(nodes)}

	for _, r := range globals {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.countInvocation(r.id)
		stats.Invocations++
		summary.GlobalInvocations++

		var nodeErrs atomic.Int64
		sink := func(node *graph.Node, ae graph.AnalysisError) {
			nodeErrs.Add(1)
			rep.addError(InvocationError{
				Inspector: r.id,
				NodeID:    node.ID(),
				Type:      t,
				Phase:     GlobalPhase,
				Code:      ae.Code,
				Message:   ae.Message,
			})
		}
		scope := inspector.NewScope(g, t, r.id, r.required, r.insp.Supports, sink)

		abandoned, err := e.call(ctx, func(ctx context.Context) error {
			return r.global.InspectAll(ctx, scope)
		})
		if err != nil {
			scope.ReportError(err)
			log.Warn("Global inspector failed",
				"inspector", r.id,
				"type", t.String(),
				"error", err.Error(),
			)
		}
		if abandoned {
			scope.Seal()
		}
		for _, se := range scope.Errors() {
			code := scanerrors.CodeOf(se)
			rep.addError(InvocationError{
				Inspector: r.id,
				Type:      t,
				Phase:     GlobalPhase,
				Code:      string(code),
				Message:   se.Error(),
			})
			stats.Errors++
		}
		stats.Errors += int(nodeErrs.Load())
		stats.Writes += scope.Writes()
	}

	stats.Changed = stats.Writes > 0
	stats.Duration = e.now().Sub(started)
	rep.Passes = append(rep.Passes, stats)
	e.observer.PassCompleted(stats)
	log.Info("Global phase finished",
		"type", t.String(),
		"inspectors", len(globals),
		"writes", stats.Writes,
		"errors", stats.Errors,
	)
	return nil
}
