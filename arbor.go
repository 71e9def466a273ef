package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/guard"
	"github.com/aretw0/arbor/pkg/history"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
)

// Hook is a state lifecycle callback.
//
// Hooks run while the entity is locked: a hook must not call Advance,
// SetStationary, Restart or Detach for its own entity. Reads (Snapshot,
// History, IsTerminated) are lock-free and observe the instance as it was
// before the tick.
type Hook func(ctx context.Context, scope domain.Scope)

// Engine is the high-level entry point for the Arbor library.
// It owns one tree and drives any number of entity instances over it.
type Engine struct {
	tree       *tree.Tree
	conditions *condition.Registry
	hooks      *runtime.HookTable
	resolver   *runtime.Resolver
	driver     *runtime.Driver
	guard      *guard.Manager

	store        ports.InstanceStore
	locker       ports.DistributedLocker
	lifecycle    domain.LifecycleHooks
	logger       *slog.Logger
	historyLimit int
	implicitExit bool

	freezeOnce sync.Once
	Name       string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore injects the instance store (default: in-memory).
func WithStore(store ports.InstanceStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking of entities across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithHistoryLimit bounds the history kept per instance. Zero keeps everything.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		e.historyLimit = limit
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.lifecycle = hooks
	}
}

// WithRegistry shares a condition registry between engines.
func WithRegistry(r *condition.Registry) Option {
	return func(e *Engine) {
		e.conditions = r
	}
}

// WithImplicitExit makes a state without exit condition leave on every tick,
// as if its exit condition were always true.
func WithImplicitExit() Option {
	return func(e *Engine) {
		e.implicitExit = true
	}
}

// WithName labels the engine; the name is attached to every log line.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New initializes an Engine over a built tree.
func New(t *tree.Tree, opts ...Option) *Engine {
	eng := &Engine{
		tree:         t,
		historyLimit: history.DefaultLimit,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("tree", eng.Name)
	}
	if eng.conditions == nil {
		eng.conditions = condition.NewRegistry()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	guardOpts := []guard.Option{guard.WithLogger(eng.logger)}
	if eng.locker != nil {
		guardOpts = append(guardOpts, guard.WithLocker(eng.locker))
	}
	eng.guard = guard.NewManager(eng.store, guardOpts...)

	eng.hooks = runtime.NewHookTable()
	eng.resolver = runtime.NewResolver(t, eng.conditions)
	eng.resolver.ImplicitExit = eng.implicitExit
	eng.driver = runtime.NewDriver(eng.hooks)
	return eng
}

// Load builds the tree from a loader and initializes an Engine over it.
func Load(ctx context.Context, loader ports.TreeLoader, opts ...Option) (*Engine, error) {
	specs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}
	t, err := tree.Build(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}
	return New(t, opts...), nil
}

// Tree returns the tree the engine resolves against.
func (e *Engine) Tree() *tree.Tree {
	return e.tree
}

// Conditions returns the condition registry.
func (e *Engine) Conditions() *condition.Registry {
	return e.conditions
}

// RegisterCondition binds a predicate name. Re-registering a name replaces it.
// It fails once the engine started ticking.
func (e *Engine) RegisterCondition(name string, pred condition.Predicate) error {
	if e.conditions.Frozen() {
		return &domain.ProgrammingError{Op: "register condition", Msg: "engine already started: " + name}
	}
	e.conditions.Register(name, pred)
	return nil
}

// RegisterHook appends a lifecycle hook to a state.
// It fails for unknown states and once the engine started ticking.
func (e *Engine) RegisterHook(state domain.StateID, phase domain.Phase, fn Hook) error {
	if !e.tree.Has(state) {
		return &domain.ProgrammingError{Op: "register hook", Msg: fmt.Sprintf("state %q", state), Err: domain.ErrUnknownState}
	}
	return e.hooks.Register(state, phase, runtime.Hook(fn))
}

// Validate reports the first condition referenced by the tree that is not registered.
func (e *Engine) Validate() error {
	return e.tree.Validate(e.conditions)
}

func (e *Engine) freeze() {
	e.freezeOnce.Do(func() {
		e.conditions.Freeze()
		e.hooks.Freeze()
	})
}

// Attach creates the instance of an entity. It enters initial on its first Advance.
func (e *Engine) Attach(ctx context.Context, entity domain.EntityID, initial domain.StateID) error {
	if !e.tree.Has(initial) {
		return &domain.ProgrammingError{Op: "attach", Entity: entity, Msg: fmt.Sprintf("initial state %q", initial), Err: domain.ErrUnknownState}
	}
	if err := e.guard.Create(ctx, machine.New(entity, initial, e.historyLimit)); err != nil {
		return err
	}
	e.logger.Debug("Instance attached", "entity", entity, "initial", initial)
	return nil
}

// Detach destroys the instance of an entity. No hook runs.
func (e *Engine) Detach(ctx context.Context, entity domain.EntityID) error {
	if err := e.guard.Delete(ctx, entity); err != nil {
		return e.notAttached("detach", entity, err)
	}
	e.logger.Debug("Instance detached", "entity", entity)
	return nil
}

// Advance resolves and applies one tick for an entity.
//
// The outcome is computed from a snapshot before any hook runs and the
// instance is written back only after every hook returned. When a condition
// fails, the tick is aborted: the outcome is Stay, no hook runs and the
// instance is left untouched. OnResolveError only reports condition failures;
// an instance whose stored state is missing from the tree returns a
// *domain.ProgrammingError.
func (e *Engine) Advance(ctx context.Context, entity domain.EntityID, tick domain.Tick) (domain.Outcome, error) {
	e.freeze()

	var plan runtime.Plan
	var resolveErr error
	err := e.guard.Update(ctx, entity, func(ctx context.Context, inst *machine.Instance) error {
		plan, resolveErr = e.resolver.Resolve(inst, tick)
		if resolveErr != nil {
			return resolveErr
		}
		e.driver.Apply(ctx, inst, plan, tick)
		return nil
	})

	var condErr *domain.UnknownConditionError
	if resolveErr != nil && !errors.As(resolveErr, &condErr) {
		e.logger.Error("Tick aborted: instance does not match the tree", "entity", entity, "tick", tick.Seq, "err", resolveErr)
		return plan.Outcome, fmt.Errorf("advance %q: %w", entity, resolveErr)
	}
	if resolveErr != nil {
		e.logger.Warn("Tick aborted by condition failure", "entity", entity, "tick", tick.Seq, "err", resolveErr)
		if e.lifecycle.OnResolveError != nil {
			e.lifecycle.OnResolveError(ctx, &domain.ResolveErrorEvent{
				EventBase: e.eventBase(domain.EventResolveError, entity, tick),
				State:     plan.Outcome.From,
				Err:       resolveErr,
			})
		}
		return plan.Outcome, fmt.Errorf("advance %q: %w", entity, resolveErr)
	}
	if err != nil {
		return domain.Outcome{}, e.notAttached("advance", entity, err)
	}

	e.report(ctx, entity, tick, plan)
	return plan.Outcome, nil
}

func (e *Engine) report(ctx context.Context, entity domain.EntityID, tick domain.Tick, plan runtime.Plan) {
	out := plan.Outcome
	switch out.Kind {
	case domain.OutcomeTransition:
		e.logger.Debug("Transition",
			"entity", entity,
			"from", out.From,
			"to", out.To,
			"strategy", out.Strategy,
			"tick", tick.Seq,
		)
		if e.lifecycle.OnTransition != nil {
			e.lifecycle.OnTransition(ctx, e.transitionEvent(domain.EventTransition, entity, tick, plan))
		}
	case domain.OutcomeTerminate:
		e.logger.Info("Instance terminated", "entity", entity, "from", out.From, "tick", tick.Seq)
		if e.lifecycle.OnTerminate != nil {
			e.lifecycle.OnTerminate(ctx, e.transitionEvent(domain.EventTerminate, entity, tick, plan))
		}
	}
}

func (e *Engine) eventBase(typ domain.EventType, entity domain.EntityID, tick domain.Tick) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      typ,
		Entity:    entity,
		Tick:      tick.Seq,
	}
}

func (e *Engine) transitionEvent(typ domain.EventType, entity domain.EntityID, tick domain.Tick, plan runtime.Plan) *domain.TransitionEvent {
	return &domain.TransitionEvent{
		EventBase: e.eventBase(typ, entity, tick),
		Outcome:   plan.Outcome,
		Exited:    append([]domain.StateID(nil), plan.Exits...),
		Entered:   append([]domain.StateID(nil), plan.Enters...),
	}
}

// notAttached turns a missing instance into a ProgrammingError.
func (e *Engine) notAttached(op string, entity domain.EntityID, err error) error {
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return &domain.ProgrammingError{Op: op, Entity: entity, Msg: "entity is not attached", Err: err}
	}
	return fmt.Errorf("%s %q: %w", op, entity, err)
}

// SetStationary suspends (true) or resumes (false) transition resolution.
// Update hooks keep running while stationary.
func (e *Engine) SetStationary(ctx context.Context, entity domain.EntityID, stationary bool) error {
	err := e.guard.Update(ctx, entity, func(_ context.Context, inst *machine.Instance) error {
		inst.Stationary = stationary
		return nil
	})
	if err != nil {
		return e.notAttached("set stationary", entity, err)
	}
	return nil
}

// IsTerminated reports whether the entity reached Terminate.
func (e *Engine) IsTerminated(ctx context.Context, entity domain.EntityID) (bool, error) {
	inst, err := e.Snapshot(ctx, entity)
	if err != nil {
		return false, err
	}
	return inst.Terminated, nil
}

// History returns the recorded transitions of an entity, oldest first.
func (e *Engine) History(ctx context.Context, entity domain.EntityID) ([]domain.HistoryRecord, error) {
	inst, err := e.Snapshot(ctx, entity)
	if err != nil {
		return nil, err
	}
	return inst.History.Records(), nil
}

// Snapshot returns a copy of the last committed instance of an entity.
// It does not take the entity lock: an Advance in progress is not visible.
func (e *Engine) Snapshot(ctx context.Context, entity domain.EntityID) (*machine.Instance, error) {
	inst, err := e.store.Load(ctx, entity)
	if err != nil {
		return nil, e.notAttached("snapshot", entity, err)
	}
	return inst, nil
}

// Restart puts a terminated instance back to its initial state.
// The initial state is entered on the next Advance; history is kept.
func (e *Engine) Restart(ctx context.Context, entity domain.EntityID) error {
	err := e.guard.Update(ctx, entity, func(_ context.Context, inst *machine.Instance) error {
		if !inst.Terminated {
			return &domain.ProgrammingError{Op: "restart", Entity: entity, Msg: "instance is not terminated"}
		}
		inst.Reset()
		return nil
	})
	if err != nil {
		return e.notAttached("restart", entity, err)
	}
	e.logger.Info("Instance restarted", "entity", entity)
	return nil
}

// Entities lists the attached entities.
func (e *Engine) Entities(ctx context.Context) ([]domain.EntityID, error) {
	return e.guard.List(ctx)
}
