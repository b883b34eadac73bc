package condition

import (
	"io"
	"log/slog"
	"maps"
	"time"
)

// ActorView is a read-only snapshot of the actor a condition evaluates
// against. Implementations must never panic for absent data; absence is
// reported through the ok return or a zero count.
type ActorView interface {
	ID() string
	Stat(name string) (int, bool)
	CountItem(item string) int
	Faction() string
}

// ProgressView reports objective completion for conditions that gate on
// quest progress. It is satisfied by the engine's objective set.
type ProgressView interface {
	ObjectiveComplete(objectiveID string, actorID string) bool
}

// Context is an immutable snapshot of the data needed to evaluate a
// condition. Deriving a child context with WithValue never mutates the
// parent, so a Context can be shared across goroutines freely.
type Context struct {
	actor    ActorView
	now      time.Time
	progress ProgressView
	values   map[string]any
	logger   *slog.Logger
}

// NewContext creates an evaluation snapshot for the given actor at the
// given instant. A nil logger discards fault reports.
func NewContext(actor ActorView, now time.Time, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		actor:  actor,
		now:    now,
		logger: logger,
	}
}

// WithValue derives a child context with an added extension value. The
// receiver is left untouched.
func (c *Context) WithValue(key string, value any) *Context {
	child := c.clone()
	if child.values == nil {
		child.values = make(map[string]any, 1)
	}
	child.values[key] = value
	return child
}

// WithProgress derives a child context carrying an objective progress view.
func (c *Context) WithProgress(pv ProgressView) *Context {
	child := c.clone()
	child.progress = pv
	return child
}

func (c *Context) clone() *Context {
	child := &Context{
		actor:    c.actor,
		now:      c.now,
		progress: c.progress,
		logger:   c.logger,
	}
	if c.values != nil {
		child.values = maps.Clone(c.values)
	}
	return child
}

// Value returns an extension value by key.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Actor returns the actor snapshot, which may be nil.
func (c *Context) Actor() ActorView {
	return c.actor
}

// Now returns the world/time snapshot the context was built with.
func (c *Context) Now() time.Time {
	return c.now
}

// Progress returns the objective progress view, which may be nil.
func (c *Context) Progress() ProgressView {
	return c.progress
}

// Logger is never nil.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}
