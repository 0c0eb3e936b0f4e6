// Package command dispatches named library commands. Every command takes a
// flat JSON object of arguments and returns a JSON-encodable result.
package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiza/library-service/pkg/catalog"
)

type HandlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Hook runs after a mutation succeeded.
type Hook func(ctx context.Context, cmd catalog.Command)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	hooks    []Hook
	logger   zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register binds a handler to a catalogue command. It panics on names the
// catalogue does not know and on duplicates: both are programming errors.
func (r *Registry) Register(name string, h HandlerFunc) {
	if _, ok := catalog.Lookup(name); !ok {
		panic(fmt.Sprintf("command: %q is not in the catalog", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("command: %q registered twice", name))
	}
	r.handlers[name] = h
}

func (r *Registry) OnMutation(h Hook) {
	r.mu.Lock()
	r.hooks = append(r.hooks, h)
	r.mu.Unlock()
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Commands lists the registered commands sorted by name.
func (r *Registry) Commands() []catalog.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]catalog.Command, 0, len(r.handlers))
	for name := range r.handlers {
		cmd, _ := catalog.Lookup(name)
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs the named command with a raw JSON argument object. Any error
// it returns is an *Error.
func (r *Registry) Invoke(ctx context.Context, name string, raw []byte) (interface{}, error) {
	if !r.Has(name) {
		return nil, unknownCommand(name)
	}

	args, err := ParseArgs(raw)
	if err != nil {
		return nil, Classify(err)
	}
	return r.InvokeArgs(ctx, name, args)
}

// InvokeArgs is Invoke for arguments that are already parsed.
func (r *Registry) InvokeArgs(ctx context.Context, name string, args Args) (interface{}, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	hooks := r.hooks
	r.mu.RUnlock()

	if !ok {
		return nil, unknownCommand(name)
	}
	if args == nil {
		args = Args{}
	}

	start := time.Now()
	result, err := h(ctx, args)
	if err != nil {
		cmdErr := Classify(err)
		event := r.logger.Debug()
		if cmdErr.Code == CodeInternal {
			event = r.logger.Error()
		}
		event.Err(err).
			Str("command", name).
			Str("code", string(cmdErr.Code)).
			Msg("Command failed")
		return nil, cmdErr
	}

	r.logger.Debug().
		Str("command", name).
		Dur("duration", time.Since(start)).
		Msg("Command executed")

	cmd, _ := catalog.Lookup(name)
	if !cmd.IsQuery() {
		for _, hook := range hooks {
			hook(ctx, cmd)
		}
	}

	return result, nil
}

func unknownCommand(name string) *Error {
	return &Error{Code: CodeUnknownCommand, Message: fmt.Sprintf("unknown command %q", name)}
}
