package commands

import (
	"context"
	"fmt"
	"strings"
)

// Handler runs one command. A returned error is treated as an internal
// failure: it is logged and the user gets the fixed maintainer reply.
// Not-found, permission and syntax problems are answered by the handler
// itself and return nil.
type Handler func(ctx context.Context, req *Request) error

// Command is a built-in chat command.
type Command struct {
	Name        string
	Aliases     []string
	Syntax      string // without the prefix, e.g. `initiate @member`
	Description string
	Run         Handler
}

// Registry holds commands and their aliases. Lookups are case-insensitive.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string
	order    []*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// Register adds c and its aliases. Names and aliases must be unique.
func (r *Registry) Register(c *Command) error {
	if c == nil || c.Name == "" || c.Run == nil {
		return fmt.Errorf("command needs a name and a handler")
	}
	key := strings.ToLower(c.Name)
	if r.taken(key) {
		return fmt.Errorf("command %q already registered", c.Name)
	}
	for _, a := range c.Aliases {
		if ak := strings.ToLower(a); ak == key || r.taken(ak) {
			return fmt.Errorf("alias %q of %q already registered", a, c.Name)
		}
	}
	r.commands[key] = c
	for _, a := range c.Aliases {
		r.aliases[strings.ToLower(a)] = key
	}
	r.order = append(r.order, c)
	return nil
}

// MustRegister is Register for static tables.
func (r *Registry) MustRegister(cs ...*Command) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) taken(key string) bool {
	_, cmd := r.commands[key]
	_, alias := r.aliases[key]
	return cmd || alias
}

// Lookup resolves name to a command: a command name first, then the guild's
// own aliases, then built-in aliases.
func (r *Registry) Lookup(name string, guildAliases map[string]string) (*Command, bool) {
	key := strings.ToLower(name)
	if c, ok := r.commands[key]; ok {
		return c, true
	}
	if target, ok := guildAliases[key]; ok {
		if c, ok := r.commands[target]; ok {
			return c, true
		}
		if builtin, ok := r.aliases[target]; ok {
			return r.commands[builtin], true
		}
	}
	if target, ok := r.aliases[key]; ok {
		return r.commands[target], true
	}
	return nil, false
}

// Commands returns commands in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, len(r.order))
	copy(out, r.order)
	return out
}

// ParseAliases reads a COMMAND_ALIASES value of the form
// "alias=command,other=command". Malformed pairs are skipped.
func ParseAliases(value string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		alias, target, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		alias = strings.ToLower(strings.TrimSpace(alias))
		target = strings.ToLower(strings.TrimSpace(target))
		if alias == "" || target == "" {
			continue
		}
		out[alias] = target
	}
	return out
}
