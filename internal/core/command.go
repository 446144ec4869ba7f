package core

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/smirc/smircd/internal/store"
)

// CommandSentinel introduces a command line. It must not collide with
// legal identifier characters.
const CommandSentinel = "/"

var commandPattern = regexp.MustCompile(`^/([A-Za-z]+)\s*(.*)$`)

// IsCommand reports whether a trimmed body is a command line.
func IsCommand(body string) bool {
	return strings.HasPrefix(body, CommandSentinel)
}

// CommandResult is the outcome of a successfully executed command.
type CommandResult struct {
	// Reply is the confirmation text sent back to the executor as a
	// system message.
	Reply string
	// Notices are additional system messages the command produced, such
	// as the notification INVITE sends to the invitee.
	Notices []Outbound
}

// commandSpec is the static registration record for one command kind:
// its argument grammar, help metadata, anonymous-execution flag and
// handler. The table below replaces the runtime name lookup the service
// historically used, so an unknown command is a plain map miss.
type commandSpec struct {
	name        string
	usage       string
	description string
	anonymous   bool
	args        *regexp.Regexp
	run         func(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error)
}

// Engine parses command lines and executes them against the directory
// store.
type Engine struct {
	store    store.Store
	resolver *Resolver
	log      *zerolog.Logger
}

// NewEngine builds a command engine over the given store.
func NewEngine(st store.Store, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:    st,
		resolver: NewResolver(st),
		log:      logger,
	}
}

// Handle parses and executes one command line on behalf of exec.
//
// Domain problems come back as *Fault. An anonymous executor invoking a
// command that is not anonymously executable gets ErrAnonymousForbidden,
// which callers drop without a reply.
func (e *Engine) Handle(ctx context.Context, exec Executor, body string) (*CommandResult, error) {
	match := commandPattern.FindStringSubmatch(body)
	if match == nil {
		return nil, faultf(FaultBadCommand, `that does not look like a command, send "%sHELP" for a list of commands`, CommandSentinel)
	}
	word := strings.ToUpper(match[1])
	rest := strings.TrimSpace(match[2])

	spec, ok := commandTable[word]
	if !ok {
		return nil, faultf(FaultUnknownCommand, `unknown command "%s", send "%sHELP" for a list of commands`, word, CommandSentinel)
	}

	if !exec.Known() && !spec.anonymous {
		return nil, ErrAnonymousForbidden
	}

	args, ok := matchArgs(spec.args, rest)
	if !ok {
		return nil, faultf(FaultInvalidArguments, `invalid arguments given, use "%s"`, spec.usage)
	}

	e.log.Debug().
		Str("command", spec.name).
		Str("executor", exec.Name()).
		Msg("executing command")

	return spec.run(ctx, e, exec, args)
}

// matchArgs applies a command's argument grammar and collects named
// captures. The grammars are anchored, so trailing unmatched text is a
// mismatch rather than silently ignored.
func matchArgs(pattern *regexp.Regexp, rest string) (map[string]string, bool) {
	match := pattern.FindStringSubmatch(rest)
	if match == nil {
		return nil, false
	}
	args := make(map[string]string)
	for i, name := range pattern.SubexpNames() {
		if name != "" {
			args[name] = match[i]
		}
	}
	return args, true
}

// commandNames returns the registered command names, alphabetized.
func commandNames() []string {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
