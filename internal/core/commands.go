package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/smirc/smircd/internal/store"
)

// maxNameRunes bounds both nicknames and conversation names.
const maxNameRunes = 16

// whoReplyRunes bounds the member list WHO renders, leaving room for the
// system prefix within a single SMS.
const whoReplyRunes = 130

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

var commandTable = map[string]*commandSpec{
	"CREATE": {
		name:        "CREATE",
		usage:       "/CREATE <conversation>",
		description: "create a new conversation",
		args:        regexp.MustCompile(`^(?P<name>\S+)$`),
		run:         cmdCreate,
	},
	"HELP": {
		name:        "HELP",
		usage:       "/HELP [command]",
		description: "show available commands, or the usage of one command",
		anonymous:   true,
		args:        regexp.MustCompile(`^(?P<command>[A-Za-z]+)?$`),
		run:         cmdHelp,
	},
	"INVITE": {
		name:        "INVITE",
		usage:       "/INVITE <user> to <conversation>",
		description: "invite a user to a conversation you operate",
		args:        regexp.MustCompile(`^(?P<user>\S+)\s+to\s+(?P<name>\S+)$`),
		run:         cmdInvite,
	},
	"JOIN": {
		name:        "JOIN",
		usage:       "/JOIN <inviter> in <conversation>",
		description: "join a conversation you have been invited to",
		args:        regexp.MustCompile(`^(?P<user>\S+)\s+in\s+(?P<name>\S+)$`),
		run:         cmdJoin,
	},
	"KICK": {
		name:        "KICK",
		usage:       "/KICK <user> out of <conversation>",
		description: "kick a user out of a conversation you operate",
		args:        regexp.MustCompile(`^(?P<user>\S+)\s+out\s+of\s+(?P<name>\S+)$`),
		run:         cmdKick,
	},
	"NICK": {
		name:        "NICK",
		usage:       "/NICK <new nickname>",
		description: "register, or change your nickname",
		anonymous:   true,
		args:        regexp.MustCompile(`^(?P<name>\S+)$`),
		run:         cmdNick,
	},
	"PART": {
		name:        "PART",
		usage:       "/PART <conversation>",
		description: "leave a conversation you are in",
		args:        regexp.MustCompile(`^(?P<name>\S+)$`),
		run:         cmdPart,
	},
	"WHO": {
		name:        "WHO",
		usage:       "/WHO <conversation>",
		description: "list the members of a conversation you are in",
		args:        regexp.MustCompile(`^(?P<name>\S+)$`),
		run:         cmdWho,
	},
}

// validateName enforces the shared naming rules for nicknames and
// conversation names: start with a letter, alphanumeric only, at most
// maxNameRunes runes, and never containing the service's own name.
func validateName(name string) *Fault {
	if utf8.RuneCountInString(name) > maxNameRunes {
		return faultf(FaultRestrictedName, `the name "%s" is too long, names may have at most %d characters`, name, maxNameRunes)
	}
	if !namePattern.MatchString(name) {
		return faultf(FaultRestrictedName, `the name "%s" is restricted, names must start with a letter and contain only letters and digits`, name)
	}
	if strings.Contains(strings.ToLower(name), strings.ToLower(systemPrefix)) {
		return faultf(FaultRestrictedName, `the name "%s" is restricted, names may not contain "%s"`, name, systemPrefix)
	}
	return nil
}

func cmdCreate(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	name := args["name"]
	if fault := validateName(name); fault != nil {
		return nil, fault
	}

	if _, err := e.store.GetMembership(ctx, exec.User.ID, name); err == nil {
		return nil, faultf(FaultAlreadyMember, "you are already in a conversation named %s", name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	// Conversation names are unique across the whole service, not just
	// among the executor's own memberships.
	if _, err := e.store.GetConversationByName(ctx, name); err == nil {
		return nil, faultf(FaultNameInUse, "a conversation named %s already exists", name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check conversation name: %w", err)
	}

	conv, err := e.store.CreateConversation(ctx, name, exec.User.ID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return &CommandResult{
		Reply: fmt.Sprintf("you have created a conversation named \"%s\"", conv.Name),
	}, nil
}

func cmdInvite(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	membership, err := e.operatorMembership(ctx, exec, args["name"])
	if err != nil {
		return nil, err
	}

	invitee, err := e.resolver.ResolveUser(ctx, args["user"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, faultf(FaultNoSuchUser, "no user named %s is registered", args["user"])
		}
		return nil, err
	}

	if _, err := e.store.GetMembership(ctx, invitee.ID, membership.ConversationName); err == nil {
		return nil, faultf(FaultAlreadyMember, "%s is already in %s", invitee.Username, membership.ConversationName)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check invitee membership: %w", err)
	}

	if _, err := e.store.GetInvitation(ctx, invitee.ID, membership.ConversationID); err == nil {
		return nil, faultf(FaultAlreadyInvited, "%s has already been invited to %s", invitee.Username, membership.ConversationName)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check invitation: %w", err)
	}

	if _, err := e.store.CreateInvitation(ctx, exec.User.ID, invitee.ID, membership.ConversationID); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	notice := fmt.Sprintf("%s has invited you to join %s, send \"%sJOIN %s in %s\" to accept",
		exec.User.Username, membership.ConversationName,
		CommandSentinel, exec.User.Username, membership.ConversationName)

	return &CommandResult{
		Reply: fmt.Sprintf("you have invited %s to join %s", invitee.Username, membership.ConversationName),
		Notices: []Outbound{
			{To: invitee.PhoneNumber, Text: RenderSystem(notice)},
		},
	}, nil
}

func cmdJoin(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	noInvitation := faultf(FaultNoInvitation, "you have no invitation from %s to a conversation named %s", args["user"], args["name"])

	inviter, err := e.resolver.ResolveUser(ctx, args["user"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, noInvitation
		}
		return nil, err
	}

	conv, err := e.store.GetConversationByName(ctx, args["name"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, noInvitation
		}
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	// Conversation names are globally unique, so one membership check
	// covers both "member of name" and "member of any conversation under
	// that exact name".
	if _, err := e.store.GetMembership(ctx, exec.User.ID, conv.Name); err == nil {
		return nil, faultf(FaultAlreadyMember, "you are already in a conversation named %s", conv.Name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	invitation, err := e.store.GetInvitation(ctx, exec.User.ID, conv.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, noInvitation
		}
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	if invitation.InviterID != inviter.ID {
		return nil, noInvitation
	}

	if _, err := e.store.DeleteInvitation(ctx, exec.User.ID, conv.ID); err != nil {
		return nil, fmt.Errorf("consume invitation: %w", err)
	}
	if _, err := e.store.AddMember(ctx, exec.User.ID, conv.ID, false); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	return &CommandResult{
		Reply: fmt.Sprintf("you are now a member of the conversation \"%s\"", conv.Name),
	}, nil
}

func cmdKick(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	membership, err := e.operatorMembership(ctx, exec, args["name"])
	if err != nil {
		return nil, err
	}

	target, err := e.resolver.ResolveUser(ctx, args["user"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Kicking someone who was never registered is not an error.
			return &CommandResult{
				Reply: fmt.Sprintf("%s was not a member of %s", args["user"], membership.ConversationName),
			}, nil
		}
		return nil, err
	}

	// The invitation and the membership are revoked independently;
	// either, both, or neither may exist.
	invitationRevoked, err := e.store.DeleteInvitation(ctx, target.ID, membership.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("revoke invitation: %w", err)
	}
	memberRemoved, err := e.store.RemoveMember(ctx, target.ID, membership.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}

	var clauses []string
	if invitationRevoked {
		clauses = append(clauses, fmt.Sprintf("%s's invitation to %s has been revoked", target.Username, membership.ConversationName))
	}
	if memberRemoved {
		clauses = append(clauses, fmt.Sprintf("%s has been removed from %s", target.Username, membership.ConversationName))
	}
	if len(clauses) == 0 {
		clauses = append(clauses, fmt.Sprintf("%s was not a member of %s", target.Username, membership.ConversationName))
	}

	return &CommandResult{Reply: strings.Join(clauses, "; ")}, nil
}

func cmdNick(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	name := args["name"]
	if fault := validateName(name); fault != nil {
		return nil, fault
	}

	owner, err := e.store.GetUserByName(ctx, name)
	switch {
	case err == nil:
		// The executor already owning the name permits case-only changes.
		if !exec.Known() || owner.ID != exec.User.ID {
			return nil, faultf(FaultNameInUse, "the nickname %s is already in use", name)
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("check nickname: %w", err)
	}

	if exec.Known() {
		if err := e.store.RenameUser(ctx, exec.User.ID, name); err != nil {
			return nil, fmt.Errorf("rename user: %w", err)
		}
		return &CommandResult{
			Reply: fmt.Sprintf("your nickname is now \"%s\"", name),
		}, nil
	}

	if _, err := e.store.CreateUser(ctx, name, exec.Phone); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &CommandResult{
		Reply: fmt.Sprintf("you are now registered as \"%s\"", name),
	}, nil
}

func cmdPart(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	membership, err := e.membership(ctx, exec, args["name"])
	if err != nil {
		return nil, err
	}

	if _, err := e.store.RemoveMember(ctx, exec.User.ID, membership.ConversationID); err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}

	return &CommandResult{
		Reply: fmt.Sprintf("you have left the conversation \"%s\"", membership.ConversationName),
	}, nil
}

func cmdWho(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	membership, err := e.membership(ctx, exec, args["name"])
	if err != nil {
		return nil, err
	}

	members, err := e.store.ListMembers(ctx, membership.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	list := strings.Join(names, ", ")
	if utf8.RuneCountInString(list) > whoReplyRunes {
		list = Truncate(list, whoReplyRunes) + "..."
	}

	return &CommandResult{Reply: list}, nil
}

func cmdHelp(ctx context.Context, e *Engine, exec Executor, args map[string]string) (*CommandResult, error) {
	if name := strings.ToUpper(args["command"]); name != "" {
		spec, ok := commandTable[name]
		if !ok {
			return nil, faultf(FaultUnknownCommand, `unknown command "%s", send "%sHELP" for a list of commands`, name, CommandSentinel)
		}
		return &CommandResult{
			Reply: fmt.Sprintf("%s -- %s", spec.usage, spec.description),
		}, nil
	}

	return &CommandResult{
		Reply: fmt.Sprintf("available commands: %s. Send \"%sHELP <command>\" for usage",
			strings.Join(commandNames(), ", "), CommandSentinel),
	}, nil
}

// membership loads the executor's membership in the named conversation,
// converting a miss into the not_member fault.
func (e *Engine) membership(ctx context.Context, exec Executor, name string) (*store.Membership, error) {
	membership, err := e.store.GetMembership(ctx, exec.User.ID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, faultf(FaultNotMember, "you are not involved in a conversation named %s", name)
		}
		return nil, fmt.Errorf("lookup membership: %w", err)
	}
	return membership, nil
}

// operatorMembership is membership plus the operator check INVITE and
// KICK require.
func (e *Engine) operatorMembership(ctx context.Context, exec Executor, name string) (*store.Membership, error) {
	membership, err := e.membership(ctx, exec, name)
	if err != nil {
		return nil, err
	}
	if !membership.Operator {
		return nil, faultf(FaultNotOperator, "you are not an operator of %s", membership.ConversationName)
	}
	return membership, nil
}
