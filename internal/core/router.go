package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/smirc/smircd/internal/store"
)

// TargetSentinel introduces an explicit conversation target at the start
// of a message body.
const TargetSentinel = "@"

var targetPattern = regexp.MustCompile(`^@(\S+)\s*(.*)$`)

// Recipient is one fan-out destination.
type Recipient struct {
	Username string
	Phone    string
}

// Posted is a fully addressed conversation message, ready for fan-out to
// every other member of its target conversation.
type Posted struct {
	Sender       string
	Conversation string
	Body         string
	Recipients   []Recipient
}

// Disposition is the outcome of routing one inbound payload. Any of its
// fields may be empty; a command produces a Reply (and possibly Notices),
// a conversation message produces a Posted.
type Disposition struct {
	// Reply is a system message back to the original sender, already
	// rendered. Empty means no reply.
	Reply string
	// Notices are rendered system messages to third parties.
	Notices []Outbound
	// Posted is the conversation message to fan out, nil for commands.
	Posted *Posted
}

// Router decides what one raw inbound payload means: a command to
// execute, a conversation message to fan out, or something to drop.
type Router struct {
	store  store.Store
	engine *Engine
	log    *zerolog.Logger
	now    func() time.Time
}

// NewRouter builds a router over the given store.
func NewRouter(st store.Store, logger *zerolog.Logger) *Router {
	return &Router{
		store:  st,
		engine: NewEngine(st, logger),
		log:    logger,
		now:    time.Now,
	}
}

// Route processes one inbound payload from the given phone number.
//
// Silent drops (out-of-area sender, empty body, anonymous sender running
// a privileged command) come back as ErrOutOfArea, ErrEmptyMessage or
// ErrAnonymousForbidden: the caller logs them and answers nothing.
// Domain faults are already rendered into Disposition.Reply. Any other
// error is unexpected and aborts processing of this message only.
func (r *Router) Route(ctx context.Context, fromPhone, rawBody string) (*Disposition, error) {
	if err := r.validateArea(ctx, fromPhone); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(rawBody)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	exec := Executor{Phone: fromPhone}
	user, err := r.store.GetUserByPhone(ctx, fromPhone)
	switch {
	case err == nil:
		exec.User = user
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	if IsCommand(body) {
		return r.routeCommand(ctx, exec, body)
	}
	return r.routeMessage(ctx, exec, body)
}

// validateArea checks the sender's number against the service-area table:
// the leading digit is the country code, the next three the area code.
// A number that cannot be billed is not worth answering.
func (r *Router) validateArea(ctx context.Context, phone string) error {
	if len(phone) < 4 || !phonePattern.MatchString(phone) {
		r.log.Warn().Str("phone", phone).Msg("invalid phone number failed validation")
		return ErrOutOfArea
	}
	countryCode, err := strconv.Atoi(phone[:1])
	if err != nil {
		return ErrOutOfArea
	}
	areaCode, err := strconv.Atoi(phone[1:4])
	if err != nil {
		return ErrOutOfArea
	}

	ok, err := r.store.AreaCodeExists(ctx, countryCode, areaCode)
	if err != nil {
		return fmt.Errorf("check service area: %w", err)
	}
	if !ok {
		r.log.Warn().
			Str("phone", phone).
			Int("country_code", countryCode).
			Int("area_code", areaCode).
			Msg("phone number is outside the service area")
		return ErrOutOfArea
	}
	return nil
}

func (r *Router) routeCommand(ctx context.Context, exec Executor, body string) (*Disposition, error) {
	result, err := r.engine.Handle(ctx, exec, body)
	if err != nil {
		if fault := AsFault(err); fault != nil {
			r.log.Debug().
				Str("executor", exec.Name()).
				Str("code", fault.Code).
				Msg("command fault")
			return &Disposition{Reply: RenderSystem(fault.Message)}, nil
		}
		return nil, err
	}
	return &Disposition{
		Reply:   RenderSystem(result.Reply),
		Notices: result.Notices,
	}, nil
}

func (r *Router) routeMessage(ctx context.Context, exec Executor, body string) (*Disposition, error) {
	if !exec.Known() {
		// Unknown senders may not post; tell them how to register.
		fault := faultf(FaultUnknownSender,
			"unknown sender (%s) -- maybe you are not registered? Send \"%sNICK <your nick>\" to register",
			exec.Phone, CommandSentinel)
		return &Disposition{Reply: RenderSystem(fault.Message)}, nil
	}

	var membership *store.Membership
	if match := targetPattern.FindStringSubmatch(body); match != nil {
		name := match[1]
		body = match[2]

		m, err := r.store.GetMembership(ctx, exec.User.ID, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fault := faultf(FaultNoSuchConversation, "you are not involved in a conversation named %s", name)
				return &Disposition{Reply: RenderSystem(fault.Message)}, nil
			}
			return nil, fmt.Errorf("lookup target conversation: %w", err)
		}
		membership = m
	} else {
		m, err := r.store.LatestMembership(ctx, exec.User.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fault := faultf(FaultNoDefaultConversation, "you did not target a conversation, and you have no last-active (default) conversation")
				return &Disposition{Reply: RenderSystem(fault.Message)}, nil
			}
			return nil, fmt.Errorf("lookup default conversation: %w", err)
		}
		membership = m
	}

	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}

	// Last active wins: the conversation just posted to becomes the
	// default target for the sender's next unprefixed message.
	if err := r.store.TouchMembership(ctx, membership.ID, r.now()); err != nil {
		return nil, fmt.Errorf("touch membership: %w", err)
	}

	members, err := r.store.ListMembers(ctx, membership.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	posted := &Posted{
		Sender:       exec.User.Username,
		Conversation: membership.ConversationName,
		Body:         body,
	}
	for _, m := range members {
		if m.UserID == exec.User.ID {
			continue
		}
		posted.Recipients = append(posted.Recipients, Recipient{
			Username: m.Username,
			Phone:    m.PhoneNumber,
		})
	}

	r.log.Debug().
		Str("sender", posted.Sender).
		Str("conversation", posted.Conversation).
		Int("recipients", len(posted.Recipients)).
		Msg("message routed")

	return &Disposition{Posted: posted}, nil
}
