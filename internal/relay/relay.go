package relay

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/smirc/smircd/internal/core"
	"github.com/smirc/smircd/internal/transport/smstools"
)

// Outbox spools one rendered message for delivery.
type Outbox interface {
	Send(ctx context.Context, to, text string) error
}

// Archiver moves a processed inbound file out of the mail-drop.
type Archiver interface {
	Archive(path string) error
}

// Relay processes inbound mail-drop files one at a time: parse, route,
// deliver, archive. Sequential processing is the concurrency discipline:
// no two inbound messages are ever in flight together, so the directory
// store sees no interleaved read-modify-write.
type Relay struct {
	router  *core.Router
	outbox  Outbox
	archive Archiver
	log     *zerolog.Logger
}

// New builds a relay.
func New(router *core.Router, outbox Outbox, archive Archiver, logger *zerolog.Logger) *Relay {
	return &Relay{
		router:  router,
		outbox:  outbox,
		archive: archive,
		log:     logger,
	}
}

// ProcessFile handles one inbound file end to end. Nothing it encounters
// is fatal to the daemon: faults are logged (and where the taxonomy says
// so, answered) and the loop moves on to the next message.
func (r *Relay) ProcessFile(ctx context.Context, path string) {
	envelope, err := smstools.ReadFile(path, r.log)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Already processed off an earlier event for the same file.
			r.log.Debug().Str("file", path).Msg("inbound file gone, skipping")
			return
		}
		// Raw parse faults (unreadable file, missing sender) get no
		// reply: the origin is not trusted to be a valid conversant.
		r.log.Error().Err(err).Str("file", path).Msg("failed to receive message")
		r.archiveFile(path)
		return
	}

	r.log.Debug().
		Str("from", envelope.From).
		Str("file", path).
		Msg("received raw message")

	disposition, err := r.router.Route(ctx, envelope.From, envelope.Body)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrOutOfArea),
			errors.Is(err, core.ErrEmptyMessage),
			errors.Is(err, core.ErrAnonymousForbidden):
			r.log.Warn().Err(err).Str("from", envelope.From).Msg("message dropped")
		default:
			r.log.Error().Err(err).Str("from", envelope.From).Msg("unhandled error while routing message")
		}
		r.archiveFile(path)
		return
	}

	if disposition.Posted != nil {
		r.fanOut(ctx, disposition.Posted)
	}
	for _, notice := range disposition.Notices {
		if err := r.outbox.Send(ctx, notice.To, notice.Text); err != nil {
			r.log.Error().Err(err).Str("to", notice.To).Msg("failed to send notice")
		}
	}

	r.archiveFile(path)

	if disposition.Reply != "" {
		if err := r.outbox.Send(ctx, envelope.From, disposition.Reply); err != nil {
			r.log.Error().Err(err).Str("to", envelope.From).Msg("failed to send reply")
		}
	}
}

// fanOut delivers a posted message to every other member of its
// conversation. Per-recipient failures are isolated: one bad phone
// number must not stop delivery to the rest.
func (r *Relay) fanOut(ctx context.Context, posted *core.Posted) {
	text := core.RenderUser(posted.Sender, posted.Body)
	for _, recipient := range posted.Recipients {
		if err := r.outbox.Send(ctx, recipient.Phone, text); err != nil {
			r.log.Error().
				Err(err).
				Str("to", recipient.Phone).
				Str("conversation", posted.Conversation).
				Msg("failed to deliver to recipient")
		}
	}
}

// archiveFile moves a processed file aside; failure to archive is logged
// but never blocks continued operation.
func (r *Relay) archiveFile(path string) {
	if err := r.archive.Archive(path); err != nil {
		r.log.Error().Err(err).Str("file", path).Msg("failed to archive message")
	}
}
