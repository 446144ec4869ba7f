package smstools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Writer spools rendered outbound messages into the smstools outgoing
// directory, one file per message.
type Writer struct {
	dir  string
	from string
	log  *zerolog.Logger
}

// NewWriter builds a Writer spooling into dir. from is the service phone
// number stamped on every outgoing message.
func NewWriter(dir, from string, logger *zerolog.Logger) *Writer {
	return &Writer{dir: dir, from: from, log: logger}
}

// Send spools one message for delivery to the given phone number. The
// body is encoded as latin-1 when possible, falling back to UTF-16BE,
// with the chosen encoding declared in the Alphabet header. Delivery is
// fire and forget; smsd picks the file up from the spool directory.
func (w *Writer) Send(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	alphabet := "Ansi"
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text + "\n"))
	if err != nil {
		alphabet = "Unicode"
		encoded, err = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(text + "\n"))
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	header := fmt.Sprintf("Alphabet: %s\nFrom: %s\nTo: %s\n\n", alphabet, w.from, to)

	name := fmt.Sprintf("%s-%s.smircd", to, uuid.NewString())
	path := filepath.Join(w.dir, name)

	// Write under a temporary name first so smsd never reads a partial
	// file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(header), encoded...), 0o640); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish spool file: %w", err)
	}

	w.log.Debug().Str("to", to).Str("file", name).Msg("message spooled")
	return nil
}
