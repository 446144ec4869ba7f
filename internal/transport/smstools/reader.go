package smstools

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrNoSender is returned for an inbound file without a "from" header.
// The message cannot be answered, so it is dropped with a log entry.
var ErrNoSender = errors.New(`no "from" header found`)

// Envelope is one decoded inbound message: colon-separated headers, a
// blank line, then the body.
type Envelope struct {
	From    string
	Headers map[string]string
	Body    string
}

// ReadFile parses one smstools inbound file. Malformed header lines are
// skipped with a warning; a missing "from" header is fatal for the file.
// The body is decoded according to the "alphabet" header.
func ReadFile(path string, logger *zerolog.Logger) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inbound file: %w", err)
	}

	headerPart := data
	var bodyPart []byte
	if idx := bytes.Index(data, []byte("\n\n")); idx >= 0 {
		headerPart = data[:idx]
		bodyPart = data[idx+2:]
	}

	headers := make(map[string]string)
	for _, line := range strings.Split(string(headerPart), "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			logger.Warn().Str("line", line).Msg("skipping invalid header")
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	from, ok := headers["from"]
	if !ok || from == "" {
		return nil, fmt.Errorf("%w in %s", ErrNoSender, path)
	}

	body, err := decodeBody(bodyPart, headers["alphabet"], logger)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	return &Envelope{
		From:    from,
		Headers: headers,
		Body:    body,
	}, nil
}

// decodeBody decodes the raw body bytes according to the smstools
// "Alphabet" header, defaulting to latin-1.
func decodeBody(raw []byte, alphabet string, logger *zerolog.Logger) (string, error) {
	var dec *encoding.Decoder
	switch alphabet {
	case "ISO", "Latin", "Ansi":
		dec = charmap.ISO8859_1.NewDecoder()
	case "UCS", "UCS2", "Chinese", "Unicode":
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case "":
		logger.Warn().Msg("no message encoding header encountered, defaulting to latin-1")
		dec = charmap.ISO8859_1.NewDecoder()
	default:
		logger.Warn().Str("alphabet", alphabet).Msg("unknown message encoding header, defaulting to latin-1")
		dec = charmap.ISO8859_1.NewDecoder()
	}

	decoded, err := dec.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
