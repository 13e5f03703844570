package relay

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/NotCreative21/taurus/internal/capture"
	"github.com/NotCreative21/taurus/internal/chat"
	"github.com/NotCreative21/taurus/internal/logging"
)

// Tailer turns new capture lines into formatted chat text.
type Tailer struct {
	store *capture.Store
}

func NewTailer(store *capture.Store) *Tailer {
	return &Tailer{store: store}
}

// Tail formats every complete line at index >= cursor and returns the batch
// with the advanced cursor. A cursor at or past capture.RotationThreshold
// discards the batch and rotates the stream, returning ("", 0), or ("",
// cursor) when the rotation fails. A missing
// stream yields ("", 0); a cursor beyond the end of the file (truncated
// underneath us) restarts from the first line.
func (t *Tailer) Tail(session string, cursor int) (string, int) {
	r, err := t.store.Open(session)
	if err != nil {
		if !errors.Is(err, capture.ErrNoStream) {
			log.Warn("open capture failed", logging.KeySession, session, logging.KeyError, err)
			return "", cursor
		}
		return "", 0
	}
	lines, err := readCompleteLines(r)
	r.Close()
	if err != nil {
		log.Warn("read capture failed", logging.KeySession, session, logging.KeyError, err)
		return "", cursor
	}

	if cursor >= capture.RotationThreshold {
		if err := t.store.Rotate(session); err != nil {
			// Keep the cursor so the old lines are not replayed; the next
			// pass retries the rotation.
			log.Warn("capture rotation failed", logging.KeySession, session, logging.KeyError, err)
			return "", cursor
		}
		log.Info("capture rotated", logging.KeySession, session, "lines", len(lines))
		return "", 0
	}

	if cursor > len(lines) || cursor < 0 {
		log.Debug("capture shrank, restarting", logging.KeySession, session, "cursor", cursor, "lines", len(lines))
		cursor = 0
	}

	var batch strings.Builder
	for _, line := range lines[cursor:] {
		if text, ok := chat.FormatLine(session, line); ok {
			batch.WriteString(text)
		}
	}
	return batch.String(), len(lines)
}

// readCompleteLines returns every newline terminated line. A trailing
// fragment without a newline is still being written and is left for the
// next pass.
func readCompleteLines(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}
