package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"pumpsync/internal/model"
)

// rawRecord is the wire shape of one line of the decrypted payload.
type rawRecord struct {
	Seq  int64  `json:"seq"`
	Type int    `json:"type"`
	TS   string `json:"ts"`
	Info string `json:"info"`
}

// Reader yields device events from a decrypted payload in source
// chronological order. Single pass, not restartable. Individually
// malformed records are logged and skipped; one corrupt record never
// drops the rest of the batch.
type Reader struct {
	sc      *bufio.Scanner
	log     *zap.Logger
	line    int
	skipped int
}

// NewReader parses the newline-delimited record container.
func NewReader(payload []byte, log *zap.Logger) *Reader {
	return &Reader{sc: bufio.NewScanner(bytes.NewReader(payload)), log: log}
}

// Next returns the next well-formed device event, or io.EOF when the
// payload is exhausted.
func (r *Reader) Next() (model.DeviceEvent, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec rawRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			r.skip("bad record", err)
			continue
		}
		ts, err := time.Parse(time.RFC3339, rec.TS)
		if err != nil {
			r.skip("bad timestamp", err)
			continue
		}
		return model.DeviceEvent{
			Seq:       rec.Seq,
			TypeID:    rec.Type,
			Timestamp: ts.UTC(),
			RawInfo:   rec.Info,
		}, nil
	}
	if err := r.sc.Err(); err != nil {
		return model.DeviceEvent{}, err
	}
	return model.DeviceEvent{}, io.EOF
}

// Skipped reports how many malformed records were dropped so far.
func (r *Reader) Skipped() int { return r.skipped }

func (r *Reader) skip(msg string, err error) {
	r.skipped++
	r.log.Warn("skipping archive record",
		zap.String("reason", msg),
		zap.Int("line", r.line),
		zap.Error(err),
	)
}
