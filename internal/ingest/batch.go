package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/observability"
)

// lineBreaks folds CRLF and bare CR line endings into LF.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Summary counts the terminal states of one batch.
type Summary struct {
	BatchID  string `json:"batch_id"`
	Total    int    `json:"total"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
}

// Message renders the summary for operators.
func (s Summary) Message() string {
	return fmt.Sprintf("Processed %d frames: %d OK, %d errors", s.Total, s.Accepted, s.Rejected)
}

// SplitFrames returns the non-blank, trimmed lines of blob. LF, CRLF and a
// bare CR all end a line.
func SplitFrames(blob string) []string {
	var out []string
	for _, line := range strings.Split(lineBreaks.Replace(blob), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// IngestBatch ingests every non-blank line of blob in order. Rejected frames
// do not stop the batch; a fatal error does, and is returned with the counts
// reached so far.
func (p *Pipeline) IngestBatch(ctx context.Context, blob string) (Summary, error) {
	b := p.newBatch()
	for _, line := range SplitFrames(blob) {
		if err := b.add(ctx, line); err != nil {
			return b.done(), err
		}
	}
	return b.done(), nil
}

// IngestReader is IngestBatch over a stream. Lines have no length limit: an
// oversized line is ingested (and rejected) like any other.
func (p *Pipeline) IngestReader(ctx context.Context, r io.Reader) (Summary, error) {
	b := p.newBatch()
	br := bufio.NewReader(r)
	for {
		chunk, readErr := br.ReadString('\n')
		for _, line := range SplitFrames(chunk) {
			if err := b.add(ctx, line); err != nil {
				return b.done(), err
			}
		}
		if readErr == io.EOF {
			return b.done(), nil
		}
		if readErr != nil {
			return b.done(), fmt.Errorf("read frames: %w", readErr)
		}
	}
}

type batch struct {
	p       *Pipeline
	log     *logrus.Entry
	summary Summary
}

func (p *Pipeline) newBatch() *batch {
	id := uuid.NewString()
	return &batch{
		p:       p,
		log:     p.log.WithField("batch_id", id),
		summary: Summary{BatchID: id},
	}
}

func (b *batch) add(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := b.p.ingest(ctx, line, b.log)
	if err != nil {
		return err
	}
	b.summary.Total++
	if out.Accepted {
		b.summary.Accepted++
	} else {
		b.summary.Rejected++
	}
	return nil
}

func (b *batch) done() Summary {
	observability.BatchesTotal.Inc()
	b.log.WithFields(logrus.Fields{
		"total":    b.summary.Total,
		"accepted": b.summary.Accepted,
		"rejected": b.summary.Rejected,
	}).Info(b.summary.Message())
	return b.summary
}
