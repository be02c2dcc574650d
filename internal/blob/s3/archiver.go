package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// EventLog provides read access to a market's event history for archival.
// The Postgres event store satisfies this implicitly.
type EventLog interface {
	ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Event, error)
}

// Archiver uploads settled markets to object storage. Each archive consists
// of the final market snapshot as a JSON document plus the market's full
// event history as JSONL, written under a per-market prefix:
//
//	archive/markets/42.json
//	archive/markets/42.events.jsonl
//
// Archival is a copy, not a move: the primary stores keep their rows.
type Archiver struct {
	writer domain.BlobWriter
	events EventLog
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, events EventLog) *Archiver {
	return &Archiver{
		writer: writer,
		events: events,
	}
}

// ArchiveMarket uploads the given market snapshot and its event log. The
// market should be in a terminal state; the caller decides when that is.
func (a *Archiver) ArchiveMarket(ctx context.Context, m domain.Market) error {
	snapshot, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal market %d: %w", m.ID, err)
	}

	snapPath := fmt.Sprintf("archive/markets/%d.json", m.ID)
	if err := a.writer.Put(ctx, snapPath, bytes.NewReader(snapshot), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive market %d snapshot: %w", m.ID, err)
	}

	if a.events == nil {
		return nil
	}

	history, err := a.collectEvents(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("s3blob: archive market %d events: %w", m.ID, err)
	}
	if len(history) == 0 {
		return nil
	}

	buf, err := marshalJSONL(history)
	if err != nil {
		return fmt.Errorf("s3blob: archive market %d events: %w", m.ID, err)
	}

	eventsPath := fmt.Sprintf("archive/markets/%d.events.jsonl", m.ID)
	if err := a.writer.Put(ctx, eventsPath, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive market %d events upload: %w", m.ID, err)
	}
	return nil
}

// collectEvents pages through the event log until exhausted.
func (a *Archiver) collectEvents(ctx context.Context, marketID uint64) ([]domain.Event, error) {
	const pageSize = 500

	var all []domain.Event
	for offset := 0; ; offset += pageSize {
		page, err := a.events.ListByMarket(ctx, marketID, domain.ListOpts{
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
