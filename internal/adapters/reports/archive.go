// Package reports archives escalation sweep reports in blob storage. Each
// sweep is written twice: a JSON document for machines and a CSV table of
// per-sanction outcomes for people.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sanctioncore/internal/blob"
	"sanctioncore/internal/core"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "sweeps/"

// Format names an archived artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatCSV:  "text/csv",
}

// Entry describes one archived artifact.
type Entry struct {
	Key       string    `json:"key"`
	Format    Format    `json:"format"`
	SizeBytes int64     `json:"size_bytes"`
	RanAt     time.Time `json:"ran_at"`
	Escalated int       `json:"escalated"`
}

// Archive implements core.SweepReporter on top of a blob store.
type Archive struct {
	store  blob.Store
	prefix string
	logger *slog.Logger
	newID  func() string
}

// NewArchive returns an archive writing under prefix. An empty prefix selects
// DefaultPrefix.
func NewArchive(store blob.Store, prefix string, logger *slog.Logger) *Archive {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		store:  store,
		prefix: prefix,
		logger: logger.With("component", "sweep-archive"),
		newID:  uuid.NewString,
	}
}

var _ core.SweepReporter = (*Archive)(nil)

// ReportSweep stores report as JSON and CSV. Both artifacts share a base key
// derived from the sweep time.
func (a *Archive) ReportSweep(ctx context.Context, report core.SweepReport) error {
	base := a.baseKey(report.RanAt)
	meta := map[string]string{
		"ran-at":    report.RanAt.UTC().Format(time.RFC3339Nano),
		"escalated": strconv.Itoa(report.Escalated),
	}
	var errs []error
	for _, format := range []Format{FormatJSON, FormatCSV} {
		payload, err := materialize(format, report)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := base + "." + string(format)
		info, err := a.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentTypes[format], Metadata: meta})
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", key, err))
			continue
		}
		a.logger.DebugContext(ctx, "sweep report archived", "key", info.Key, "size_bytes", info.Size)
	}
	return errors.Join(errs...)
}

// List returns archived artifacts newest first.
func (a *Archive) List(ctx context.Context) ([]Entry, error) {
	infos, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, fmt.Errorf("list sweep reports: %w", err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		format := Format(strings.TrimPrefix(path.Ext(info.Key), "."))
		if _, ok := contentTypes[format]; !ok {
			continue
		}
		entry := Entry{Key: info.Key, Format: format, SizeBytes: info.Size, RanAt: info.LastModified}
		// List on S3 carries no user metadata; fall back to Head for it.
		md := info.Metadata
		if md == nil {
			if head, err := a.store.Head(ctx, info.Key); err == nil {
				md = head.Metadata
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, md["ran-at"]); err == nil {
			entry.RanAt = ts
		}
		entry.Escalated, _ = strconv.Atoi(md["escalated"])
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].RanAt.Equal(entries[j].RanAt) {
			return entries[i].RanAt.After(entries[j].RanAt)
		}
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

// Load decodes the JSON artifact stored at key.
func (a *Archive) Load(ctx context.Context, key string) (core.SweepReport, error) {
	if !strings.HasPrefix(key, a.prefix) || path.Ext(key) != "."+string(FormatJSON) {
		return core.SweepReport{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return core.SweepReport{}, err
	}
	defer rc.Close()
	var report core.SweepReport
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return core.SweepReport{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return report, nil
}

// Open streams a raw artifact.
func (a *Archive) Open(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if !strings.HasPrefix(key, a.prefix) {
		return blob.Info{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return a.store.Get(ctx, key)
}

func (a *Archive) baseKey(ranAt time.Time) string {
	ranAt = ranAt.UTC()
	return a.prefix + ranAt.Format("2006/01/02/") + ranAt.Format("20060102T150405.000Z") + "-" + a.newID()[:8]
}

func materialize(format Format, report core.SweepReport) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json report: %w", err)
		}
		return b, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		if err := w.Write([]string{"sanction_id", "outcome", "quantity", "deadline", "error"}); err != nil {
			return nil, err
		}
		for _, item := range report.Items {
			row := []string{item.ID, item.Outcome, "", "", item.Error}
			if item.Outcome == core.SweepEscalated {
				row[2] = strconv.Itoa(item.Quantity)
				row[3] = item.Deadline.UTC().Format(time.RFC3339)
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("encode csv report: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported report format %s", format)
	}
}
