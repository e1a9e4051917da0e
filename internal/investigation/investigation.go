// Package investigation wires memory, graph, report codec and transmitter
// into the aggregation pipeline.
package investigation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pmll/casefile/internal/feed"
	"github.com/pmll/casefile/internal/graph"
	"github.com/pmll/casefile/internal/model"
	"github.com/pmll/casefile/internal/report"
	"github.com/pmll/casefile/internal/store"
	"github.com/pmll/casefile/internal/transmit"
)

const (
	SourceRealtime = "Real-time Data"
	SourceFeed     = "External Feed"

	DefaultPackageSource = "Independent Investigation Team"
)

// ErrReportNotReady is returned when no key is retained for a report.
var ErrReportNotReady = errors.New("report not ready")

// Observation is an event to ingest.
type Observation struct {
	Content    string
	Source     string
	Confidence float64
}

// ReportRequest describes a report to generate.
type ReportRequest struct {
	From  string
	To    string
	Notes []string
	Extra map[string]string
}

// Report identifies a persisted encrypted report.
type Report struct {
	ID         string
	Path       string
	MotivePath []string
}

// Summary is the broadcast view of the investigation state.
type Summary struct {
	ShortTerm   []model.Event      `json:"short_term_memory"`
	LongTermLen int                `json:"long_term_memory_length"`
	Centrality  []model.Centrality `json:"centrality_analysis"`
}

// Investigation owns one memory, one graph and one sender.
type Investigation struct {
	mem           *store.Memory
	graph         *graph.Graph
	sender        *transmit.Sender
	packageSource string
	now           func() time.Time
	logger        *zap.Logger
}

// Option configures an Investigation.
type Option func(*Investigation)

// WithMemory sets the event memory.
func WithMemory(m *store.Memory) Option {
	return func(inv *Investigation) { inv.mem = m }
}

// WithGraph sets the relationship graph.
func WithGraph(g *graph.Graph) Option {
	return func(inv *Investigation) { inv.graph = g }
}

// WithSender sets the transmitter.
func WithSender(s *transmit.Sender) Option {
	return func(inv *Investigation) { inv.sender = s }
}

// WithPackageSource sets the source named in outbound tip packages.
func WithPackageSource(src string) Option {
	return func(inv *Investigation) {
		if src != "" {
			inv.packageSource = src
		}
	}
}

// WithClock sets the wall clock used to stamp tip packages.
func WithClock(now func() time.Time) Option {
	return func(inv *Investigation) { inv.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(inv *Investigation) { inv.logger = l }
}

// New returns an Investigation. Components not supplied get defaults.
func New(opts ...Option) *Investigation {
	inv := &Investigation{
		packageSource: DefaultPackageSource,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.logger == nil {
		inv.logger = zap.NewNop()
	}
	if inv.mem == nil {
		inv.mem = store.NewMemory(store.WithLogger(inv.logger))
	}
	if inv.graph == nil {
		inv.graph = graph.New()
	}
	if inv.sender == nil {
		inv.sender = transmit.NewSender(transmit.WithLogger(inv.logger))
	}
	return inv
}

func (inv *Investigation) Memory() *store.Memory { return inv.mem }

func (inv *Investigation) Graph() *graph.Graph { return inv.graph }

// Ingest logs observations in order. It stops at the first failure.
func (inv *Investigation) Ingest(ctx context.Context, obs []Observation) error {
	for i, o := range obs {
		if _, err := inv.mem.LogEvent(ctx, o.Content, o.Source, o.Confidence); err != nil {
			return fmt.Errorf("ingest observation %d: %w", i, err)
		}
	}
	return nil
}

// IngestUpdates drains seq into memory as real-time data and returns how
// many updates were logged.
func (inv *Investigation) IngestUpdates(ctx context.Context, seq iter.Seq[model.Update]) (int, error) {
	n := 0
	for u := range seq {
		if _, err := inv.mem.LogEvent(ctx, u.Data, SourceRealtime, 1.0); err != nil {
			return n, fmt.Errorf("ingest update %d: %w", u.ID, err)
		}
		n++
	}
	return n, nil
}

// IngestBulletin logs every bulletin item as an external feed event.
func (inv *Investigation) IngestBulletin(ctx context.Context, b *feed.Bulletin) (int, error) {
	if b == nil {
		return 0, nil
	}
	for i, item := range b.Updates {
		if _, err := inv.mem.LogEvent(ctx, item.Content, SourceFeed, 1.0); err != nil {
			return i, fmt.Errorf("ingest bulletin item %s: %w", item.ID, err)
		}
	}
	return len(b.Updates), nil
}

// Relate adds relations to the graph.
func (inv *Investigation) Relate(relations []model.Relation) {
	for _, r := range relations {
		inv.graph.AddRelation(r.Source, r.Target, r.Relation, r.Confidence)
	}
}

// GenerateReport composes a snapshot around the path between req.From and
// req.To, encrypts it under a fresh key and writes it to artifactPath. The
// key is retained in memory under the returned report ID.
func (inv *Investigation) GenerateReport(ctx context.Context, req ReportRequest, artifactPath string) (*Report, error) {
	path := inv.graph.ShortestPath(req.From, req.To)
	snap := report.Compose(inv.mem, inv.graph, path, req.Notes, req.Extra)

	key, err := report.GenerateKey()
	if err != nil {
		return nil, err
	}
	art, err := report.Encrypt(snap, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt report: %w", err)
	}

	id := ulid.Make().String()
	if _, err := inv.mem.LogKey(ctx, id, key); err != nil {
		return nil, fmt.Errorf("retain report key: %w", err)
	}
	if err := report.WriteArtifact(artifactPath, art); err != nil {
		if cerr := inv.mem.ConsumeKey(ctx, id); cerr != nil {
			inv.logger.Warn("roll back report key", zap.String("report_id", id), zap.Error(cerr))
		}
		return nil, err
	}

	inv.logger.Info("report generated",
		zap.String("report_id", id),
		zap.String("path", artifactPath),
		zap.Strings("motive_path", path),
	)
	return &Report{ID: id, Path: artifactPath, MotivePath: path}, nil
}

// OpenReport decrypts the artifact with the key retained for reportID and
// consumes the key. A missing key yields ErrReportNotReady.
func (inv *Investigation) OpenReport(ctx context.Context, reportID, artifactPath string) (model.Snapshot, error) {
	key, err := inv.mem.Key(ctx, reportID)
	if errors.Is(err, store.ErrKeyNotFound) {
		inv.logger.Warn("no key retained for report", zap.String("report_id", reportID))
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrReportNotReady, reportID)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load report key: %w", err)
	}

	art, err := report.ReadArtifact(artifactPath)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := report.Decrypt(art, key)
	if err != nil {
		inv.logger.Error("report decrypt failed",
			zap.String("report_id", reportID),
			zap.String("path", artifactPath),
			zap.Error(err),
		)
		return model.Snapshot{}, err
	}

	if err := inv.mem.ConsumeKey(ctx, reportID); err != nil {
		inv.logger.Warn("consume report key", zap.String("report_id", reportID), zap.Error(err))
	}
	return snap, nil
}

// Package repackages a decrypted snapshot as an outbound tip.
func (inv *Investigation) Package(s model.Snapshot, findings map[string]string) model.Package {
	return report.BuildPackage(s, inv.packageSource, inv.now().UTC(), findings)
}

// Transmit sends payload to every endpoint and reports per-endpoint success.
func (inv *Investigation) Transmit(ctx context.Context, endpoints []string, payload any) map[string]bool {
	results := inv.sender.SendToAll(ctx, endpoints, payload, nil)
	failed := 0
	for _, ok := range results {
		if !ok {
			failed++
		}
	}
	inv.logger.Info("transmission complete",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("failed", failed),
	)
	return results
}

// Summary returns the broadcast view: short-term memory, archive size and
// centrality ranking.
func (inv *Investigation) Summary(ctx context.Context) (Summary, error) {
	n, err := inv.mem.LongTermLen(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("long-term length: %w", err)
	}
	return Summary{
		ShortTerm:   inv.mem.ShortTerm(),
		LongTermLen: n,
		Centrality:  inv.graph.CentralityRanking(),
	}, nil
}
