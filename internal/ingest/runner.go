package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

// LockKey guards against two concurrent ingestion runs (redis key lock:ingest).
const LockKey = "ingest"

// Store is the persistence an ingestion run needs.
type Store interface {
	ReplaceAll(ctx context.Context, drafts []models.OrderDraft) error
	Backup(ctx context.Context, path string) error
}

// Locker is an optional distributed lock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Publisher announces a finished run.
type Publisher interface {
	PublishIngestionCompleted(ctx context.Context, evt models.IngestionCompletedEvent) error
}

// ErrLocked is returned when another run holds the ingestion lock.
var ErrLocked = errors.New("another ingestion run is in progress")

// Report summarizes one run.
type Report struct {
	Rows         int          `json:"rows"`
	Orders       int          `json:"orders"`
	Participants int          `json:"participants"`
	Completed    int          `json:"completed"`
	MultiBuyers  int          `json:"multi_buyers"`
	Skipped      []Diagnostic `json:"skipped"`
}

// Options selects the feeds of a run.
type Options struct {
	OrdersPath  string
	MembersPath string
	BackupPath  string
	// Force proceeds when a backup was requested but the driver cannot make one.
	Force bool
}

type Runner struct {
	store        Store
	grouper      *Grouper
	materializer *Materializer
	locker       Locker
	publisher    Publisher
	lockTTL      time.Duration
	logger       *zap.Logger
}

func NewRunner(st Store, grouper *Grouper, materializer *Materializer, locker Locker, publisher Publisher) *Runner {
	return &Runner{
		store:        st,
		grouper:      grouper,
		materializer: materializer,
		locker:       locker,
		publisher:    publisher,
		lockTTL:      10 * time.Minute,
		logger:       util.GetLogger(),
	}
}

// Run performs a full ingestion: lock, backup, read feeds, then Ingest.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	ctx, span := util.StartSpan(ctx, "Ingest.Run")
	defer span.End()

	start := time.Now()
	defer func() { util.IngestDuration.Observe(time.Since(start).Seconds()) }()

	if r.locker != nil {
		ok, err := r.locker.AcquireLock(ctx, LockKey, r.lockTTL)
		switch {
		case err != nil:
			r.logger.Warn("Ingestion lock unavailable, continuing without it", zap.Error(err))
		case !ok:
			return nil, ErrLocked
		default:
			defer func() {
				if err := r.locker.ReleaseLock(context.Background(), LockKey); err != nil {
					r.logger.Warn("Failed to release ingestion lock", zap.Error(err))
				}
			}()
		}
	}

	if opts.BackupPath != "" {
		err := r.store.Backup(ctx, opts.BackupPath)
		switch {
		case err == nil:
			r.logger.Info("Database backed up", zap.String("path", opts.BackupPath))
		case errors.Is(err, store.ErrBackupUnsupported) && opts.Force:
			r.logger.Warn("Backup unsupported, continuing because of force", zap.Error(err))
		case errors.Is(err, store.ErrBackupUnsupported):
			return nil, fmt.Errorf("%w; take a backup manually and rerun with force", err)
		default:
			util.RecordError(span, err)
			return nil, err
		}
	}

	rows, err := ReadPurchaseRows(opts.OrdersPath)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	genders := GenderLookup{}
	if opts.MembersPath != "" {
		lookup, err := LoadGenderLookup(opts.MembersPath)
		if err != nil {
			r.logger.Warn("Member feed unavailable, buyer genders left empty",
				zap.String("path", opts.MembersPath), zap.Error(err))
		} else {
			genders = lookup
		}
	}

	report, err := r.Ingest(ctx, rows, genders)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return report, nil
}

// Ingest groups and materializes rows and replaces the stored dataset with
// the result in one transaction.
func (r *Runner) Ingest(ctx context.Context, rows []RawPurchaseRow, genders GenderLookup) (*Report, error) {
	util.IngestRowsTotal.Add(float64(len(rows)))

	grouped := r.grouper.Group(rows)
	for _, d := range grouped.Skipped {
		util.IngestRowsSkipped.WithLabelValues(d.Reason).Inc()
		r.logger.Warn("Skipped feed row", zap.Int("line", d.Line), zap.String("reason", d.Reason))
	}

	r.materializer.Genders = genders
	drafts := make([]models.OrderDraft, 0, len(grouped.Groups))
	for _, g := range grouped.Groups {
		drafts = append(drafts, r.materializer.Materialize(g))
	}

	if err := r.store.ReplaceAll(ctx, drafts); err != nil {
		return nil, fmt.Errorf("failed to store ingested orders: %w", err)
	}

	report := summarize(rows, grouped.Skipped, drafts)
	util.IngestOrdersTotal.Add(float64(report.Orders))
	util.IngestParticipantsTotal.Add(float64(report.Participants))

	r.logger.Info("Ingestion completed",
		zap.Int("rows", report.Rows),
		zap.Int("orders", report.Orders),
		zap.Int("participants", report.Participants),
		zap.Int("completed", report.Completed),
		zap.Int("multi_buyers", report.MultiBuyers),
		zap.Int("skipped", len(report.Skipped)),
	)

	if r.publisher != nil {
		evt := models.IngestionCompletedEvent{
			Rows:         report.Rows,
			Orders:       report.Orders,
			Participants: report.Participants,
			Completed:    report.Completed,
			Skipped:      len(report.Skipped),
		}
		if err := r.publisher.PublishIngestionCompleted(ctx, evt); err != nil {
			r.logger.Error("Failed to publish ingestion event", zap.Error(err))
		}
	}
	return report, nil
}

func summarize(rows []RawPurchaseRow, skipped []Diagnostic, drafts []models.OrderDraft) *Report {
	report := &Report{Rows: len(rows), Orders: len(drafts), Skipped: skipped}
	if report.Skipped == nil {
		report.Skipped = []Diagnostic{}
	}
	perBuyer := map[string]int{}
	for _, d := range drafts {
		report.Participants += len(d.Participants)
		for _, p := range d.Participants {
			if p.IsCompleted {
				report.Completed++
			}
		}
		perBuyer[d.Order.BuyerID] += d.Order.TotalParticipants
	}
	for _, n := range perBuyer {
		if n >= models.MultiBuyerThreshold {
			report.MultiBuyers++
		}
	}
	return report
}
