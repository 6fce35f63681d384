package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"fit2tp/internal/config"
	"fit2tp/internal/fitfile"
	"fit2tp/internal/metrics"
	"fit2tp/internal/progress"
	"fit2tp/internal/upload"
	"fit2tp/internal/worker"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Uploader scans a directory and uploads every FIT file holding a workout
type Uploader struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   upload.Client
	metrics  *metrics.Collector
	decoders *worker.Pool
	lister   *FileLister
	term     *progress.Terminal
}

// New creates a new uploader instance. The progress display draws on term,
// which should also be the sink of logger.
func New(cfg *config.Config, logger *zap.Logger, term *progress.Terminal) (*Uploader, error) {
	client, err := upload.NewHTTPClient(upload.Config{
		Endpoint: cfg.Upload.Endpoint,
		Token:    cfg.Upload.Token,
		Timeout:  cfg.Upload.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upload client: %w", err)
	}

	u := newUploader(cfg, logger, fitfile.NewFitDecoder(), client)
	u.term = term
	return u, nil
}

func newUploader(cfg *config.Config, logger *zap.Logger, decoder fitfile.Decoder, client upload.Client) *Uploader {
	return &Uploader{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		metrics:  metrics.New(),
		decoders: worker.NewPool(cfg.Pipeline.DecodeWorkers, fitfile.NewClassifier(decoder), logger),
		lister: &FileLister{
			extension: cfg.Pipeline.Extension,
			logger:    logger,
		},
	}
}

// Run lists the directory once and processes every candidate file with at
// most Pipeline.Parallelism files in flight. Only a listing failure is
// returned; per-file failures are logged and counted.
func (u *Uploader) Run(ctx context.Context) error {
	logger := u.logger.With(zap.String("run_id", uuid.NewString()))

	logger.Info("Starting upload",
		zap.String("dir", u.cfg.Source.Dir),
		zap.Uint64("athlete_id", u.cfg.Upload.AthleteID),
		zap.Int("parallelism", u.cfg.Pipeline.Parallelism),
		zap.Int("decode_workers", u.cfg.Pipeline.DecodeWorkers),
	)

	if u.cfg.MetricsAddr != "" {
		err := u.metrics.StartServer(u.cfg.MetricsAddr, func(err error) {
			logger.Error("Metrics server stopped", zap.Error(err))
		})
		if err != nil {
			logger.Error("Failed to start metrics server", zap.Error(err))
		} else {
			logger.Info("Serving metrics", zap.String("addr", u.metrics.Addr()))
		}
	}

	tasks, err := u.lister.ListTasks(u.cfg.Source.Dir)
	if err != nil {
		return err
	}
	u.metrics.SetTotalCount(int64(len(tasks)))

	var progressDisplay *progress.Display
	if u.cfg.ShowProgress && progress.IsTerminalSupported() {
		term := u.term
		if term == nil {
			term = progress.NewTerminal(os.Stdout, os.Stderr)
		}
		progressDisplay = progress.NewDisplay(u.metrics.GetProgressTracker(), time.Second, term)
		progressDisplay.Start()
	} else {
		logger.Debug("Progress display disabled")
	}

	u.decoders.Start()

	processor := worker.NewTaskProcessor(worker.Config{
		AthleteID:    u.cfg.Upload.AthleteID,
		UploadClient: upload.UploadClientTag,
	}, u.decoders, u.client, u.metrics, logger)

	var g errgroup.Group
	g.SetLimit(u.cfg.Pipeline.Parallelism)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			processor.Process(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	u.decoders.Stop()
	if progressDisplay != nil {
		progressDisplay.Stop()
	}

	status := u.metrics.GetProgressTracker().GetStatus()
	logger.Info("Upload completed",
		zap.Int64("files", status.Processed),
		zap.Int64("uploaded", status.Uploaded),
		zap.Int64("rejected", status.Rejected),
		zap.Int64("skipped", status.Skipped),
		zap.Int64("failed", status.Failed),
		zap.String("sent", humanize.Bytes(uint64(status.BytesSent))),
		zap.Duration("elapsed", status.Elapsed),
	)
	return nil
}

// Status returns the current progress snapshot
func (u *Uploader) Status() progress.Status {
	return u.metrics.GetProgressTracker().GetStatus()
}

// Close cleans up resources
func (u *Uploader) Close() error {
	u.decoders.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return u.metrics.Shutdown(ctx)
}
