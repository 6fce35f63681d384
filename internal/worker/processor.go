package worker

import (
	"context"
	"errors"
	"time"

	"fit2tp/internal/fitfile"
	"fit2tp/internal/metrics"
	"fit2tp/internal/upload"

	"go.uber.org/zap"
)

// TaskProcessor drives one file through classify, encode and upload
type TaskProcessor struct {
	config   Config
	decoders *Pool
	client   upload.Client
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewTaskProcessor creates a processor sharing the decode pool and upload client
func NewTaskProcessor(
	config Config,
	decoders *Pool,
	client upload.Client,
	metricsCollector *metrics.Collector,
	logger *zap.Logger,
) *TaskProcessor {
	return &TaskProcessor{
		config:   config,
		decoders: decoders,
		client:   client,
		metrics:  metricsCollector,
		logger:   logger,
	}
}

// Process processes a single file. Every failure is logged and counted
// here; exactly one outcome is recorded per call.
func (p *TaskProcessor) Process(ctx context.Context, task FileTask) upload.Outcome {
	p.metrics.IncInflight()
	defer p.metrics.DecInflight()

	var sent int64
	outcome := p.process(ctx, task, &sent)
	p.metrics.RecordOutcome(outcome, sent)
	p.logOutcome(task, outcome)

	return outcome
}

func (p *TaskProcessor) process(ctx context.Context, task FileTask, sent *int64) upload.Outcome {
	if err := ctx.Err(); err != nil {
		return upload.Failed(err)
	}

	decodeStart := time.Now()
	workout, err := p.decoders.Classify(ctx, task.Path)
	p.metrics.ObserveDecode(time.Since(decodeStart))
	if err != nil {
		return upload.Failed(err)
	}
	if !workout {
		return upload.Skipped("no workout records")
	}

	encoded, size, err := fitfile.EncodeFile(task.Path)
	if err != nil {
		return upload.Failed(err)
	}

	p.logger.Info("Uploading FIT file", zap.String("file", task.FileName))

	uploadStart := time.Now()
	outcome := p.client.Upload(ctx, upload.Payload{
		FileName:       task.FileName,
		EncodedContent: encoded,
		AthleteID:      p.config.AthleteID,
		UploadClient:   p.config.UploadClient,
	})
	p.metrics.ObserveUpload(time.Since(uploadStart))

	if outcome.Kind == upload.OutcomeUploaded {
		*sent = size
	}
	return outcome
}

func (p *TaskProcessor) logOutcome(task FileTask, outcome upload.Outcome) {
	file := zap.String("file", task.FileName)

	switch outcome.Kind {
	case upload.OutcomeUploaded:
		p.logger.Info("Successfully uploaded FIT file", file, zap.Int("status", outcome.StatusCode))
	case upload.OutcomeRejected:
		p.logger.Warn("Failed to upload FIT file",
			file,
			zap.Int("status", outcome.StatusCode),
			zap.String("response", outcome.Message),
		)
	case upload.OutcomeSkipped:
		p.logger.Debug("Skipping non-workout FIT file", file, zap.String("reason", outcome.Message))
	default:
		msg := "Failed to upload FIT file"
		switch {
		case errors.Is(outcome.Err, fitfile.ErrDecode):
			msg = "Cannot classify FIT file"
		case errors.Is(outcome.Err, fitfile.ErrRead):
			msg = "Cannot read FIT file"
		}
		p.logger.Error(msg, file, zap.Error(outcome.Err))
	}
}
