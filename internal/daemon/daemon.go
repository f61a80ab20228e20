// Package daemon discovers log files under a root directory and forwards every new line
// to a LogSink as a log record.
package daemon

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

// LogSink receives one call per tailed line.
type LogSink interface {
	TaggedLog(tag, level, message string, context map[string]any) error
}

type Service struct {
	config        Config
	sink          LogSink
	logger        *zap.Logger
	fileQueue     chan string
	workersWg     sync.WaitGroup
	subServicesWg sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	metrics       *Metrics

	// retire is taken by an idle worker that should exit
	retire         chan struct{}
	scaleMu        sync.Mutex
	currentWorkers int
	nextWorkerID   int

	seenMu    sync.Mutex
	seenFiles map[string]struct{}
}

type Config struct {
	LogRootPath  string
	ScanInterval time.Duration
	// Workers is the pool size kept at all times. The pool grows up to MaxWorkers while
	// the file queue and the workers are both above ScaleUpThreshold, and shrinks back
	// once both fall below ScaleDownThreshold.
	Workers            int
	MaxWorkers         int
	ScaleUpThreshold   float64 // default: 0.9
	ScaleDownThreshold float64 // default: 0.3
	ScaleCheckInterval time.Duration
	FileQueueSize      int
	NodeName           string
	// If > 0, stop tailing a file after this period without new lines
	FileIdleTimeout time.Duration
	// ReportInterval controls the periodic metrics log line. Zero disables it.
	ReportInterval time.Duration
	// FromStart reads discovered files from their first line instead of their end.
	FromStart bool
}

// NewService creates 3 + config.Workers goroutines on Start.
func NewService(ctx context.Context, config Config, sink LogSink, logger *zap.Logger) *Service {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.FileQueueSize <= 0 {
		config.FileQueueSize = 1
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 30 * time.Second
	}
	if config.MaxWorkers < config.Workers {
		config.MaxWorkers = config.Workers
	}
	if config.ScaleUpThreshold <= 0 {
		config.ScaleUpThreshold = 0.9
	}
	if config.ScaleDownThreshold <= 0 {
		config.ScaleDownThreshold = 0.3
	}
	if config.ScaleCheckInterval <= 0 {
		config.ScaleCheckInterval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	nCtx, cancel := context.WithCancel(ctx)

	return &Service{
		config:    config,
		sink:      sink,
		logger:    logger.Named("daemon"),
		fileQueue: make(chan string, config.FileQueueSize),
		ctx:       nCtx,
		cancel:    cancel,
		metrics:   NewMetrics(config.FileQueueSize),
		retire:    make(chan struct{}),
		seenFiles: make(map[string]struct{}),
	}
}

func (s *Service) Metrics() *Metrics {
	return s.metrics
}

func (s *Service) Start() {
	s.logger.Info("daemon_starting",
		zap.String("root", s.config.LogRootPath),
		zap.Int("workers", s.config.Workers),
		zap.Int("max_workers", s.config.MaxWorkers),
		zap.Int("queue_size", s.config.FileQueueSize),
	)

	s.scaleMu.Lock()
	for i := 0; i < s.config.Workers; i++ {
		s.startWorkerLocked()
	}
	s.scaleMu.Unlock()

	s.subServicesWg.Add(1)
	go s.scanner()

	s.subServicesWg.Add(1)
	go s.autoscaler()

	s.subServicesWg.Add(1)
	go s.metricsReporter()
}

// Stop cancels tailing and waits for every goroutine to exit.
func (s *Service) Stop() {
	s.cancel()
	s.subServicesWg.Wait()

	close(s.fileQueue)
	s.workersWg.Wait()

	s.logger.Info("daemon_stopped")
}

func (s *Service) startWorkerLocked() {
	id := s.nextWorkerID
	s.nextWorkerID++
	s.currentWorkers++

	s.workersWg.Add(1)
	go s.worker(id)
}

func (s *Service) workerCount() int {
	s.scaleMu.Lock()
	defer s.scaleMu.Unlock()
	return s.currentWorkers
}

func (s *Service) autoscaler() {
	defer s.subServicesWg.Done()
	if s.config.MaxWorkers <= s.config.Workers {
		return
	}

	ticker := time.NewTicker(s.config.ScaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.adjustWorkers()

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) adjustWorkers() {
	m := s.metrics.Snapshot()

	s.scaleMu.Lock()
	defer s.scaleMu.Unlock()

	queueUsage := m.QueueUsage()
	utilization := 0.0
	if s.currentWorkers > 0 {
		utilization = float64(m.WorkersBusy) / float64(s.currentWorkers)
	}

	switch {
	case queueUsage > s.config.ScaleUpThreshold &&
		utilization > s.config.ScaleUpThreshold &&
		s.currentWorkers < s.config.MaxWorkers:
		s.startWorkerLocked()
		s.metrics.IncScaleUps()
		s.logger.Info("workers_scaled_up",
			zap.Int("workers", s.currentWorkers),
			zap.Float64("queue_usage", queueUsage),
		)

	case queueUsage < s.config.ScaleDownThreshold &&
		utilization < s.config.ScaleDownThreshold &&
		s.currentWorkers > s.config.Workers:
		// only a worker waiting for a file can take the signal, so no tail is cut short
		select {
		case s.retire <- struct{}{}:
			s.currentWorkers--
			s.metrics.IncScaleDowns()
			s.logger.Info("workers_scaled_down",
				zap.Int("workers", s.currentWorkers),
				zap.Float64("queue_usage", queueUsage),
			)
		default:
		}
	}
}

func (s *Service) worker(id int) {
	defer s.workersWg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker_panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()

	s.metrics.IncWorkersActive()
	defer s.metrics.DecWorkersActive()

	for {
		select {
		case filePath, ok := <-s.fileQueue:
			if !ok {
				return
			}
			s.metrics.DecQueuedFiles()
			s.metrics.IncWorkersBusy()
			s.processFile(s.ctx, filePath)
			s.metrics.DecWorkersBusy()

		case <-s.retire:
			s.logger.Debug("worker_retired", zap.Int("worker", id))
			return

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) processFile(ctx context.Context, filePath string) {
	defer s.metrics.IncFilesProcessed()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("file_processing_panicked", zap.String("file", filePath), zap.Any("panic", r))
			s.metrics.IncFilesFailed()
		}
	}()

	cfg := tail.Config{
		Follow: true,
		ReOpen: true,
		Poll:   true,
		Logger: tail.DiscardingLogger,
	}
	if !s.config.FromStart {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(filePath, cfg)
	if err != nil {
		s.logger.Warn("tail_failed", zap.String("file", filePath), zap.Error(err))
		s.metrics.IncFilesFailed()
		return
	}
	defer t.Cleanup()
	defer t.Stop()

	checkEvery := time.Second
	if idle := s.config.FileIdleTimeout; idle > 0 && idle < checkEvery {
		checkEvery = idle
	}
	checkTicker := time.NewTicker(checkEvery)
	defer checkTicker.Stop()

	tag := filepath.Base(filePath)
	labels := s.labels(filePath)
	lastActivity := time.Now()

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line == nil {
				continue
			}
			if line.Err != nil {
				s.logger.Warn("tail_read_failed", zap.String("file", filePath), zap.Error(line.Err))
				continue
			}
			lastActivity = time.Now()
			s.forward(tag, line.Text, labels)

		case <-checkTicker.C:
			// waking up from blocking line reading to check the idle timeout
			if s.config.FileIdleTimeout > 0 && time.Since(lastActivity) > s.config.FileIdleTimeout {
				if !s.config.FromStart {
					// a later scan picks the file up again from its end
					s.forget(filePath)
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) forward(tag, text string, labels map[string]string) {
	text = strings.TrimRight(text, "\r")
	if strings.TrimSpace(text) == "" {
		return
	}

	fields := make(map[string]any, len(labels))
	for k, v := range labels {
		fields[k] = v
	}
	if err := s.sink.TaggedLog(tag, detectLevel(text), text, fields); err != nil {
		s.metrics.IncLinesRejected()
		s.logger.Debug("line_rejected", zap.String("tag", tag), zap.Error(err))
		return
	}
	s.metrics.IncLinesForwarded()
}

func (s *Service) scanner() {
	defer s.subServicesWg.Done()

	s.scanFiles()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scanFiles()

		case <-s.ctx.Done():
			return
		}
	}
}

// scanFiles queues files not seen before. A file whose queue slot was unavailable is
// retried on the next scan.
func (s *Service) scanFiles() {
	files, err := s.discoverLogFiles()
	if err != nil {
		s.logger.Warn("discover_failed", zap.String("root", s.config.LogRootPath), zap.Error(err))
		return
	}

	for _, file := range files {
		if !s.markSeen(file) {
			continue
		}
		s.metrics.IncFilesDiscovered()

		select {
		case s.fileQueue <- file:
			s.metrics.IncQueuedFiles()
		case <-s.ctx.Done():
			return
		default:
			s.forget(file)
			s.logger.Warn("file_queue_full",
				zap.Int("queued", len(s.fileQueue)),
				zap.Int("capacity", cap(s.fileQueue)),
				zap.String("file", file),
			)
		}
	}
}

func (s *Service) markSeen(file string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if _, ok := s.seenFiles[file]; ok {
		return false
	}
	s.seenFiles[file] = struct{}{}
	return true
}

func (s *Service) forget(file string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	delete(s.seenFiles, file)
}

func (s *Service) metricsReporter() {
	defer s.subServicesWg.Done()
	if s.config.ReportInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m := s.metrics.Snapshot()
			s.logger.Info("daemon_metrics",
				zap.Int("workers_active", m.WorkersActive),
				zap.Int("workers_busy", m.WorkersBusy),
				zap.Int("queued_files", m.QueuedFiles),
				zap.Float64("queue_usage", m.QueueUsage()),
				zap.Int("files_processed", m.FilesProcessed),
				zap.Int("files_discovered", m.FilesDiscovered),
				zap.Int("lines_forwarded", m.LinesForwarded),
				zap.Int("lines_rejected", m.LinesRejected),
				zap.Int("scale_ups", m.ScaleUps),
				zap.Int("scale_downs", m.ScaleDowns),
			)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) discoverLogFiles() ([]string, error) {
	var logFiles []string

	err := filepath.Walk(s.config.LogRootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Debug("walk_failed", zap.String("path", path), zap.Error(err))
			return nil
		}

		if !info.IsDir() && strings.HasSuffix(info.Name(), ".log") {
			logFiles = append(logFiles, path)
		}
		return nil
	})

	return logFiles, err
}

// labels describes where a line came from: the node, the file name and its directory
// relative to the scanned root.
func (s *Service) labels(filePath string) map[string]string {
	labels := map[string]string{
		"node": s.config.NodeName,
		"file": filepath.Base(filePath),
	}

	dir := filepath.Dir(filePath)
	if rel, err := filepath.Rel(s.config.LogRootPath, dir); err == nil && !strings.HasPrefix(rel, "..") {
		dir = rel
	}
	labels["dir"] = filepath.ToSlash(dir)
	return labels
}

func detectLevel(line string) string {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "FATAL"), strings.Contains(upper, "PANIC"):
		return "fatal"
	case strings.Contains(upper, "ERROR"):
		return "error"
	case strings.Contains(upper, "WARN"):
		return "warn"
	case strings.Contains(upper, "DEBUG"):
		return "debug"
	default:
		return "info"
	}
}
