package daemon

import (
	"sync"
)

// Metrics counts the daemon's file and line activity.
type Metrics struct {
	mu                 sync.RWMutex
	filesDiscovered    int
	filesProcessed     int
	filesFailed        int
	queuedFiles        int
	filesQueueCapacity int
	workersActive      int
	workersBusy        int
	linesForwarded     int
	linesRejected      int
	scaleUps           int
	scaleDowns         int
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	FilesDiscovered    int
	FilesProcessed     int
	FilesFailed        int
	QueuedFiles        int
	FilesQueueCapacity int
	WorkersActive      int
	WorkersBusy        int
	LinesForwarded     int
	LinesRejected      int
	ScaleUps           int
	ScaleDowns         int
}

func NewMetrics(queueCapacity int) *Metrics {
	return &Metrics{filesQueueCapacity: queueCapacity}
}

func (m *Metrics) add(field *int, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field += delta
}

func (m *Metrics) IncFilesDiscovered() { m.add(&m.filesDiscovered, 1) }
func (m *Metrics) IncFilesProcessed()  { m.add(&m.filesProcessed, 1) }
func (m *Metrics) IncFilesFailed()     { m.add(&m.filesFailed, 1) }
func (m *Metrics) IncQueuedFiles()     { m.add(&m.queuedFiles, 1) }
func (m *Metrics) DecQueuedFiles()     { m.add(&m.queuedFiles, -1) }
func (m *Metrics) IncWorkersActive()   { m.add(&m.workersActive, 1) }
func (m *Metrics) DecWorkersActive()   { m.add(&m.workersActive, -1) }
func (m *Metrics) IncWorkersBusy()     { m.add(&m.workersBusy, 1) }
func (m *Metrics) DecWorkersBusy()     { m.add(&m.workersBusy, -1) }
func (m *Metrics) IncLinesForwarded()  { m.add(&m.linesForwarded, 1) }
func (m *Metrics) IncLinesRejected()   { m.add(&m.linesRejected, 1) }
func (m *Metrics) IncScaleUps()        { m.add(&m.scaleUps, 1) }
func (m *Metrics) IncScaleDowns()      { m.add(&m.scaleDowns, 1) }

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		FilesDiscovered:    m.filesDiscovered,
		FilesProcessed:     m.filesProcessed,
		FilesFailed:        m.filesFailed,
		QueuedFiles:        m.queuedFiles,
		FilesQueueCapacity: m.filesQueueCapacity,
		WorkersActive:      m.workersActive,
		WorkersBusy:        m.workersBusy,
		LinesForwarded:     m.linesForwarded,
		LinesRejected:      m.linesRejected,
		ScaleUps:           m.scaleUps,
		ScaleDowns:         m.scaleDowns,
	}
}

// QueueUsage is the fill ratio of the file queue.
func (s Snapshot) QueueUsage() float64 {
	if s.FilesQueueCapacity == 0 {
		return 0
	}
	return float64(s.QueuedFiles) / float64(s.FilesQueueCapacity)
}
