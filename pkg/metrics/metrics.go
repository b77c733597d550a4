// Package metrics tracks pipeline stage timings and exposes a rolling
// summary alongside the daemon's status op. Grounded on
// _examples/original_source/backend/app/metrics.py's PipelineMetrics:
// fixed-size rolling windows of per-stage durations plus a running
// total, with no retention beyond the window.
package metrics

import "sync"

// maxSamples bounds each stage's rolling window, mirroring the
// original's deque(maxlen=100).
const maxSamples = 100

// Summary is the "/status"-adjacent metrics snapshot (spec.md §6: no
// dedicated op is named for this, so it rides alongside status).
type Summary struct {
	AvgExtractionMS     float64 `json:"avg_extraction_ms"`
	AvgEmbeddingMS      float64 `json:"avg_embedding_ms"`
	LastClusteringMS    float64 `json:"last_clustering_ms"`
	TotalFilesProcessed int64   `json:"total_files_processed"`
	ExtractionCount     int     `json:"extraction_count"`
	EmbeddingCount      int     `json:"embedding_count"`
	ClusteringCount     int     `json:"clustering_count"`
}

// Recorder accumulates per-stage timing samples for the extraction,
// embedding, and clustering stages of the pipeline. Safe for
// concurrent use: the pipeline records from whatever goroutine is
// handling a given file or recluster run.
type Recorder struct {
	mu sync.Mutex

	extractionMS []float64
	embeddingMS  []float64
	clusteringMS []float64

	totalFilesProcessed int64
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

func pushSample(window []float64, ms float64) []float64 {
	window = append(window, ms)
	if len(window) > maxSamples {
		window = window[len(window)-maxSamples:]
	}
	return window
}

// RecordExtraction appends one extraction-stage timing sample.
func (r *Recorder) RecordExtraction(ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractionMS = pushSample(r.extractionMS, ms)
}

// RecordEmbedding appends one embedding-stage timing sample.
func (r *Recorder) RecordEmbedding(ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddingMS = pushSample(r.embeddingMS, ms)
}

// RecordClustering appends one full-recluster timing sample.
func (r *Recorder) RecordClustering(ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusteringMS = pushSample(r.clusteringMS, ms)
}

// IncFilesProcessed bumps the running total of files that completed
// ingestion (new insert or re-embed), independent of the rolling
// windows above.
func (r *Recorder) IncFilesProcessed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalFilesProcessed++
}

func average(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	return roundTo1(sum / float64(len(window)))
}

// roundTo1 rounds to one decimal place, matching the original's
// round(x, 1).
func roundTo1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// Summary returns the current rolling averages and counts. The
// clustering figure is the most recent sample rather than an average,
// since full reclusters are comparatively rare and the latest run is
// the more actionable number (matches the original's
// last_clustering_ms).
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastClustering float64
	if n := len(r.clusteringMS); n > 0 {
		lastClustering = roundTo1(r.clusteringMS[n-1])
	}

	return Summary{
		AvgExtractionMS:     average(r.extractionMS),
		AvgEmbeddingMS:      average(r.embeddingMS),
		LastClusteringMS:    lastClustering,
		TotalFilesProcessed: r.totalFilesProcessed,
		ExtractionCount:     len(r.extractionMS),
		EmbeddingCount:      len(r.embeddingMS),
		ClusteringCount:     len(r.clusteringMS),
	}
}
