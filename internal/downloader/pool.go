// Package downloader runs image downloads through a small worker pool.
// The default configuration uses a single worker, giving the sequential
// asset-by-asset behavior the crawler wants, with the pacing interval
// applied between downloads.
package downloader

import (
	"bytes"
	"io"
	"math/rand"
	"sync"
	"time"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/ratelimit"
)

// Job is a single image download task.
type Job struct {
	URL      string
	PostID   string
	Filename string
}

// Result reports one finished job.
type Result struct {
	Job      Job
	Path     string
	Skipped  bool
	Err      error
	Size     int
	Duration time.Duration
}

// ImageFetcher retrieves raw image bytes.
type ImageFetcher interface {
	FetchImage(url string) ([]byte, error)
}

// ImageStore persists images and answers duplicate queries.
type ImageStore interface {
	IsDownloaded(filename string) bool
	SaveImage(r io.Reader, filename string) (string, error)
}

// PoolConfig configures a download pool.
type PoolConfig struct {
	// Workers is the download concurrency; values < 1 become 1.
	Workers int
	// AssetInterval is slept between successive downloads on each
	// worker.
	AssetInterval config.Window
}

// Pool coordinates download workers.
type Pool struct {
	cfg     PoolConfig
	fetcher ImageFetcher
	store   ImageStore
	limiter ratelimit.Limiter
	logger  logger.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(time.Duration)
}

// NewPool creates a download pool. The limiter may be nil.
func NewPool(cfg PoolConfig, fetcher ImageFetcher, store ImageStore, limiter ratelimit.Limiter, log logger.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		limiter: limiter,
		logger:  log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
	}
}

// Run downloads every job and returns all results. It blocks until the
// last worker finishes.
func (p *Pool) Run(jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	p.logger.DebugWithFields("starting download workers", map[string]interface{}{
		"workers": p.cfg.Workers,
		"jobs":    len(jobs),
	})

	jobCh := make(chan Job)
	resultCh := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go p.worker(&wg, jobCh, resultCh)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)

	results := make([]Result, 0, len(jobs))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}

func (p *Pool) worker(wg *sync.WaitGroup, jobs <-chan Job, results chan<- Result) {
	defer wg.Done()

	first := true
	for job := range jobs {
		if !first {
			p.pause()
		}
		first = false
		results <- p.download(job)
	}
}

// pause applies the inter-asset delay.
func (p *Pool) pause() {
	w := p.cfg.AssetInterval
	if w.IsZero() {
		return
	}
	span := w.Max - w.Min
	delay := w.Min
	if span > 0 {
		p.mu.Lock()
		delay += time.Duration(p.rng.Int63n(int64(span) + 1))
		p.mu.Unlock()
	}
	if delay > 0 {
		p.sleep(delay)
	}
}

func (p *Pool) download(job Job) Result {
	start := time.Now()

	if p.store.IsDownloaded(job.Filename) {
		p.logger.DebugWithFields("skipping already downloaded image", map[string]interface{}{
			"filename": job.Filename,
		})
		return Result{Job: job, Skipped: true, Duration: time.Since(start)}
	}

	if p.limiter != nil {
		p.limiter.Wait()
	}

	data, err := p.fetcher.FetchImage(job.URL)
	if err != nil {
		p.logger.WarnWithFields("image download failed", map[string]interface{}{
			"url":     job.URL,
			"post_id": job.PostID,
			"error":   err.Error(),
		})
		return Result{Job: job, Err: err, Duration: time.Since(start)}
	}

	path, err := p.store.SaveImage(bytes.NewReader(data), job.Filename)
	if err != nil {
		p.logger.WarnWithFields("image save failed", map[string]interface{}{
			"filename": job.Filename,
			"error":    err.Error(),
		})
		return Result{Job: job, Err: err, Duration: time.Since(start)}
	}

	return Result{Job: job, Path: path, Size: len(data), Duration: time.Since(start)}
}
