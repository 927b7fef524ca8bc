// Package inference contains the common components for running a latency
// benchmark against a model-serving endpoint and summarizing the results.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cheggaaa/pb/v3"
	"golang.org/x/time/rate"

	"github.com/aiserving/mvbench/serving"
)

const (
	labelAllRequests = "All requests"

	resultFormatVersion = "0.1"

	// hdr histogram bounds, in microseconds
	minHDRLatency = 1
	maxHDRLatency = 60_000_000
)

// ClientFactory builds one transport client per worker.
type ClientFactory func() (serving.Client, error)

// RequestFactory builds the inference request a worker sends for a given
// sequence number.
type RequestFactory func(workerNum int, seq uint64) *serving.InferRequest

// BenchmarkRunner contains the common components for running an inference
// benchmarking program against a serving endpoint.
type BenchmarkRunner struct {
	// flag fields
	requests        uint64
	workers         uint
	maxRPS          uint64
	batchSize       int
	requestTimeout  time.Duration
	printResponses  bool
	showProgress    bool
	debug           int
	outputFileName  string
	testDescription string
	reportingPeriod time.Duration

	// non-flag fields
	sp             *statProcessor
	latencyHDR     *hdrhistogram.Histogram
	hdrMu          sync.Mutex
	inferenceCount uint64

	stop    chan struct{}
	runErr  error
	errOnce sync.Once
}

// NewBenchmarkRunner creates a new instance of BenchmarkRunner which is
// common functionality to be used by inference benchmarker programs
func NewBenchmarkRunner() *BenchmarkRunner {
	runner := &BenchmarkRunner{}
	runner.sp = &statProcessor{
		limit: &runner.requests,
	}
	runner.latencyHDR = hdrhistogram.New(minHDRLatency, maxHDRLatency, 3)

	flag.Uint64Var(&runner.requests, "requests", 1000, "Number of requests to send")
	flag.Uint64Var(&runner.sp.burnIn, "burn-in", 0, "Number of requests to ignore before collecting statistics.")
	flag.Uint64Var(&runner.sp.printInterval, "print-interval", 0, "Print timing stats to stderr after this many requests (0 to disable)")
	flag.UintVar(&runner.workers, "workers", 1, "Number of concurrent requests to make.")
	flag.Uint64Var(&runner.maxRPS, "max-rps", 0, "Max overall requests per second, 0 = no limit")
	flag.IntVar(&runner.batchSize, "batch-size", 1, "Number of items processed per request, used to derive throughput")
	flag.DurationVar(&runner.requestTimeout, "request-timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&runner.printResponses, "print-responses", false, "Pretty print response bodies for correctness checking (default false).")
	flag.BoolVar(&runner.showProgress, "progress", false, "Show a progress bar while the benchmark runs.")
	flag.IntVar(&runner.debug, "debug", 0, "Whether to print debug messages.")
	flag.StringVar(&runner.outputFileName, "output-file", "", "File name to output the test result summary to, in JSON format")
	flag.StringVar(&runner.testDescription, "test-description", "", "Free-form description stored in the test result summary")
	flag.DurationVar(&runner.reportingPeriod, "reporting-period", 1*time.Second, "Period to report request rate stats")

	return runner
}

// SetRequests changes the number of requests to run.
func (b *BenchmarkRunner) SetRequests(requests uint64) {
	b.requests = requests
}

// DoPrintResponses indicates whether responses should be printed
func (b *BenchmarkRunner) DoPrintResponses() bool {
	return b.printResponses
}

// DebugLevel returns the level of debug messages for this benchmark
func (b *BenchmarkRunner) DebugLevel() int {
	return b.debug
}

// BatchSize returns the number of items processed per request
func (b *BenchmarkRunner) BatchSize() int {
	return b.batchSize
}

// RequestTimeout returns the per-request timeout
func (b *BenchmarkRunner) RequestTimeout() time.Duration {
	return b.requestTimeout
}

// Run does the bulk of the benchmark execution. It launches a goroutine to
// track stats, creates workers that each dial their own connection, drives
// the configured number of requests through them, prints the summary
// report, and optionally writes a JSON test result file.
func (b *BenchmarkRunner) Run(label string, newClient ClientFactory, newRequest RequestFactory) error {
	if b.workers == 0 {
		return fmt.Errorf("must have at least one worker")
	}
	if b.requests == 0 {
		return fmt.Errorf("must send at least one request")
	}
	if b.sp.burnIn >= b.requests {
		return fmt.Errorf("burn-in must be smaller than the number of requests")
	}
	if b.batchSize <= 0 {
		return errBadBatchSize
	}

	b.stop = make(chan struct{})

	// Launch the stats processor:
	go b.sp.process(b.workers, true)

	var bar *pb.ProgressBar
	if b.showProgress {
		bar = pb.Start64(int64(b.requests))
	}

	var limiter *rate.Limiter
	if b.maxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.maxRPS), int(b.workers))
	}

	ch := make(chan uint64, b.workers)
	go func() {
		defer close(ch)
		for seq := uint64(0); seq < b.requests; seq++ {
			select {
			case ch <- seq:
			case <-b.stop:
				return
			}
		}
	}()

	// Wall clock start time
	wallStart := time.Now()

	// Start background reporting process
	if b.reportingPeriod.Nanoseconds() > 0 {
		go b.report(b.reportingPeriod, wallStart)
	}

	var wg sync.WaitGroup
	for i := 0; i < int(b.workers); i++ {
		wg.Add(1)
		go b.worker(&wg, i, label, newClient, newRequest, ch, limiter, bar)
	}

	// Block for workers to finish sending requests, closing the stats channel when done:
	wg.Wait()
	b.sp.CloseAndWait()

	if bar != nil {
		bar.Finish()
	}

	// Wall clock end time
	wallEnd := time.Now()
	wallTook := wallEnd.Sub(wallStart)
	if _, err := fmt.Printf("Took: %8.3f sec\n", wallTook.Seconds()); err != nil {
		log.Fatal(err)
	}

	if b.runErr != nil {
		return b.runErr
	}

	samples := b.sp.allSamples()
	if err := ReportStatistics(os.Stdout, samples, b.batchSize); err != nil {
		return err
	}

	if len(b.outputFileName) > 0 {
		if err := b.writeTestResult(wallStart, wallEnd); err != nil {
			return err
		}
	}

	return nil
}

func (b *BenchmarkRunner) worker(wg *sync.WaitGroup, workerNum int, label string, newClient ClientFactory, newRequest RequestFactory, ch chan uint64, limiter *rate.Limiter, bar *pb.ProgressBar) {
	defer wg.Done()

	client, err := newClient()
	if err != nil {
		b.fail(fmt.Errorf("worker %d: creating client: %w", workerNum, err))
		return
	}
	defer client.Close()

	labelBytes := []byte(label)

	for seq := range ch {
		select {
		case <-b.stop:
			return
		default:
		}
		if limiter != nil {
			if err := limiter.Wait(context.Background()); err != nil {
				b.fail(err)
				return
			}
		}

		req := newRequest(workerNum, seq)
		ctx, cancel := context.WithTimeout(context.Background(), b.requestTimeout)

		start := time.Now()
		resp, err := client.Infer(ctx, req)
		took := float64(time.Since(start).Nanoseconds()) / 1e6
		cancel()

		timedOut := false
		if err != nil {
			if isTimeout(err) {
				// A timeout is a measurement, not a benchmark failure.
				timedOut = true
			} else {
				b.fail(fmt.Errorf("worker %d: inference failed: %w", workerNum, err))
				return
			}
		}

		atomic.AddUint64(&b.inferenceCount, 1)
		b.recordHDR(took)

		stat := GetStat()
		stat.Init(labelBytes, took, timedOut)
		b.sp.sendStats([]*Stat{stat})

		if b.printResponses && resp != nil {
			fmt.Println("RESPONSE: ", resp)
		}
		if b.debug > 0 {
			log.Printf("worker %d request %d took %.3f ms", workerNum, seq, took)
		}
		if bar != nil {
			bar.Increment()
		}
	}
}

func (b *BenchmarkRunner) fail(err error) {
	b.errOnce.Do(func() {
		b.runErr = err
		close(b.stop)
	})
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (b *BenchmarkRunner) recordHDR(tookMs float64) {
	b.hdrMu.Lock()
	defer b.hdrMu.Unlock()
	_ = b.latencyHDR.RecordValue(int64(tookMs * 1000))
}

// report handles periodic reporting of request rate stats
func (b *BenchmarkRunner) report(period time.Duration, start time.Time) {
	prevTime := start
	prevInfCount := uint64(0)

	fmt.Printf("time (ns),total inferences,instantaneous inferences/s,overall inferences/s\n")
	for now := range time.NewTicker(period).C {
		infCount := atomic.LoadUint64(&b.inferenceCount)

		sinceStart := now.Sub(start)
		took := now.Sub(prevTime)
		instantInfRate := float64(infCount-prevInfCount) / took.Seconds()
		overallInfRate := float64(infCount) / sinceStart.Seconds()

		fmt.Printf("%d,%d,%0.2f,%0.2f\n", now.UnixNano(), infCount, instantInfRate, overallInfRate)

		prevInfCount = infCount
		prevTime = now
	}
}

func (b *BenchmarkRunner) writeTestResult(start, end time.Time) error {
	b.hdrMu.Lock()
	defer b.hdrMu.Unlock()

	quantileMs := func(q float64) float64 {
		return float64(b.latencyHDR.ValueAtQuantile(q)) / 1e3
	}

	result := TestResult{
		ResultFormatVersion: resultFormatVersion,
		Requests:            b.requests,
		BatchSize:           b.batchSize,
		Workers:             b.workers,
		MaxRps:              b.maxRPS,
		TestDescription:     b.testDescription,
		StartTime:           start.UnixMilli(),
		EndTime:             end.UnixMilli(),
		DurationMillis:      end.Sub(start).Milliseconds(),
		Totals: map[string]interface{}{
			"inferences": atomic.LoadUint64(&b.inferenceCount),
		},
		OverallRates: map[string]interface{}{
			"overallInferenceRate": float64(atomic.LoadUint64(&b.inferenceCount)) / end.Sub(start).Seconds(),
		},
		OverallQuantiles: map[string]interface{}{
			"q50":  quantileMs(50),
			"q90":  quantileMs(90),
			"q95":  quantileMs(95),
			"q99":  quantileMs(99),
			"q999": quantileMs(99.9),
		},
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.outputFileName, data, 0o644)
}
