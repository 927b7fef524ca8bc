package inference

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// statProcessor is used to collect, analyze, and print inference execution statistics.
type statProcessor struct {
	c             chan *Stat // c is the channel for Stats to be sent for processing
	limit         *uint64    // limit is the number of statistics to analyze before stopping
	burnIn        uint64     // burnIn is the number of statistics to ignore before analyzing
	printInterval uint64     // printInterval is how often print intermediate stats (number of queries)
	wg            sync.WaitGroup
	StatsMapping  map[string]*statGroup
	opsCount      uint64
}

func (sp *statProcessor) sendStats(stats []*Stat) {
	if stats == nil {
		return
	}

	for _, s := range stats {
		sp.c <- s
	}
}

// process collects latency results, aggregating them into summary
// statistics. Optionally, intermediate stats are printed to stderr at
// regular intervals.
func (sp *statProcessor) process(workers uint, printStats bool) {
	sp.c = make(chan *Stat, workers)
	sp.wg.Add(1)
	const allRequestsLabel = labelAllRequests
	sp.StatsMapping = map[string]*statGroup{
		allRequestsLabel: newStatGroup(*sp.limit),
	}

	i := uint64(0)
	start := time.Now()
	for stat := range sp.c {
		sp.opsCount++
		if sp.opsCount <= sp.burnIn {
			statPool.Put(stat)
			continue
		} else if sp.opsCount == sp.burnIn+1 && sp.burnIn > 0 {
			_, err := fmt.Fprintf(os.Stderr, "burn-in complete after %d requests with %d workers\n", sp.burnIn, workers)
			if err != nil {
				log.Fatal(err)
			}
		}
		if _, ok := sp.StatsMapping[string(stat.label)]; !ok {
			sp.StatsMapping[string(stat.label)] = newStatGroup(*sp.limit)
		}

		sp.StatsMapping[string(stat.label)].push(stat.value, stat.timedOut)
		sp.StatsMapping[allRequestsLabel].push(stat.value, stat.timedOut)
		i++

		if sp.printInterval > 0 && i%sp.printInterval == 0 {
			_, err := fmt.Fprintf(os.Stderr, "after %d requests:\n", i)
			if err != nil {
				log.Fatal(err)
			}
			err = writeStatGroupMap(os.Stderr, sp.StatsMapping)
			if err != nil {
				log.Fatal(err)
			}
		}

		statPool.Put(stat)
	}

	if printStats {
		sinceStart := time.Since(start)
		overallRate := float64(sp.opsCount) / sinceStart.Seconds()
		// the final stats output goes to stdout:
		_, err := fmt.Printf("Run complete after %d inferences with %d workers (Overall inference rate %0.2f inferences/sec):\n",
			sp.opsCount,
			workers,
			overallRate)
		if err != nil {
			log.Fatal(err)
		}
		err = writeStatGroupMap(os.Stdout, sp.StatsMapping)
		if err != nil {
			log.Fatal(err)
		}
	}

	sp.wg.Done()
}

// allSamples returns the latency values aggregated across all requests,
// for the final summary report.
func (sp *statProcessor) allSamples() []float64 {
	group, ok := sp.StatsMapping[labelAllRequests]
	if !ok {
		return nil
	}
	return group.samples()
}

// CloseAndWait closes the stats channel and blocks until the statProcessor has finished all the stats on its channel.
func (sp *statProcessor) CloseAndWait() {
	close(sp.c)
	sp.wg.Wait()
}
