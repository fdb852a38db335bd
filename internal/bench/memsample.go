package bench

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// sampler polls process resident memory at a fixed interval and keeps the
// peak observed between start and stop. Readings come from /proc; when procfs
// is unavailable the kernel's high-water mark from getrusage stands in.
type sampler struct {
	peak   atomic.Int64
	stopCh chan struct{}
	done   chan struct{}
	read   func() (int64, bool)
}

func startSampler(interval time.Duration) *sampler {
	s := &sampler{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		read:   readRSS,
	}
	s.sample()
	go s.loop(interval)
	return s
}

func (s *sampler) loop(interval time.Duration) {
	defer close(s.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			s.sample()
		}
	}
}

func (s *sampler) sample() {
	rss, ok := s.read()
	if !ok {
		return
	}
	for {
		cur := s.peak.Load()
		if rss <= cur || s.peak.CompareAndSwap(cur, rss) {
			return
		}
	}
}

// stop ends sampling, takes one final reading and returns the peak in bytes.
func (s *sampler) stop() int64 {
	close(s.stopCh)
	<-s.done
	s.sample()
	return s.peak.Load()
}

// readRSS returns current resident set size in bytes.
func readRSS() (int64, bool) {
	if p, err := procfs.Self(); err == nil {
		if st, err := p.Stat(); err == nil {
			return int64(st.ResidentMemory()), true
		}
	}
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, false
	}
	// Maxrss is the lifetime high-water mark in kilobytes. Coarser than a
	// live reading but still an upper bound on the run's peak.
	return ru.Maxrss * 1024, true
}
