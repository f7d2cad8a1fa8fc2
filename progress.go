package main

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
)

// progress logs how far a long job has come. Add is safe for concurrent use.
type progress struct {
	name  string
	total uint64
	step  uint64
	done  atomic.Uint64
	start time.Time
}

// newProgress reports roughly every tenth of total.
func newProgress(name string, total int) *progress {
	step := uint64(total / 10)
	if step == 0 {
		step = 1
	}
	return &progress{name: name, total: uint64(total), step: step, start: time.Now()}
}

func (p *progress) Add(n int) {
	if n <= 0 {
		return
	}
	before := p.done.Add(uint64(n)) - uint64(n)
	after := before + uint64(n)
	if before/p.step == after/p.step || p.total == 0 {
		return
	}
	glog.V(1).Infof("%s: %s / %s (%d%%)", p.name,
		humanize.Comma(int64(after)), humanize.Comma(int64(p.total)), after*100/p.total)
}

// Finish logs the final count and elapsed time.
func (p *progress) Finish() {
	glog.Infof("%s: %s done in %s", p.name,
		humanize.Comma(int64(p.done.Load())), time.Since(p.start).Round(time.Millisecond))
}
