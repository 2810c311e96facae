package extmem

import (
	"sync/atomic"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics describes the allocations currently live in a Pool
type Statistics struct {
	// BlockCount is the number of device memory allocations that have been
	// made for exportable resources and not yet freed
	BlockCount int
	// BlockBytes is the total byte size of those allocations
	BlockBytes int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.BlockBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.BlockBytes += other.BlockBytes
}

func (s *Statistics) PrintJSON(json *jwriter.ObjectState) {
	json.Name("BlockCount").Int(s.BlockCount)
	json.Name("BlockBytes").Int(s.BlockBytes)
}

// CalculateStatistics snapshots the pool's live allocation counters
func (p *Pool) CalculateStatistics(stats *Statistics) {
	stats.BlockCount = int(atomic.LoadInt32(&p.blockCount))
	stats.BlockBytes = int(atomic.LoadInt64(&p.blockBytes))
}

// BuildStatsString writes a JSON snapshot of the pool's state, for sample
// stats overlays and debug dumps
func (p *Pool) BuildStatsString(writer *jwriter.Writer) {
	var stats Statistics
	p.CalculateStatistics(&stats)

	obj := writer.Object()

	obj.Name("HandleType").Int(int(p.handleType))

	statsObj := obj.Name("Statistics").Object()
	stats.PrintJSON(&statsObj)
	statsObj.End()

	obj.End()
}
