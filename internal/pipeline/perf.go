package pipeline

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/yok-tottii/speak/internal/recognition"
)

// Monitor accumulates transcription statistics for the status command.
type Monitor struct {
	mu     sync.Mutex
	last   recognition.Result
	total  int
	rtfSum float64
}

// Record folds one finished transcription into the running stats.
func (m *Monitor) Record(r *recognition.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = *r
	m.total++
	m.rtfSum += r.RealTimeFactor()
}

// Total returns how many transcriptions have been recorded.
func (m *Monitor) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// AverageRTF returns the mean real-time factor, 0 before the first
// recorded transcription.
func (m *Monitor) AverageRTF() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.total == 0 {
		return 0
	}
	return m.rtfSum / float64(m.total)
}

// Last returns a copy of the most recent result.
func (m *Monitor) Last() recognition.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ResidentMemoryMB returns the process resident set size in megabytes,
// 0 when it cannot be read.
func ResidentMemoryMB() float64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return float64(info.RSS) / (1024 * 1024)
}
