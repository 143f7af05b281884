package vitals

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Reading is one vital-sign sample. Values travel as strings because the
// sensor firmware reports them that way.
type Reading struct {
	BPM       string `json:"bpm"`
	SpO2      string `json:"spo2"`
	Timestamp int64  `json:"timestamp"`
}

// Service caches the most recent real reading and synthesizes realistic
// mock readings when the real one has gone stale.
type Service struct {
	mu          sync.RWMutex
	mockEnabled bool
	freshness   time.Duration
	latest      *Reading
	updatedAt   time.Time
	now         func() time.Time
}

// NewService returns a vitals cache. freshness bounds how long a real
// reading is preferred over a mock one.
func NewService(mockEnabled bool, freshness time.Duration) *Service {
	return &Service{
		mockEnabled: mockEnabled,
		freshness:   freshness,
		now:         time.Now,
	}
}

// Record stores a reading from the sensor gateway, stamping it with the
// current time when the sample carries none.
func (s *Service) Record(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Timestamp == 0 {
		r.Timestamp = s.now().UnixMilli()
	}
	s.latest = &r
	s.updatedAt = s.now()
}

// Latest returns the reading to serve: the real one while fresh, a mock
// one when mocking is enabled, otherwise the stale real reading. The
// second return is false only when nothing is available at all.
func (s *Service) Latest() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest != nil && s.now().Sub(s.updatedAt) < s.freshness {
		return *s.latest, true
	}
	if s.mockEnabled {
		return s.mock(), true
	}
	if s.latest != nil {
		return *s.latest, true
	}
	return Reading{}, false
}

// mock produces a plausible sample around a resting baseline.
func (s *Service) mock() Reading {
	const (
		baseHeartRate = 82
		baseSpO2      = 98
	)
	bpm := clamp(baseHeartRate+rand.Intn(8)-3, 60, 100)
	spo2 := clamp(baseSpO2+rand.Intn(3)-1, 95, 100)
	return Reading{
		BPM:       strconv.Itoa(bpm),
		SpO2:      strconv.Itoa(spo2),
		Timestamp: s.now().UnixMilli(),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
