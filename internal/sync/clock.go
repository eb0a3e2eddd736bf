// ABOUTME: Clock synchronization with drift compensation
// ABOUTME: Maps a stream sink's clock onto the local wall clock from client/time round trips
package sync

import (
	"fmt"
	"sync"
	"time"
)

const (
	// Samples with a longer round trip are discarded
	maxRTT = 100 * time.Millisecond

	// Round trips above this degrade the quality
	goodRTT = 50 * time.Millisecond

	// Residuals beyond this are treated as clock jumps and discarded
	maxResidual = 50 * time.Millisecond

	// Without a sample for this long the sync is lost
	staleAfter = 5 * time.Second
)

// Quality represents sync quality
type Quality int

const (
	QualityLost Quality = iota
	QualityDegraded
	QualityGood
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	case QualityLost:
		return "lost"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ClockSync tracks offset AND drift between the sink clock and the local
// clock. All times are microseconds; local times are Unix microseconds.
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64   // server - client
	drift          float64 // μs/μs
	rtt            int64
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // client time when offset/drift were last updated
	sampleCount    int
	anchored       bool
	smoothingRate  float64
}

// NewClockSync creates an unsynchronized clock
func NewClockSync() *ClockSync {
	return &ClockSync{
		smoothingRate: 0.1,
		quality:       QualityLost,
	}
}

// ClientMicros returns the local clock in Unix microseconds
func ClientMicros() int64 {
	return time.Now().UnixMicro()
}

// calculateOffset computes the round trip and the clock offset
// (positive = server ahead of client)
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return rtt, offset
}

// ProcessSyncResponse folds in one exchange: t1 client send, t2 server
// receive, t3 server send, t4 client receive
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measured := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	if rtt < 0 || rtt > maxRTT.Microseconds() {
		log.Debugf("Discarding sync sample: rtt %dμs", rtt)
		return
	}
	cs.lastSync = time.Now()

	switch cs.sampleCount {
	case 0:
		cs.offset = measured
		log.Infof("Initial sync: offset=%dμs, rtt=%dμs", measured, rtt)
	case 1:
		if dt := float64(t4 - cs.lastSyncMicros); dt > 0 {
			cs.drift = float64(measured-cs.offset) / dt
		}
		cs.offset = measured
		log.Debugf("Drift initialized: %.9f μs/μs", cs.drift)
	default:
		dt := float64(t4 - cs.lastSyncMicros)
		if dt <= 0 {
			log.Debugf("Discarding sync sample: non-monotonic time")
			return
		}
		predicted := cs.offset + int64(cs.drift*dt)
		residual := measured - predicted
		if residual > maxResidual.Microseconds() || residual < -maxResidual.Microseconds() {
			log.Warnf("Discarding sync sample: residual %dμs (clock jump?)", residual)
			return
		}
		cs.offset = predicted + int64(cs.smoothingRate*float64(residual))
		cs.drift += cs.smoothingRate * float64(residual) / dt
		log.Tracef("Sync #%d: offset=%dμs, drift=%.9f, residual=%dμs, rtt=%dμs",
			cs.sampleCount+1, cs.offset, cs.drift, residual, rtt)
	}

	cs.lastSyncMicros = t4
	cs.sampleCount++
	if rtt < goodRTT.Microseconds() {
		cs.quality = QualityGood
	} else {
		cs.quality = QualityDegraded
	}
}

// Anchor assumes serverMicros is the server clock right now. It only takes
// effect before the first real sample; the first sample replaces it.
func (cs *ClockSync) Anchor(serverMicros int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.sampleCount > 0 || cs.anchored {
		return
	}
	cs.offset = serverMicros - ClientMicros()
	cs.anchored = true
	log.Debugf("Anchored to first timestamp: offset=%dμs", cs.offset)
}

// Synced reports whether a sample or an anchor has been taken
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0 || cs.anchored
}

// Offset returns the current offset (server - client)
func (cs *ClockSync) Offset() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset
}

// Stats returns the latest round trip and the quality
func (cs *ClockSync) Stats() (rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.rtt, cs.quality
}

// CheckQuality marks the sync lost when no sample arrived recently
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.sampleCount > 0 && time.Since(cs.lastSync) > staleAfter {
		cs.quality = QualityLost
	}
	return cs.quality
}

// ServerToLocalTime converts a server timestamp to local wall clock time
func (cs *ClockSync) ServerToLocalTime(serverMicros int64) time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	// server = client + offset + drift*(client - last)
	numerator := float64(serverMicros) - float64(cs.offset) + cs.drift*float64(cs.lastSyncMicros)
	clientMicros := int64(numerator / (1 + cs.drift))
	return time.UnixMicro(clientMicros)
}

// ServerNow returns the current time on the server clock
func (cs *ClockSync) ServerNow() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	now := ClientMicros()
	return now + cs.offset + int64(cs.drift*float64(now-cs.lastSyncMicros))
}
