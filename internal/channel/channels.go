// Package channel carries portfolio snapshots from the valuation driver to
// its consumers.
package channel

import (
	"sync"

	"coinview/logger"
	"coinview/models"
)

type ChannelStats struct {
	Sent    int64
	Dropped int64
}

// Snapshots is a buffered snapshot stream. When the buffer is full the
// oldest snapshot is discarded so a slow consumer always observes the most
// recent state rather than a growing backlog.
type Snapshots struct {
	C chan models.PortfolioSnapshot

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewSnapshots(bufferSize int) *Snapshots {
	log := logger.GetLogger()
	s := &Snapshots{
		C:   make(chan models.PortfolioSnapshot, bufferSize),
		log: log,
	}

	log.WithComponent("snapshot_channel").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("snapshot channel initialized")

	return s
}

func (s *Snapshots) Close() {
	close(s.C)
	s.log.WithComponent("snapshot_channel").Info("snapshot channel closed")
}

// Send never blocks. If the buffer is full the oldest entry is dropped to
// make room for the new snapshot.
func (s *Snapshots) Send(snapshot models.PortfolioSnapshot) bool {
	for {
		select {
		case s.C <- snapshot:
			s.incrementSent()
			return true
		default:
		}
		select {
		case <-s.C:
			s.incrementDropped()
		default:
		}
	}
}

func (s *Snapshots) incrementSent() {
	s.statsMutex.Lock()
	s.stats.Sent++
	s.statsMutex.Unlock()
}

func (s *Snapshots) incrementDropped() {
	s.statsMutex.Lock()
	s.stats.Dropped++
	s.statsMutex.Unlock()
}

func (s *Snapshots) GetStats() ChannelStats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	return s.stats
}
