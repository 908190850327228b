package state

import (
	"time"

	"omnisearch/internal/domain"
)

// Stats derives aggregate counts from the current records. Health counts and
// the average response time cover connected tools only; a disconnected tool
// keeps its last health record but no longer counts.
func (s *Store) Stats() domain.ConnectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.ConnectionStats{TotalTools: len(s.order)}
	var (
		responseTotal int64
		responseCount int64
		lastSync      *time.Time
	)
	for _, id := range s.order {
		conn := s.connections[id]
		switch conn.Status {
		case domain.StatusConnected:
			stats.ConnectedTools++
		case domain.StatusConnecting:
			stats.ConnectingTools++
		case domain.StatusError:
			stats.ErrorTools++
		default:
			stats.DisconnectedTools++
		}
		if conn.LastSync != nil && (lastSync == nil || conn.LastSync.After(*lastSync)) {
			v := *conn.LastSync
			lastSync = &v
		}

		if conn.Status != domain.StatusConnected {
			continue
		}
		health := s.health[id]
		switch health.State {
		case domain.HealthHealthy:
			stats.HealthyTools++
		case domain.HealthWarning:
			stats.WarningTools++
		case domain.HealthError:
			stats.UnhealthyTools++
		}
		if health.ResponseTimeMs != nil {
			responseTotal += *health.ResponseTimeMs
			responseCount++
		}
	}
	if responseCount > 0 {
		stats.AverageResponseTimeMs = responseTotal / responseCount
	}
	stats.LastSync = lastSync
	return stats
}
