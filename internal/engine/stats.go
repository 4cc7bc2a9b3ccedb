package engine

import (
	"encoding/json"
	"os"
	"path/filepath"

	"tlog.app/go/errors"
)

// PersistentStats holds cumulative statistics that survive restarts.
type PersistentStats struct {
	TotalSessions  int64            `json:"total_sessions"`
	TotalSearches  int64            `json:"total_searches"`
	TotalMutations int64            `json:"total_mutations"`
	FallbackCount  int64            `json:"fallback_count"`
	FieldCounts    map[string]int64 `json:"field_counts"` // field name -> mutations
}

// SystemStats contains high-level engine metrics for API response.
type SystemStats struct {
	ActiveSessions int              `json:"active_sessions"`
	TotalSessions  int64            `json:"total_sessions"`
	TotalSearches  int64            `json:"total_searches"`
	TotalMutations int64            `json:"total_mutations"`
	FallbackCount  int64            `json:"fallback_count"`
	TopFields      map[string]int64 `json:"top_fields"`
	DiskUsage      int64            `json:"disk_usage"` // bytes
}

// statsFileName is the filename for persisted stats
const statsFileName = ".facetql.stats"

func newPersistentStats() PersistentStats {
	return PersistentStats{FieldCounts: make(map[string]int64)}
}

func (s *PersistentStats) add(o PersistentStats) {
	s.TotalSessions += o.TotalSessions
	s.TotalSearches += o.TotalSearches
	s.TotalMutations += o.TotalMutations
	s.FallbackCount += o.FallbackCount
	for k, v := range o.FieldCounts {
		s.FieldCounts[k] += v
	}
}

// loadPersistentStats reads stats from disk.
func loadPersistentStats(dataDir string) PersistentStats {
	stats := newPersistentStats()

	path := filepath.Join(dataDir, statsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		// File doesn't exist or can't be read, return empty stats
		return stats
	}

	if err := json.Unmarshal(data, &stats); err != nil {
		// Corrupted file, return empty stats
		return newPersistentStats()
	}

	if stats.FieldCounts == nil {
		stats.FieldCounts = make(map[string]int64)
	}

	return stats
}

// savePersistentStats writes stats to disk atomically.
func savePersistentStats(dataDir string, stats PersistentStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal stats")
	}

	path := filepath.Join(dataDir, statsFileName)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, "write stats")
	}

	return os.Rename(tmpPath, path)
}

// GetStats merges persisted counters with the ones not flushed yet.
func (qe *QueryEngine) GetStats() SystemStats {
	qe.mu.RLock()
	active := len(qe.sessions)
	qe.mu.RUnlock()

	qe.statsLock.RLock()
	total := newPersistentStats()
	total.add(qe.globalStats)
	total.add(qe.pending)
	qe.statsLock.RUnlock()

	stats := SystemStats{
		ActiveSessions: active,
		TotalSessions:  total.TotalSessions,
		TotalSearches:  total.TotalSearches,
		TotalMutations: total.TotalMutations,
		FallbackCount:  total.FallbackCount,
		TopFields:      total.FieldCounts,
	}

	var size int64
	_ = filepath.Walk(qe.dataDir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	stats.DiskUsage = size

	return stats
}

func (qe *QueryEngine) count(fn func(s *PersistentStats)) {
	qe.statsLock.Lock()
	fn(&qe.pending)
	qe.statsLock.Unlock()
}
