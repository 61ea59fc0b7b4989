package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
)

// statusResponse reports share usage for dashboards and health probes.
type statusResponse struct {
	Items     int    `json:"items"`
	UsedBytes uint64 `json:"used_bytes"`
	FreeBytes uint64 `json:"free_bytes"`
}

// handleStatus returns item count and byte usage of the share plus the free
// space left on the backing disk.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	items, used, err := shareUsage(s.cfg.DataDir)
	if err != nil {
		s.log.WithError(err).Error("share usage scan failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	absDir, err := filepath.Abs(s.cfg.DataDir)
	if err != nil {
		absDir = s.cfg.DataDir
	}
	free, _, err := diskUsage(absDir)
	if err != nil {
		s.log.WithError(err).Warn("disk usage unavailable")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statusResponse{
		Items:     items,
		UsedBytes: used,
		FreeBytes: free,
	}); err != nil {
		s.log.WithError(err).Error("encoding status response")
	}
}

// shareUsage walks the data directory and totals the items and file bytes
// under it. The root itself is not counted. Entries that disappear during
// the walk are skipped.
func shareUsage(dir string) (int, uint64, error) {
	var (
		items int
		used  uint64
	)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == dir {
			return nil
		}
		items++
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		used += uint64(info.Size())
		return nil
	})
	return items, used, err
}
