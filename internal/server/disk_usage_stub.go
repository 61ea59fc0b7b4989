//go:build !linux

package server

// diskUsage is a stub for platforms without Statfs support. Deployment
// targets Linux; elsewhere the status endpoint reports zero free space.
func diskUsage(path string) (uint64, uint64, error) {
	return 0, 0, nil
}
