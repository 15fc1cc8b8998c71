package storage

import "os"

// UsageBytes returns the combined size in bytes of the given files.
// Missing paths contribute 0, and directories are skipped; the store keeps
// everything in plain files.
func UsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
