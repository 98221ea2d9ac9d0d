package sqlite

import "fmt"

// backupSuffixLimit bounds the probe for an unused backup name.
const backupSuffixLimit = 1000

// sidecarSuffixes are the journal files that must travel with the database
// file, otherwise a fresh database could replay a stale journal.
var sidecarSuffixes = []string{"-wal", "-shm"}

// RelocateToBackup closes the handle, moves its database file and journal
// sidecars to an unused numbered backup path and opens a fresh handle at the
// original path. The moved bytes stay on disk for forensic recovery and are
// never reattached. The old handle is unusable afterwards.
func RelocateToBackup(h *Handle) (*Handle, string, error) {
	fsys := h.opts.Filesystem

	if err := h.Close(); err != nil {
		h.logger.Warn("closing unusable database", "path", h.path, "error", err)
	}

	backup, err := claimBackupPath(fsys, h.path)
	if err != nil {
		return nil, "", err
	}

	if err := fsys.Rename(h.path, backup); err != nil {
		return nil, "", fmt.Errorf("%w: move %s to %s: %v", ErrRelocationExhausted, h.path, backup, err)
	}
	for _, suffix := range sidecarSuffixes {
		sidecar := h.path + suffix
		if !fsys.Exists(sidecar) {
			continue
		}
		if err := fsys.Rename(sidecar, backup+suffix); err != nil {
			return nil, "", fmt.Errorf("%w: move %s: %v", ErrRelocationExhausted, sidecar, err)
		}
	}

	fresh, err := Open(h.path, h.opts)
	if err != nil {
		return nil, backup, fmt.Errorf("%w: reopen %s: %v", ErrRelocationExhausted, h.path, err)
	}

	h.logger.Warn("database relocated", "path", h.path, "backup", backup)
	return fresh, backup, nil
}

// claimBackupPath probes successive numeric suffixes until an unused name is
// found. Existing backups are never overwritten.
func claimBackupPath(fsys Filesystem, path string) (string, error) {
	for n := 1; n <= backupSuffixLimit; n++ {
		candidate := fmt.Sprintf("%s.corrupt-%d", path, n)
		if fsys.Exists(candidate) {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%w: no unused backup suffix for %s", ErrRelocationExhausted, path)
}
