package recorder

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// sidecarMetadata is the optional <session-id>.json written alongside a
// session's recordings, per spec.md §6's recording file layout.
type sidecarMetadata struct {
	SessionID string   `json:"session_id"`
	Name      *string  `json:"name,omitempty"`
	StartedAt string   `json:"started_at"`
	Cameras   []string `json:"cameras"`
}

// writeSidecarMetadata atomically writes the session's sidecar file so
// concurrent snapshot tooling never observes a partially-written file.
func writeSidecarMetadata(recordingsRoot string, sess *Session) error {
	cameras := make([]string, 0, len(sess.Recordings))
	for camID := range sess.Recordings {
		cameras = append(cameras, camID)
	}

	meta := sidecarMetadata{
		SessionID: sess.ID,
		Name:      sess.Name,
		StartedAt: sess.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Cameras:   cameras,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar metadata: %w", err)
	}

	path := filepath.Join(recordingsRoot, sess.ID+".json")
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending sidecar file: %w", err)
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write sidecar data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace sidecar file: %w", err)
	}
	return nil
}
