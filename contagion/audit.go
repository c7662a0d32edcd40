package contagion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dedis/sbrb/key"
)

// FileAuditWriter writes the delivery record to tmp_<node_id>.txt under the
// configured directory Dir (cmd/sbrb defaults it to "check"), overwriting
// any previous content — mirrors
// the source implementation's retry-on-file-create loop, except the retry
// itself is driven by the injected clock in Layer.checkDelivery rather than
// a raw thread sleep.
type FileAuditWriter struct {
	Dir string
}

// Write overwrites the audit file for id with "DELIVERED : <content>".
func (f FileAuditWriter) Write(id key.Identity, content string) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("contagion: audit mkdir: %w", err)
	}
	path := filepath.Join(f.Dir, fmt.Sprintf("tmp_%s.txt", id))
	return os.WriteFile(path, []byte(fmt.Sprintf("DELIVERED : %s", content)), 0o644)
}

var _ AuditWriter = FileAuditWriter{}
