package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dakshina99/apimdbctl/internal/backup"
)

// List prints every durable session under the backup root, oldest first.
// Directories without a manifest are partial or foreign and are skipped
// with a note.
func (c *Coordinator) List() error {
	root := c.cfg.Backup.Root
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(c.stdout, "no backup sessions under %s\n", root)
			return nil
		}
		return fmt.Errorf("read backup root %q: %w", root, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)

	if len(dirs) == 0 {
		fmt.Fprintf(c.stdout, "no backup sessions under %s\n", root)
		return nil
	}

	for _, name := range dirs {
		dir := filepath.Join(root, name)
		manifest, err := backup.ReadManifest(dir)
		if err != nil {
			fmt.Fprintf(c.stdout, "%s  (no manifest: not a durable session)\n", name)
			continue
		}
		fmt.Fprintf(c.stdout, "%s  created %s\n", manifest.SessionID, manifest.CreatedAt)
		fmt.Fprintf(c.stdout, "  primary  %s  timestamp=%s  artifact=%s\n",
			manifest.PrimaryDatabase, manifest.PrimaryTimestamp, manifest.PrimaryArtifact)
		fmt.Fprintf(c.stdout, "  shared   %s  timestamp=%s  artifact=%s\n",
			manifest.SharedDatabase, manifest.SharedTimestamp, manifest.SharedArtifact)
	}
	return nil
}
