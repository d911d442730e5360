package runtime

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/luismedel/quiu/internal/channel"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

// recoverParallelism bounds concurrent store opens during recovery.
const recoverParallelism = 8

// IndexEntry is one "guid;name" line of the recovery index.
type IndexEntry struct {
	ID   uuid.UUID
	Name string
}

// ParseIndexLine parses one index line. ok is false for malformed lines.
func ParseIndexLine(line string) (IndexEntry, bool) {
	line = strings.TrimRight(line, "\r")
	idPart, name, _ := strings.Cut(line, ";")
	id, err := uuid.Parse(strings.TrimSpace(idPart))
	if err != nil || id == uuid.Nil {
		return IndexEntry{}, false
	}
	return IndexEntry{ID: id, Name: name}, true
}

// ReadIndex reads the index at path. A missing file yields no entries.
// Malformed lines are skipped.
func ReadIndex(path string) ([]IndexEntry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer f.Close()

	var out []IndexEntry
	skipped := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		e, ok := ParseIndexLine(sc.Text())
		if !ok {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped, sc.Err()
}

// writeIndexLocked rewrites the index from the channel map via a temp file
// and rename. Caller holds r.mu.
func (r *Runtime) writeIndexLocked() error {
	lines := make([]string, 0, len(r.channels))
	for id, ch := range r.channels {
		lines = append(lines, id.String()+";"+ch.Name())
	}
	sort.Strings(lines)

	path := r.IndexPath()
	tmp, err := os.CreateTemp(r.dataDir, indexFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("runtime: write index: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("runtime: write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("runtime: sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("runtime: close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("runtime: replace index: %w", err)
	}
	r.log.Debug("index written", logpkg.Int("channels", len(lines)))
	return nil
}

// RecoverChannels re-attaches every channel listed in the index to its
// existing store. Channels already registered are left alone. A channel
// whose store cannot be opened is logged and skipped; its index line stays
// until the next mutation rewrites the index.
func (r *Runtime) RecoverChannels() (int, error) {
	entries, skipped, err := ReadIndex(r.IndexPath())
	if err != nil {
		return 0, fmt.Errorf("runtime: read index: %w", err)
	}
	if skipped > 0 {
		r.log.Warn("skipped malformed index lines", logpkg.Int("count", skipped))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting() {
		return 0, ErrShuttingDown
	}
	// Stores are opened in parallel; each one replays its own files.
	type opened struct {
		entry IndexEntry
		ch    *channel.Channel
		err   error
	}
	results := make([]opened, 0, len(entries))
	seen := make(map[uuid.UUID]bool, len(entries))
	for _, e := range entries {
		if _, ok := r.channels[e.ID]; ok || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		results = append(results, opened{entry: e})
	}
	var g errgroup.Group
	g.SetLimit(recoverParallelism)
	for i := range results {
		i := i
		g.Go(func() error {
			results[i].ch, results[i].err = r.openChannel(results[i].entry.ID, results[i].entry.Name)
			return nil
		})
	}
	_ = g.Wait()

	recovered := 0
	for _, res := range results {
		id := res.entry.ID
		if res.err != nil {
			r.log.Error("channel recovery failed", logpkg.Str("channel", id.String()), logpkg.Err(res.err))
			continue
		}
		r.channels[id] = res.ch
		recovered++
		r.log.Info("channel recovered", logpkg.Str("channel", id.String()), logpkg.Int64("last_offset", res.ch.LastOffset()))
	}
	r.obs.SetChannels(len(r.channels))
	return recovered, nil
}
