// Package snapshot writes point-in-time copies of the published world view
// as a JSON header line followed by a JSON body, zstd compressed.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

const (
	Version = 1
	suffix  = ".snap.zst"
)

type Header struct {
	Version int       `json:"version"`
	WorldID string    `json:"world_id"`
	Tick    uint64    `json:"tick"`
	At      time.Time `json:"at"`
}

type SnapshotV1 struct {
	Header Header         `json:"header"`
	View   world.Snapshot `json:"view"`
}

// New stamps view with a header.
func New(worldID string, view world.Snapshot, at time.Time) SnapshotV1 {
	return SnapshotV1{
		Header: Header{Version: Version, WorldID: worldID, Tick: view.Tick, At: at.UTC()},
		View:   view,
	}
}

// PathFor is the conventional location of a snapshot under worldDir.
func PathFor(worldDir string, tick uint64) string {
	return filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d%s", tick, suffix))
}

// WriteSnapshot writes to a temp file and renames it into place so readers
// never see a partial snapshot.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(snap.View); err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(hb, &snap.Header); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap.View); err != nil {
		return snap, fmt.Errorf("decode view: %w", err)
	}
	return snap, nil
}

// Latest returns the highest-tick snapshot under worldDir, or "" if none.
func Latest(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	type cand struct {
		tick uint64
		path string
	}
	var cands []cand
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), suffix), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: tick, path: filepath.Join(dir, e.Name())})
	}
	if len(cands) == 0 {
		return ""
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick > cands[j].tick })
	return cands[0].path
}

// Prune keeps the newest keep snapshots and removes the rest.
func Prune(worldDir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var ticks []uint64
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), suffix), 10, 64); err == nil {
			ticks = append(ticks, tick)
		}
	}
	if len(ticks) <= keep {
		return 0, nil
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })
	removed := 0
	for _, tick := range ticks[keep:] {
		if err := os.Remove(PathFor(worldDir, tick)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
