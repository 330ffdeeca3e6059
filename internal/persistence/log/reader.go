package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

// ListFiles returns <prefix>-*.jsonl.zst files in dir, oldest hour first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadFile calls fn for each line of a compressed JSONL file. A file whose
// writer is still open ends mid-frame; whatever was decoded is kept.
func ReadFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadTicks decodes every tick entry under worldDir/events in order.
func ReadTicks(worldDir string, fn func(world.TickLogEntry) error) error {
	files, err := ListFiles(filepath.Join(worldDir, EventsPrefix), EventsPrefix)
	if err != nil {
		return err
	}
	for _, path := range files {
		err := ReadFile(path, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadAudits decodes every audit entry under worldDir/audit in order.
func ReadAudits(worldDir string, fn func(world.AuditEntry) error) error {
	files, err := ListFiles(filepath.Join(worldDir, AuditPrefix), AuditPrefix)
	if err != nil {
		return err
	}
	for _, path := range files {
		err := ReadFile(path, func(line []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
