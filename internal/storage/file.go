package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "lapsecam/pkg/logx"
)

// fileStore is the dependency-free persistence backend: a single
// append-only JSON Lines file, one record per capture.
//
// The file is scanned once at open to seed the in-memory last record and
// counters; appends afterwards keep them current, so lookups never re-read
// the file.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	f    *os.File
	path string

	last    CaptureRecord
	hasLast bool
	count   int64
}

type captureLine struct {
	At      time.Time `json:"at"`
	Path    string    `json:"path"`
	Bytes   int64     `json:"bytes"`
	Quality string    `json:"quality,omitempty"`
	TookMS  int64     `json:"took_ms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("file storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{log: log, path: path}
	if err := st.seed(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	st.f = f
	return st, nil
}

// seed scans the existing file once to recover last record and count.
// Unparseable lines are skipped with a warning rather than failing open.
func (s *fileStore) seed() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	bad := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec captureLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			bad++
			continue
		}
		s.last = CaptureRecord(rec)
		s.hasLast = true
		s.count++
	}
	if bad > 0 {
		s.log.Warn("capture index contains unparseable lines",
			logx.String("path", s.path), logx.Int("skipped", bad))
	}
	return sc.Err()
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendCapture(_ context.Context, r CaptureRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	b, err := json.Marshal(captureLine(r))
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrDisabled
	}
	if _, err := s.f.Write(b); err != nil {
		return err
	}
	s.last = r
	s.hasLast = true
	s.count++
	return nil
}

func (s *fileStore) LastCapture(_ context.Context) (CaptureRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast, nil
}

// CountSince scans the file; the since filter is rare (diagnostics), so the
// O(n) pass is acceptable for the file backend.
func (s *fileStore) CountSince(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	path := s.path
	total := s.count
	s.mu.Unlock()

	if t.IsZero() {
		return total, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	var n int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec captureLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if !rec.At.Before(t) {
			n++
		}
	}
	return n, sc.Err()
}
