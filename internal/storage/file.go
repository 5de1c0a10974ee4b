package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	logx "preppertrack/pkg/logx"
)

// compactEvery is the number of journal appends between compactions.
const compactEvery = 200

// fileStore keeps the whole map in memory and makes it durable with:
//   - <prefix>.kv.snapshot.json  (full map, rewritten on compaction)
//   - <prefix>.kv.journal.jsonl  (one put/delete per line since the snapshot)
//   - <prefix>.audit.jsonl       (append-only)
//   - <prefix>.lock              (flock: shared for reads, exclusive for writes)
//
// Several processes may open the same prefix (the daemon and one-shot CLI
// commands). Every operation takes the lock and first catches up with what
// the others wrote: a replaced snapshot means a full reload, a longer journal
// means replaying the new tail. A torn last journal line is left unread.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	kv           map[string][]byte
	snapshotPath string
	journalPath  string

	lock    *os.File
	journal *os.File
	audit   *os.File
	writes  int

	// What kv reflects: the snapshot file it was loaded from and how many
	// journal bytes have been applied on top.
	snapInfo   os.FileInfo
	journalOff int64
}

type journalRecord struct {
	Op    string `json:"op"` // "put" | "del"
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		kv:           map[string][]byte{},
		snapshotPath: prefix + ".kv.snapshot.json",
		journalPath:  prefix + ".kv.journal.jsonl",
	}
	var err error
	if s.lock, err = os.OpenFile(prefix+".lock", os.O_CREATE|os.O_RDWR, 0o600); err != nil {
		return nil, err
	}
	if s.audit, err = os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err != nil {
		s.closeFiles()
		return nil, err
	}
	if s.journal, err = os.OpenFile(s.journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600); err != nil {
		s.closeFiles()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquire(true)
	if err != nil {
		s.closeFiles()
		return nil, err
	}
	defer unlock()
	if err := s.reloadLocked(); err != nil {
		s.closeFiles()
		return nil, err
	}
	if s.journalOff > 0 {
		if err := s.compactLocked(); err != nil {
			log.Warn("startup compaction failed", logx.Err(err))
		}
	}
	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("keys", len(s.kv)))
	return s, nil
}

// acquire takes the cross-process lock and brings kv up to date.
func (s *fileStore) acquire(exclusive bool) (func(), error) {
	if s.journal == nil {
		return nil, ErrClosed
	}
	if err := lockFile(s.lock, exclusive); err != nil {
		return nil, err
	}
	unlock := func() {
		if err := unlockFile(s.lock); err != nil {
			s.log.Warn("storage unlock failed", logx.Err(err))
		}
	}
	if err := s.catchUpLocked(); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

func (s *fileStore) catchUpLocked() error {
	snap, err := os.Stat(s.snapshotPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !sameFileState(snap, s.snapInfo) {
		return s.reloadLocked()
	}
	st, err := s.journal.Stat()
	if err != nil {
		return err
	}
	switch {
	case st.Size() == s.journalOff:
		return nil
	case st.Size() < s.journalOff:
		return s.reloadLocked()
	}
	n, err := replayJournal(s.journalPath, s.journalOff, s.kv)
	s.journalOff += n
	return err
}

// reloadLocked rebuilds kv from the snapshot and the whole journal.
func (s *fileStore) reloadLocked() error {
	snap, err := os.Stat(s.snapshotPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	kv := map[string][]byte{}
	if snap != nil {
		if err := loadSnapshot(s.snapshotPath, kv); err != nil {
			return err
		}
	}
	n, err := replayJournal(s.journalPath, 0, kv)
	if err != nil {
		return err
	}
	s.kv, s.snapInfo, s.journalOff = kv, snap, n
	return nil
}

func sameFileState(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return os.SameFile(a, b) && a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquire(false)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (s *fileStore) Put(_ context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return s.write(journalRecord{Op: "put", Key: key, Value: value})
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	return s.write(journalRecord{Op: "del", Key: key})
}

func (s *fileStore) write(r journalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquire(true)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.kv[r.Key]; !ok && r.Op == "del" {
		return nil
	}
	if err := s.appendLocked(r); err != nil {
		return err
	}
	if r.Op == "del" {
		delete(s.kv, r.Key)
	} else {
		s.kv[r.Key] = slices.Clone(r.Value)
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquire(false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	keys := make([]string, 0, len(s.kv))
	for k := range s.kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audit == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.audit).Encode(e)
}

// Close folds the journal into the snapshot, after catching up with other
// processes, and closes all files.
func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	var errs []error
	if unlock, err := s.acquire(true); err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, s.compactLocked())
		unlock()
	}
	errs = append(errs, s.closeFiles())
	return errors.Join(errs...)
}

func (s *fileStore) closeFiles() error {
	var errs []error
	for _, f := range []**os.File{&s.journal, &s.audit, &s.lock} {
		if *f != nil {
			errs = append(errs, (*f).Close())
			*f = nil
		}
	}
	return errors.Join(errs...)
}

func (s *fileStore) appendLocked(r journalRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := s.journal.Write(b); err != nil {
		return err
	}
	if err := s.journal.Sync(); err != nil {
		return err
	}
	s.journalOff += int64(len(b))
	return nil
}

// compactLocked needs the exclusive lock.
func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.kv); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	if _, err := s.journal.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	s.journalOff = 0
	s.snapInfo, err = os.Stat(s.snapshotPath)
	return err
}

func loadSnapshot(path string, out map[string][]byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string][]byte
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

// replayJournal applies complete lines from byte offset from and returns how
// many bytes it consumed. Malformed lines are consumed and skipped.
func replayJournal(path string, from int64, out map[string][]byte) (int64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return 0, err
	}
	br := bufio.NewReaderSize(f, 64*1024)
	var n int64
	for {
		line, err := br.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n += int64(len(line))
		var r journalRecord
		if json.Unmarshal(bytes.TrimSpace(line), &r) != nil || r.Key == "" {
			continue
		}
		switch r.Op {
		case "put":
			out[r.Key] = r.Value
		case "del":
			delete(out, r.Key)
		}
	}
}
