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

	logx "bjornwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.detections.jsonl       (append-only JSON Lines)
//   - <prefix>.cooldown.snapshot.json (periodic snapshot)
//   - <prefix>.cooldown.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	detectionsFile *os.File
	lastDetection  DetectionEntry
	hasDetection   bool

	cooldownSnapshotPath string
	cooldownJournalFile  *os.File
	cooldown             map[string]int64 // sender id -> last sent, unix milli

	cooldownWrites int
}

type cooldownRecord struct {
	SenderID string `json:"sender_id"`
	SentAt   int64  `json:"sent_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	detPath := prefix + ".detections.jsonl"
	snapPath := prefix + ".cooldown.snapshot.json"
	journalPath := prefix + ".cooldown.journal.jsonl"

	last, hasLast := readLastDetection(detPath)

	df, err := os.OpenFile(detPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	// Load cooldown state from snapshot + journal.
	cooldown := map[string]int64{}
	_ = loadCooldownSnapshot(snapPath, cooldown)
	_ = replayCooldownJournal(journalPath, cooldown)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = df.Close()
		return nil, err
	}

	return &fileStore{
		log:                  log,
		detectionsFile:       df,
		lastDetection:        last,
		hasDetection:         hasLast,
		cooldownSnapshotPath: snapPath,
		cooldownJournalFile:  jf,
		cooldown:             cooldown,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.detectionsFile != nil {
		err1 = s.detectionsFile.Close()
		s.detectionsFile = nil
	}
	if s.cooldownJournalFile != nil {
		err2 = s.cooldownJournalFile.Close()
		s.cooldownJournalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendDetection(ctx context.Context, e DetectionEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detectionsFile == nil {
		return errors.New("detections file closed")
	}
	enc := json.NewEncoder(s.detectionsFile)
	if err := enc.Encode(e); err != nil {
		return err
	}
	s.lastDetection = e
	s.hasDetection = true
	return nil
}

func (s *fileStore) LastDetection(ctx context.Context) (DetectionEntry, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDetection, s.hasDetection, nil
}

func (s *fileStore) PutCooldown(ctx context.Context, senderID string, at time.Time) error {
	_ = ctx
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil
	}
	ms := at.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cooldownJournalFile == nil {
		return errors.New("cooldown journal closed")
	}
	if s.cooldown == nil {
		s.cooldown = map[string]int64{}
	}
	s.cooldown[senderID] = ms

	enc := json.NewEncoder(s.cooldownJournalFile)
	if err := enc.Encode(cooldownRecord{SenderID: senderID, SentAt: ms}); err != nil {
		return err
	}
	s.cooldownWrites++
	if s.cooldownWrites%100 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("cooldown compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetCooldown(ctx context.Context, senderID string) (time.Time, bool, error) {
	_ = ctx
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.cooldown[senderID]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) compactLocked() error {
	if s.cooldown == nil {
		return nil
	}
	tmp := s.cooldownSnapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.cooldown); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.cooldownSnapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.cooldownJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.cooldownJournalFile.Seek(0, 2)
	return err
}

// readLastDetection scans the detections log for its final entry so
// LastDetection works across restarts.
func readLastDetection(path string) (DetectionEntry, bool) {
	f, err := os.Open(path)
	if err != nil {
		return DetectionEntry{}, false
	}
	defer f.Close()

	var last DetectionEntry
	found := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e DetectionEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		last = e
		found = true
	}
	return last, found
}

func loadCooldownSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayCooldownJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r cooldownRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.SenderID == "" {
			continue
		}
		// Journal replays in order; keep the newest record per sender.
		if cur, ok := out[r.SenderID]; !ok || r.SentAt > cur {
			out[r.SenderID] = r.SentAt
		}
	}
	return sc.Err()
}
