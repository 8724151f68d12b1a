package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash is the prev_hash of the first entry in a log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// maxLine bounds a single entry. Decisions carry full URLs.
const maxLine = 1 << 20

// ErrNoSession is returned by Open for an empty session id.
var ErrNoSession = errors.New("audit: empty session id")

// Log appends the decisions of one session to a JSONL file that may already
// hold earlier sessions. Every line carries the hash of the line before it.
type Log struct {
	mu      sync.Mutex
	f       *os.File
	session string
	tail    string
}

// Open opens path for appending under session and continues the chain left
// by earlier sessions. A last line that does not decode as an entry is
// refused: chaining onto it would bless the damage.
func Open(path, session string) (*Log, error) {
	if session == "" {
		return nil, ErrNoSession
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	tail, err := chainTail(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audit: %s: %w", path, err)
	}
	return &Log{f: f, session: session, tail: tail}, nil
}

// Session returns the session id stamped on entries that lack one.
func (l *Log) Session() string { return l.session }

// Record appends entry, filling in the session, the timestamp and the link
// to the previous line. The line is synced before Record returns.
func (l *Log) Record(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.SessionID == "" {
		entry.SessionID = l.session
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	entry.PrevHash = l.tail

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode %s entry: %w", entry.Decision, err)
	}
	if _, err := l.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write %s entry: %w", entry.Decision, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.tail = HashLine(line)
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// HashLine returns "sha256:<hex>" of line, without its newline.
func HashLine(line []byte) string {
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Tail returns the last n lines of the log at path.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	err = eachLine(f, func(_ int, line []byte) error {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, string(line))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return ring, nil
}

func chainTail(r io.Reader) (string, error) {
	var last []byte
	err := eachLine(r, func(_ int, line []byte) error {
		last = append(last[:0], line...)
		return nil
	})
	if err != nil {
		return "", err
	}
	if last == nil {
		return GenesisHash, nil
	}
	var e AuditEntry
	if err := json.Unmarshal(last, &e); err != nil {
		return "", fmt.Errorf("last line is not an audit entry: %w", err)
	}
	return HashLine(last), nil
}

// eachLine calls fn with every line of r, numbered from 1. line is only valid
// during the call. An error from fn stops the walk and is returned as is.
func eachLine(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan after line %d: %w", n, err)
	}
	return nil
}
