// Package storage archives raw match details as rotating JSONL files.
package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"league-crawler/internal/riot"
)

const (
	// Rotation triggers
	DefaultMaxMatchesPerFile = 1000
	DefaultMaxFileAge        = 1 * time.Hour
)

// FileRotator writes one match detail per line to the hot file and moves
// closed files to warm. CompressWarm gzips warm files into cold.
type FileRotator struct {
	mu sync.Mutex

	hotDir  string // active writes
	warmDir string // closed files
	coldDir string // gzip archives

	maxMatches int
	maxAge     time.Duration
	now        func() time.Time
	logger     *log.Entry

	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time
	sequence      int
}

// RotatorOption configures a FileRotator
type RotatorOption func(*FileRotator)

// WithMaxMatches sets how many matches a file holds before rotating
func WithMaxMatches(n int) RotatorOption {
	return func(r *FileRotator) {
		if n > 0 {
			r.maxMatches = n
		}
	}
}

// WithMaxAge sets how long a file stays open before rotating
func WithMaxAge(d time.Duration) RotatorOption {
	return func(r *FileRotator) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

// WithNow swaps the time source (tests)
func WithNow(now func() time.Time) RotatorOption {
	return func(r *FileRotator) {
		r.now = now
	}
}

// NewFileRotator creates hot/warm/cold under baseDir and opens the first file.
func NewFileRotator(baseDir string, opts ...RotatorOption) (*FileRotator, error) {
	r := &FileRotator{
		hotDir:     filepath.Join(baseDir, "hot"),
		warmDir:    filepath.Join(baseDir, "warm"),
		coldDir:    filepath.Join(baseDir, "cold"),
		maxMatches: DefaultMaxMatchesPerFile,
		maxAge:     DefaultMaxFileAge,
		now:        time.Now,
		logger:     log.WithField("component", "archive"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetColdDir moves cold storage elsewhere (e.g. a larger disk)
func (r *FileRotator) SetColdDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create cold directory: %w", err)
	}
	r.mu.Lock()
	r.coldDir = path
	r.mu.Unlock()
	return nil
}

// WriteMatch appends one match detail and rotates when the file is full or old.
func (r *FileRotator) WriteMatch(m *riot.MatchDetail) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match %d: %w", m.GameID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return fmt.Errorf("archive is closed")
	}
	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	r.matchCount++
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.matchCount >= r.maxMatches {
		return true
	}
	return r.now().Sub(r.fileOpenedAt) >= r.maxAge
}

// rotate must be called with mu held.
func (r *FileRotator) rotate() error {
	if r.currentFile != nil {
		if err := r.closeCurrent(); err != nil {
			return err
		}
	}

	r.sequence++
	filename := fmt.Sprintf("match_details_%s_%04d.jsonl", r.now().Format("2006-01-02_15-04-05"), r.sequence)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.matchCount = 0
	r.fileOpenedAt = r.now()

	r.logger.WithField("file", filename).Debug("opened archive file")
	return nil
}

// closeCurrent flushes the hot file and moves it to warm, or removes it when empty.
func (r *FileRotator) closeCurrent() error {
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	r.currentFile = nil

	if r.matchCount == 0 {
		return os.Remove(r.currentPath)
	}

	warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.logger.WithFields(log.Fields{
		"file":    filepath.Base(r.currentPath),
		"matches": r.matchCount,
	}).Info("moved archive file to warm storage")
	return nil
}

// Close flushes the current file and moves it to warm if it has data
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}
	return r.closeCurrent()
}

// Stats returns the match count and name of the current file
func (r *FileRotator) Stats() (matchesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount, filepath.Base(r.currentPath)
}

// WarmFiles lists closed files awaiting compression, oldest first
func (r *FileRotator) WarmFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.warmDir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// CompressWarm moves every warm file into cold storage and returns how many.
func (r *FileRotator) CompressWarm() (int, error) {
	files, err := r.WarmFiles()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	coldDir := r.coldDir
	r.mu.Unlock()

	for i, f := range files {
		if err := CompressToCold(f, coldDir); err != nil {
			return i, fmt.Errorf("failed to compress %s: %w", filepath.Base(f), err)
		}
	}
	return len(files), nil
}

// CompressToCold gzips a warm file into coldDir and removes the original
func CompressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}

	if err := os.Remove(warmPath); err != nil {
		return err
	}

	log.WithField("file", filepath.Base(warmPath)).Info("compressed archive file to cold storage")
	return nil
}

// ReadArchive decodes every match line of a .jsonl or .jsonl.gz file.
func ReadArchive(path string) ([]riot.MatchDetail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var out []riot.MatchDetail
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var m riot.MatchDetail
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return out, fmt.Errorf("failed to decode line %d: %w", len(out)+1, err)
		}
		out = append(out, m)
	}
	return out, scanner.Err()
}
