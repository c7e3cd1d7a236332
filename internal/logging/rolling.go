package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RollingConfig configures the planner's log file rotation
type RollingConfig struct {
	MaxSize     int64  // Bytes per file before a size rotation, 0 disables
	MaxAge      int    // Days to keep rotated files, 0 keeps forever
	MaxBackups  int    // Rotated files to keep, 0 keeps all
	Compress    bool   // Gzip rotated files
	BaseName    string // File name prefix
	LogDir      string
	TimePattern string // Layout that names the daily file

	now func() time.Time
}

// DefaultRollingConfig returns the defaults used by the CLI and web server
func DefaultRollingConfig() RollingConfig {
	return RollingConfig{
		MaxSize:     10 * 1024 * 1024,
		MaxAge:      7,
		MaxBackups:  5,
		Compress:    true,
		BaseName:    "commitment-planner",
		LogDir:      "logs",
		TimePattern: "2006-01-02",
	}
}

// RollingWriter writes to <base>-<day><ext> and rotates on day change or size.
// Size rotations within one day are renamed to <base>-<day>.<n><ext>.
type RollingWriter struct {
	mu   sync.Mutex
	cfg  RollingConfig
	ext  string
	file *os.File
	size int64
	day  string
	seq  int
}

// NewRollingWriter opens today's file under cfg.LogDir and prunes old backups
func NewRollingWriter(cfg RollingConfig, isJSON bool) (*RollingWriter, error) {
	if cfg.TimePattern == "" {
		cfg.TimePattern = "2006-01-02"
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	rw := &RollingWriter{cfg: cfg, ext: ".log"}
	if isJSON {
		rw.ext = ".jsonl"
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	rw.prune()
	return rw, nil
}

// Write implements io.Writer
func (rw *RollingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if day := rw.today(); day != rw.day {
		if err := rw.rollDay(); err != nil {
			return 0, err
		}
	} else if rw.cfg.MaxSize > 0 && rw.size > 0 && rw.size+int64(len(p)) > rw.cfg.MaxSize {
		if err := rw.rollSize(); err != nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the current file
func (rw *RollingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RollingWriter) today() string {
	return rw.cfg.now().Format(rw.cfg.TimePattern)
}

func (rw *RollingWriter) path(day string, seq int) string {
	name := rw.cfg.BaseName + "-" + day
	if seq > 0 {
		name = fmt.Sprintf("%s.%d", name, seq)
	}
	return filepath.Join(rw.cfg.LogDir, name+rw.ext)
}

func (rw *RollingWriter) open() error {
	rw.day = rw.today()
	f, err := os.OpenFile(rw.path(rw.day, 0), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

// rollDay leaves yesterday's file under its dated name
func (rw *RollingWriter) rollDay() error {
	previous := rw.path(rw.day, 0)
	rw.file.Close()
	rw.seq = 0
	rw.finish(previous)
	return rw.open()
}

// rollSize moves the full file aside under the next sequence number
func (rw *RollingWriter) rollSize() error {
	current := rw.path(rw.day, 0)
	rw.file.Close()

	rw.seq++
	for fileExists(rw.path(rw.day, rw.seq)) || fileExists(rw.path(rw.day, rw.seq)+".gz") {
		rw.seq++
	}
	rotated := rw.path(rw.day, rw.seq)
	if err := os.Rename(current, rotated); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	rw.finish(rotated)
	return rw.open()
}

// finish compresses a rotated file when configured, then prunes backups
func (rw *RollingWriter) finish(path string) {
	if rw.cfg.Compress {
		if err := gzipFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "log compression failed for %s: %v\n", path, err)
		}
	}
	rw.prune()
}

// prune removes backups past MaxAge, then all but the newest MaxBackups
func (rw *RollingWriter) prune() {
	current := filepath.Base(rw.path(rw.day, 0))
	cutoff := rw.cfg.now().AddDate(0, 0, -rw.cfg.MaxAge)

	kept := 0
	for _, f := range ListLogFiles(rw.cfg.LogDir, rw.cfg.BaseName) {
		if f.Name == current || !strings.Contains(f.Name, rw.ext) {
			continue
		}
		if rw.cfg.MaxAge > 0 && f.Modified.Before(cutoff) {
			os.Remove(f.Path)
			continue
		}
		kept++
		if rw.cfg.MaxBackups > 0 && kept > rw.cfg.MaxBackups {
			os.Remove(f.Path)
		}
	}
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.Create(gzPath)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	_, err = io.Copy(zw, src)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(gzPath)
		return err
	}
	return os.Remove(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogFileInfo describes one log file on disk
type LogFileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListLogFiles returns the files named <baseName>-* under logDir, newest first
func ListLogFiles(logDir, baseName string) []LogFileInfo {
	matches, err := filepath.Glob(filepath.Join(logDir, baseName+"-*"))
	if err != nil {
		return nil
	}

	files := make([]LogFileInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, LogFileInfo{
			Name:     filepath.Base(path),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files
}

// FormatSize renders a byte count as B, KB, MB and so on
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// IsLambda reports whether the process runs inside AWS Lambda
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
