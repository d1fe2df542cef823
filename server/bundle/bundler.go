package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrBundlingInProgress is returned when the destination archive is already being written.
	ErrBundlingInProgress = errors.New("bundling already in progress")

	// ErrBundleIO is wrapped by every read or write failure during archive creation.
	ErrBundleIO = errors.New("bundle i/o failure")
)

// Logger is the subset of pluginapi.LogService used by this package.
type Logger interface {
	Debug(message string, keyValuePairs ...interface{})
	Info(message string, keyValuePairs ...interface{})
	Warn(message string, keyValuePairs ...interface{})
	Error(message string, keyValuePairs ...interface{})
}

// Event is emitted after every archive entry and once more as the terminal event.
// A terminal event with a nil Err means the archive at Path is complete and closed.
type Event struct {
	// Path is the destination archive path
	Path string

	// Entry is the archive entry name just written (progress events only)
	Entry string

	// Entries is the number of entries written so far
	Entries int

	// Done marks the terminal event
	Done bool

	// Err is the cause of a failed bundle (terminal events only)
	Err error

	release func()
}

// Succeeded reports whether the event is a successful terminal event.
func (e Event) Succeeded() bool {
	return e.Done && e.Err == nil
}

// Release hands the destination back to the Bundler. The destination stays in
// flight from CreateBundle until the receiver of the terminal event releases
// it, so the archive cannot be discarded or rewritten while it is being read.
// It is a no-op on progress events and safe to call more than once.
func (e Event) Release() {
	if e.release != nil {
		e.release()
	}
}

// FileOpener opens source files for streaming into the archive.
type FileOpener interface {
	Open(name string) (io.ReadCloser, error)
}

type osOpener struct{}

func (osOpener) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Bundler zips directory trees into single archive files. At most one bundle
// per destination path is written at a time.
type Bundler struct {
	logger   Logger
	opener   FileOpener
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewBundler creates a new bundler.
func NewBundler(logger Logger) *Bundler {
	return &Bundler{
		logger:   logger,
		opener:   osOpener{},
		inFlight: make(map[string]struct{}),
	}
}

// SetOpener replaces the source file opener (useful for testing)
func (b *Bundler) SetOpener(opener FileOpener) {
	b.opener = opener
}

// SiblingArchivePath returns the archive path next to dir, e.g. /var/log -> /var/log.zip.
func SiblingArchivePath(dir string) string {
	return filepath.Clean(dir) + ".zip"
}

// CreateBundle starts archiving sourceDir into destPath on a background goroutine
// and returns the event stream, which is closed after the terminal event. The
// caller must Release the terminal event once it is done with the archive.
//
// ctx only governs delivery. Once it is done, remaining events are dropped but the
// archive is still written to completion.
func (b *Bundler) CreateBundle(ctx context.Context, sourceDir, destPath string) (<-chan Event, error) {
	src, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve source dir: %v", ErrBundleIO, err)
	}

	dst, err := filepath.Abs(destPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve destination: %v", ErrBundleIO, err)
	}

	if !b.acquire(dst) {
		return nil, ErrBundlingInProgress
	}

	events := make(chan Event, 1)
	go b.run(ctx, src, dst, events)

	return events, nil
}

// Discard removes a previously produced archive unless it is currently being written.
func (b *Bundler) Discard(destPath string) error {
	dst, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve destination: %v", ErrBundleIO, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, busy := b.inFlight[dst]; busy {
		return ErrBundlingInProgress
	}

	return removeStale(dst)
}

// InProgress reports whether destPath is currently being written.
func (b *Bundler) InProgress(destPath string) bool {
	dst, err := filepath.Abs(destPath)
	if err != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, busy := b.inFlight[dst]
	return busy
}

func (b *Bundler) acquire(dst string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, busy := b.inFlight[dst]; busy {
		return false
	}

	b.inFlight[dst] = struct{}{}
	return true
}

func (b *Bundler) release(dst string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.inFlight, dst)
}

// run writes the archive and publishes events. The in-flight guard is held
// until the terminal event is released, or released here if that event cannot
// be delivered.
func (b *Bundler) run(ctx context.Context, src, dst string, events chan<- Event) {
	defer close(events)

	send := func(ev Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	b.logger.Info("Creating diagnostics bundle", "source", src, "destination", dst)

	count, err := b.write(src, dst, func(entry string, n int) {
		send(Event{Path: dst, Entry: entry, Entries: n})
	})

	if err != nil {
		b.logger.Error("Failed to create diagnostics bundle",
			"destination", dst,
			"entries", count,
			"error", err.Error())
	} else {
		b.logger.Info("Diagnostics bundle created", "destination", dst, "entries", count)
	}

	terminal := Event{
		Path:    dst,
		Entries: count,
		Done:    true,
		Err:     err,
		release: sync.OnceFunc(func() { b.release(dst) }),
	}
	if !send(terminal) {
		terminal.Release()
	}
}

// write produces the archive, calling progress after every entry. On failure the
// partially written file is closed but not finalized.
func (b *Bundler) write(src, dst string, progress func(entry string, n int)) (int, error) {
	if err := removeStale(dst); err != nil {
		return 0, err
	}

	file, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create archive: %v", ErrBundleIO, err)
	}

	zw := zip.NewWriter(file)
	count := 0

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A diagnostics directory that was never created bundles as empty.
			if path == src && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}

		if path == src || path == dst {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			name += "/"
			if err := b.writeDir(zw, name, d); err != nil {
				return err
			}
		case d.Type().IsRegular():
			if err := b.writeFile(zw, name, path, d); err != nil {
				return err
			}
		default:
			b.logger.Debug("Skipping non-regular file", "path", path, "mode", d.Type().String())
			return nil
		}

		count++
		progress(name, count)
		return nil
	})

	if walkErr != nil {
		_ = file.Close()
		return count, fmt.Errorf("%w: %w", ErrBundleIO, walkErr)
	}

	if err := zw.Close(); err != nil {
		_ = file.Close()
		return count, fmt.Errorf("%w: failed to finalize archive: %v", ErrBundleIO, err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		return count, fmt.Errorf("%w: failed to sync archive: %v", ErrBundleIO, err)
	}

	if err := file.Close(); err != nil {
		return count, fmt.Errorf("%w: failed to close archive: %v", ErrBundleIO, err)
	}

	return count, nil
}

func (b *Bundler) writeDir(zw *zip.Writer, name string, d fs.DirEntry) error {
	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	}

	if info, err := d.Info(); err == nil {
		header.Modified = info.ModTime()
	}

	if _, err := zw.CreateHeader(header); err != nil {
		return fmt.Errorf("failed to write directory entry %s: %w", name, err)
	}

	return nil
}

func (b *Bundler) writeFile(zw *zip.Writer, name, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	// Open before creating the entry so a failed read never leaves a dangling header.
	src, err := b.opener.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}

	return nil
}

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove stale archive: %v", ErrBundleIO, err)
	}
	return nil
}

// DirSize returns the total size in bytes of all regular files under dir.
// A missing directory has size zero.
func DirSize(dir string) (int64, error) {
	root := filepath.Clean(dir)

	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Log files may rotate away between listing and stat.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compute size of %s: %w", root, err)
	}

	return total, nil
}
