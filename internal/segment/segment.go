// Package segment manages the lifecycle of a named shared-memory segment:
// create-or-attach resolution, mapping, and teardown. The first process to
// open a name creates and zero-initializes the segment; every later opener
// attaches to it and adopts the geometry stored in its header.
package segment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/shmstore/internal/layout"
)

const (
	filePrefix = "shmstore_"
	fileMode   = 0o666

	// Longest segment name mapped verbatim to a file name. Anything longer
	// (or containing a path separator) is replaced by its digest so the
	// resulting file name stays well under NAME_MAX.
	maxLiteralName = 200

	// How long an attacher waits for the creator to finish initializing.
	readyTimeout = time.Second
	readyPoll    = 200 * time.Microsecond
)

var (
	ErrEmptyName       = errors.New("segment name must not be empty")
	ErrInvalidCapacity = errors.New("max keys must be at least 1")
	ErrNotReady        = errors.New("segment exists but was never initialized")
	ErrBadMagic        = errors.New("segment has wrong magic, not a store segment")
	ErrBadVersion      = errors.New("segment format version not supported")
	ErrTruncated       = errors.New("segment file smaller than its header claims")
)

// Segment is one mapped shared-memory region. All attached processes see
// the same bytes through Mem.
type Segment struct {
	Mem []byte

	path    string
	file    *os.File
	creator bool
	persist bool
	closed  bool
}

// Open creates the named segment with the given capacity, or attaches to
// it if it already exists. On attach the capacity stored in the segment
// header wins; the requested value is ignored.
func Open(name string, maxKeys uint64, persist bool) (*Segment, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if maxKeys < 1 {
		return nil, ErrInvalidCapacity
	}

	path := Path(name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, fileMode)
	switch {
	case err == nil:
		return create(file, path, maxKeys, persist)
	case errors.Is(err, os.ErrExist):
		return attach(path, maxKeys, persist)
	default:
		return nil, fmt.Errorf("failed to create segment file %s: %w", path, err)
	}
}

// Path returns the backing file path for a segment name.
func Path(name string) string {
	if strings.ContainsRune(name, os.PathSeparator) || len(name) > maxLiteralName {
		name = fmt.Sprintf("%016x", xxhash.Sum64String(name))
	}
	return filepath.Join(baseDir(), filePrefix+name)
}

// baseDir prefers /dev/shm so the segment lives in memory; file-backed tmp
// is the fallback and still gives correct MAP_SHARED semantics.
func baseDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func create(file *os.File, path string, maxKeys uint64, persist bool) (*Segment, error) {
	size := layout.SegmentSize(maxKeys)

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	// Truncate zero-fills, which is exactly the initial table state: every
	// slot empty, every lock word unlocked.
	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to size segment file to %d bytes: %w", size, err)
	}

	mem, err := mmapFile(file, int(size))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to map segment: %w", err)
	}

	hdr := layout.HeaderOf(mem)
	hdr.Init(maxKeys)
	// Publish last: attachers spin on the ready flag before trusting any
	// other header field.
	hdr.SetReady()

	log.Info().Msgf("created segment %s, maxKeys=%d, size=%d bytes", path, maxKeys, size)

	return &Segment{
		Mem:     mem,
		path:    path,
		file:    file,
		creator: true,
		persist: persist,
	}, nil
}

func attach(path string, requestedMaxKeys uint64, persist bool) (*Segment, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}

	// The creator may still be between O_EXCL create and truncate; wait for
	// the file to reach header size before mapping anything.
	if err := waitForSize(file, layout.HeaderSize); err != nil {
		file.Close()
		return nil, err
	}

	// Map just the header first: the full segment size is only known from
	// the header's capacity field.
	hdrMem, err := mmapFile(file, layout.HeaderSize)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map segment header: %w", err)
	}

	hdr := layout.HeaderOf(hdrMem)
	if err := waitForReady(hdr); err != nil {
		munmapFile(hdrMem)
		file.Close()
		return nil, err
	}
	if hdr.Magic() != layout.Magic {
		munmapFile(hdrMem)
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrBadMagic, path)
	}
	if hdr.Version() != layout.Version {
		v := hdr.Version()
		munmapFile(hdrMem)
		file.Close()
		return nil, fmt.Errorf("%w: segment has v%d, this build speaks v%d", ErrBadVersion, v, layout.Version)
	}

	maxKeys := hdr.MaxKeys()
	if maxKeys != requestedMaxKeys {
		// The capacity fixed at creation wins. Diverging expectations across
		// attachers are a caller bug worth surfacing.
		log.Warn().Msgf("segment %s has maxKeys=%d, requested %d is ignored", path, maxKeys, requestedMaxKeys)
	}
	size := layout.SegmentSize(maxKeys)
	if err := munmapFile(hdrMem); err != nil {
		file.Close()
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat segment file: %w", err)
	}
	if uint64(info.Size()) < size {
		file.Close()
		return nil, fmt.Errorf("%w: have %d bytes, header implies %d", ErrTruncated, info.Size(), size)
	}

	mem, err := mmapFile(file, int(size))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map segment: %w", err)
	}

	log.Info().Msgf("attached segment %s, maxKeys=%d", path, maxKeys)

	return &Segment{
		Mem:     mem,
		path:    path,
		file:    file,
		creator: false,
		persist: persist,
	}, nil
}

func waitForSize(file *os.File, want int64) error {
	deadline := time.Now().Add(readyTimeout)
	for {
		info, err := file.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat segment file: %w", err)
		}
		if info.Size() >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		time.Sleep(readyPoll)
	}
}

func waitForReady(hdr *layout.Header) error {
	deadline := time.Now().Add(readyTimeout)
	for !hdr.Ready() {
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		time.Sleep(readyPoll)
	}
	return nil
}

// Header returns the segment's header view.
func (s *Segment) Header() *layout.Header {
	return layout.HeaderOf(s.Mem)
}

// Creator reports whether this process brought the segment into existence.
func (s *Segment) Creator() bool { return s.creator }

// Path returns the backing file path.
func (s *Segment) Path() string { return s.path }

// Close unmaps the segment. The creator also removes the name unless
// persistence was requested; attachers never remove it. Removal is not
// coordinated with other attached processes, so their mappings keep
// working but the name is gone.
func (s *Segment) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := munmapFile(s.Mem)
	s.Mem = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}

	if s.creator && !s.persist {
		if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Warn().Msgf("failed to unlink segment %s: %v", s.path, rerr)
			if err == nil {
				err = rerr
			}
		}
	}
	return err
}
