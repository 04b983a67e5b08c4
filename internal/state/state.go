// Package state implements the per-output durable state store: atomic
// (tmp-file + rename) saves guarded by an advisory flock, and tolerant
// (forward-compatible) loads.
package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/logx"
	"github.com/tuxx/wallpaperd/internal/media"
)

// CurrentVersion is the file-format version this build writes. Loads
// accept any version <= CurrentVersion; a version greater than this is a
// load failure.
const CurrentVersion = 1

// DurableState is the per-output persisted record.
type DurableState struct {
	Output   string
	Path     string
	Kind     media.Kind
	Options  string
	Position float64 // seconds; 0 for images
	Paused   bool
	Version  int
}

// Store reads and writes DurableState records under a state directory,
// one file per output, sanitising output names into filenames.
type Store struct {
	dir string
}

// NewStore resolves the state directory: $XDG_STATE_HOME/<app>, falling
// back to $HOME/.local/state/<app>.
func NewStore(appName string) (*Store, error) {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir != "" {
		dir = filepath.Join(dir, appName)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("state: resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "state", appName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// sanitize replaces characters that are unsafe in filenames.
func sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_")
	return r.Replace(name)
}

func (s *Store) pathFor(output string) string {
	if output == "" {
		return filepath.Join(s.dir, "state.txt")
	}
	return filepath.Join(s.dir, fmt.Sprintf("state-%s.txt", sanitize(output)))
}

// Save atomically writes st to disk: write a `.tmp` file under an
// exclusive advisory lock, fsync, rename over the target. It retries up
// to three times with 100ms spacing, including on transient
// lock-acquisition failure, and unlinks the tmp file on any failure.
func (s *Store) Save(st DurableState) error {
	target := s.pathFor(st.Output)
	tmp := target + ".tmp"

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		if err := s.saveOnce(tmp, target, st); err != nil {
			lastErr = err
			logx.Warn("state: save attempt %d failed: %v", attempt+1, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("state: save failed after 3 attempts: %w", lastErr)
}

func (s *Store) saveOnce(tmp, target string, st DurableState) (err error) {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		// A leftover tmp file from a prior crash blocks O_EXCL; clear it
		// and retry once within this attempt rather than failing outright.
		if os.IsExist(err) {
			_ = os.Remove(tmp)
			f, err = os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		}
		if err != nil {
			return fmt.Errorf("open tmp file: %w", err)
		}
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("flock tmp file: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# wallpaperd state file\n")
	fmt.Fprintf(w, "version=%d\n", CurrentVersion)
	if st.Output != "" {
		fmt.Fprintf(w, "output=%s\n", st.Output)
	}
	fmt.Fprintf(w, "path=%s\n", st.Path)
	fmt.Fprintf(w, "type=%s\n", st.Kind)
	if st.Options != "" {
		fmt.Fprintf(w, "options=%s\n", st.Options)
	}
	if st.Kind == media.Video {
		fmt.Fprintf(w, "position=%f\n", st.Position)
		if st.Paused {
			fmt.Fprintf(w, "paused=1\n")
		} else {
			fmt.Fprintf(w, "paused=0\n")
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	// The unlock-and-close deferred above runs on our way out; the rename
	// itself needs neither, since it operates on paths, not the open fd.
	if err = os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Load reads and parses the record for output. Missing `path` is a
// failure; unknown keys are tolerated; unknown `type`, negative position,
// or malformed `paused` are structured failures.
func (s *Store) Load(output string) (DurableState, error) {
	path := s.pathFor(output)
	f, err := os.Open(path)
	if err != nil {
		return DurableState{}, fmt.Errorf("state: open %s: %w", path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return DurableState{}, fmt.Errorf("state: flock %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	st := DurableState{Output: output}
	havePath := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "version":
			v, err := strconv.Atoi(value)
			if err != nil {
				return DurableState{}, fmt.Errorf("state: malformed version %q", value)
			}
			if v > CurrentVersion {
				return DurableState{}, fmt.Errorf("state: unsupported version %d (max %d)", v, CurrentVersion)
			}
			st.Version = v
		case "output":
			st.Output = value
		case "path":
			st.Path = value
			havePath = true
		case "type":
			switch value {
			case "image":
				st.Kind = media.Image
			case "video":
				st.Kind = media.Video
			default:
				return DurableState{}, fmt.Errorf("state: unknown type %q", value)
			}
		case "options":
			st.Options = value
		case "position":
			p, err := strconv.ParseFloat(value, 64)
			if err != nil || p < 0 {
				return DurableState{}, fmt.Errorf("state: malformed position %q", value)
			}
			st.Position = p
		case "paused":
			switch value {
			case "0":
				st.Paused = false
			case "1":
				st.Paused = true
			default:
				return DurableState{}, fmt.Errorf("state: malformed paused %q", value)
			}
		default:
			// Unknown keys are tolerated for forward compatibility.
		}
	}
	if err := sc.Err(); err != nil {
		return DurableState{}, fmt.Errorf("state: read %s: %w", path, err)
	}
	if !havePath {
		return DurableState{}, fmt.Errorf("state: missing path in %s", path)
	}

	if _, err := os.Stat(st.Path); err != nil {
		logx.Warn("state: recorded path %s does not exist on disk", st.Path)
	}

	return st, nil
}
