package cache

import (
	"archive/tar"
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/DataDog/zstd"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/cuenv/cuenv/internal/tarpatch"
	"github.com/cuenv/cuenv/internal/turbopath"
)

// Metadata is written pretty-printed as tasks/<key>/metadata.json. Envelope
// holds the canonical JSON the cache key was derived from, so the inputs
// that produced a cached result can be recovered from the result alone.
type Metadata struct {
	TaskName     string          `json:"taskName"`
	Command      string          `json:"command"`
	Args         []string        `json:"args"`
	EnvSummary   []string        `json:"envSummary"`
	InputsCount  int             `json:"inputsCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	CuenvVersion string          `json:"cuenvVersion"`
	Platform     string          `json:"platform"`
	Duration     int64           `json:"durationMs"`
	ExitCode     int             `json:"exitCode"`
	Key          string          `json:"key"`
	OutputFiles  []string        `json:"outputFiles"`
	Envelope     json.RawMessage `json:"envelope"`
}

// Store is the content-addressed task cache rooted at a directory
// (CUENV_CACHE_DIR when set, else the XDG cache home's cuenv/tasks;
// cmdutil resolves it separately from the state store's root).
type Store struct {
	root   turbopath.AbsolutePath
	logger hclog.Logger
}

// New returns a Store rooted at root, creating it (and a one-time
// .write_probe) if needed.
func New(root turbopath.AbsolutePath, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := root.MkdirAll(); err != nil {
		return nil, errors.Wrap(err, "cache: create root")
	}
	probe := root.Join(".write_probe")
	if err := probe.WriteFileAtomic([]byte("ok"), 0o644); err != nil {
		return nil, errors.Wrap(err, "cache: root not writable")
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) taskDir(key string) turbopath.AbsolutePath {
	return s.root.Join("tasks", key)
}

// Lookup returns true iff the directory for key exists. It does not
// validate content.
func (s *Store) Lookup(key string) bool {
	return s.taskDir(key).DirExists()
}

// SaveResult writes metadata, copies declared outputs, writes redacted logs,
// and produces a workspace.tar.zst snapshot of hermeticRoot. If any step
// up to the snapshot fails, the task directory is removed again, so a
// failed save leaves no entry for Lookup to find; the snapshot step
// itself is best-effort (a concurrently-modified tree just skips the
// snapshot with a warning, it does not fail the task).
func (s *Store) SaveResult(key string, meta Metadata, outputsRoot, hermeticRoot string, stdout, stderr []byte) (err error) {
	dir := s.taskDir(key)
	if err := dir.MkdirAll(); err != nil {
		return errors.Wrap(err, "cache: create task dir")
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir.ToString())
		}
	}()

	outputsDest := dir.Join("outputs")
	var outputFiles []string
	if outputsRoot != "" {
		copied, err := copyTree(outputsRoot, outputsDest.ToString())
		if err != nil {
			return errors.Wrap(err, "cache: copy outputs")
		}
		outputFiles = copied
	}
	meta.OutputFiles = outputFiles

	logsDir := dir.Join("logs")
	if err := logsDir.MkdirAll(); err != nil {
		return errors.Wrap(err, "cache: create logs dir")
	}
	if err := logsDir.Join("stdout.log").WriteFileAtomic(Redact(stdout), 0o644); err != nil {
		return errors.Wrap(err, "cache: write stdout log")
	}
	if err := logsDir.Join("stderr.log").WriteFileAtomic(Redact(stderr), 0o644); err != nil {
		return errors.Wrap(err, "cache: write stderr log")
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cache: marshal metadata")
	}
	if err := dir.Join("metadata.json").WriteFileAtomic(metaBytes, 0o644); err != nil {
		return errors.Wrap(err, "cache: write metadata")
	}

	if hermeticRoot != "" {
		if err := writeSnapshot(hermeticRoot, dir.Join("workspace.tar.zst").ToString()); err != nil {
			s.logger.Warn("cache: snapshot skipped, tree modified concurrently", "key", key, "err", err)
		}
	}

	return nil
}

// MaterializeOutputs copies every file under tasks/<key>/outputs into dest,
// preserving relative layout, returning the number of files copied.
func (s *Store) MaterializeOutputs(key, dest string) (int, error) {
	outputsDir := s.taskDir(key).Join("outputs")
	if !outputsDir.DirExists() {
		return 0, nil
	}
	files, err := copyTree(outputsDir.ToString(), dest)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

func copyTree(src, dst string) ([]string, error) {
	var copied []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(destPath, data, info.Mode().Perm()); err != nil {
			return err
		}
		copied = append(copied, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

// writeSnapshot tars and zstd-compresses root into destPath, wiring
// tar.Writer -> zstd.Writer -> buffered file exactly as the teacher's
// cacheitem package does it.
func writeSnapshot(root, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	buf := bufio.NewWriterSize(f, 1<<20)
	zw := zstd.NewWriter(buf)
	tw := tar.NewWriter(zw)

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil // file vanished mid-snapshot; skip per spec
			}
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tarpatch.FileInfoHeader(filepath.ToSlash(rel), info, "")
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		defer func() { _ = file.Close() }()
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return buf.Flush()
}
