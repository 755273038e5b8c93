// Package volumes seeds host directories from zip archives before a stack
// starts. Archives come from the local filesystem or from S3.
package volumes

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/handel/internal/core/graph"
	"github.com/spf13/afero"
)

// Entry is one volume to initialise.
type Entry struct {
	Name     string
	Source   string // local zip path or s3://bucket/key
	Target   string
	Services []string // empty = always
}

// ObjectStore downloads archive objects.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
}

// Outcome reports what happened to one entry.
type Outcome struct {
	Name    string
	Target  string
	Status  Status
	Files   int
	Message string
}

// Status of an entry after Initialise.
type Status string

const (
	StatusExtracted Status = "extracted"
	StatusSkipped   Status = "skipped"
)

// Initializer extracts volume archives into target directories.
type Initializer struct {
	fs      afero.Fs
	objects ObjectStore
	logger  *slog.Logger
	lookup  func(string) (string, bool)
}

// NewInitializer creates an initializer. objects may be nil when no entry
// uses an s3:// source.
func NewInitializer(fs afero.Fs, objects ObjectStore, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{fs: fs, objects: objects, logger: logger, lookup: os.LookupEnv}
}

// Initialise processes entries in order. An entry is skipped when its
// services filter matches none of resolved, or when its target directory
// already has content. Targets that do not exist are created.
func (in *Initializer) Initialise(ctx context.Context, entries []Entry, resolved graph.Set) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		out, err := in.initialiseOne(ctx, e, resolved)
		if err != nil {
			return outcomes, err
		}
		in.logger.Info("volume init", "name", out.Name, "target", out.Target, "status", out.Status, "files", out.Files, "reason", out.Message)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (in *Initializer) initialiseOne(ctx context.Context, e Entry, resolved graph.Set) (Outcome, error) {
	out := Outcome{Name: e.Name, Target: e.Target, Status: StatusSkipped}

	if !selected(e.Services, resolved) {
		out.Message = "no listed service in this run"
		return out, nil
	}

	source, err := in.expand(e.Source)
	if err != nil {
		return out, &VolumeError{Name: e.Name, Op: "expand", Message: err.Error(), Err: err}
	}
	target, err := in.expand(e.Target)
	if err != nil {
		return out, &VolumeError{Name: e.Name, Op: "expand", Message: err.Error(), Err: err}
	}
	out.Target = target

	empty, err := in.ensureEmptyDir(target)
	if err != nil {
		return out, &VolumeError{Name: e.Name, Op: "prepare", Message: err.Error(), Err: err}
	}
	if !empty {
		out.Message = "target is not empty"
		return out, nil
	}

	archive, cleanup, err := in.open(ctx, source)
	if err != nil {
		return out, &VolumeError{Name: e.Name, Op: "fetch", Message: err.Error(), Err: err}
	}
	defer cleanup()

	files, err := in.extract(archive, target)
	if err != nil {
		return out, &VolumeError{Name: e.Name, Op: "extract", Message: err.Error(), Err: err}
	}
	out.Status = StatusExtracted
	out.Files = files
	return out, nil
}

// selected reports whether an entry applies to this run.
func selected(services []string, resolved graph.Set) bool {
	if len(services) == 0 {
		return true
	}
	for _, s := range services {
		if resolved.Has(s) {
			return true
		}
	}
	return false
}

// expand substitutes $VAR and ${VAR}; an unset variable is an error.
func (in *Initializer) expand(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(name string) string {
		v, ok := in.lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s in %q", ErrUnsetVariable, strings.Join(missing, ", "), s)
	}
	return out, nil
}

// ensureEmptyDir creates dir when absent and reports whether it is empty.
func (in *Initializer) ensureEmptyDir(dir string) (bool, error) {
	exists, err := afero.DirExists(in.fs, dir)
	if err != nil {
		return false, err
	}
	if !exists {
		if err := in.fs.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
		return true, nil
	}
	return afero.IsEmpty(in.fs, dir)
}

// open returns the archive for source. S3 objects are downloaded to a
// temporary file that cleanup removes.
func (in *Initializer) open(ctx context.Context, source string) (afero.File, func(), error) {
	if !strings.HasPrefix(source, "s3://") {
		f, err := in.fs.Open(source)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	}

	bucket, key, err := parseS3URL(source)
	if err != nil {
		return nil, nil, err
	}
	if in.objects == nil {
		return nil, nil, ErrNoObjectStore
	}

	tmp, err := afero.TempFile(in.fs, "", "handel-volume-*.zip")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		tmp.Close()
		in.fs.Remove(tmp.Name())
	}

	n, err := in.objects.Download(ctx, bucket, key, tmp)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, source, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, err
	}
	in.logger.Debug("downloaded volume archive", "source", source, "bytes", n)
	return tmp, cleanup, nil
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrInvalidSource, raw, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q (want s3://bucket/key)", ErrInvalidSource, raw)
	}
	return u.Host, key, nil
}

// extract unpacks archive into target and returns the number of files
// written. Entries that would land outside target are rejected.
func (in *Initializer) extract(archive afero.File, target string) (int, error) {
	info, err := archive.Stat()
	if err != nil {
		return 0, err
	}
	zr, err := zip.NewReader(archive, info.Size())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	root := filepath.Clean(target)
	files := 0
	for _, zf := range zr.File {
		dest := filepath.Join(root, zf.Name)
		if dest != root && !strings.HasPrefix(dest, root+string(filepath.Separator)) {
			return files, fmt.Errorf("%w: %s", ErrUnsafeArchive, zf.Name)
		}

		if zf.FileInfo().IsDir() {
			if err := in.fs.MkdirAll(dest, 0o755); err != nil {
				return files, err
			}
			continue
		}
		if err := in.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return files, err
		}
		if err := in.writeEntry(zf, dest); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func (in *Initializer) writeEntry(zf *zip.File, dest string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := zf.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	f, err := in.fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
