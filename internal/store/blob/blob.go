// Package blob implements the on-disk blob directory backing track
// payloads and image attachments. Blobs are opaque files addressed by
// generated names; the metadata document decides which of them are live.
package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Read when the blob does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidName is returned for names that escape the directory.
	ErrInvalidName = errors.New("invalid blob name")
)

// Dir is a flat directory of blob files.
// Writes go through a temp file and an atomic rename so a concurrent
// reader never observes a partially written blob.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: filepath.Clean(root)}
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// ensure creates the directory if absent. Lazy and idempotent; called
// on every write path so a freshly configured data dir just works.
func (d *Dir) ensure() error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("creating blob directory %s: %w", d.root, err)
	}
	return nil
}

// Store writes data under a generated collision-resistant name derived
// from suggestedName and returns the name. It never silently overwrites
// an existing unrelated blob: the name is reserved with an exclusive
// create, so concurrent writers sharing a suggested name in the same
// millisecond each get their own bumped name.
func (d *Dir) Store(data []byte, suggestedName string) (string, error) {
	if err := d.ensure(); err != nil {
		return "", err
	}

	base := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), Sanitize(suggestedName))
	name := base
	for i := 1; ; i++ {
		err := d.reserve(name)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("reserving blob %q: %w", name, err)
		}
		name = strconv.Itoa(i) + "_" + base
	}

	if err := d.writeAtomic(name, data); err != nil {
		_ = os.Remove(filepath.Join(d.root, name))
		return "", err
	}
	return name, nil
}

// StoreAs writes data under the exact given name, failing if a blob
// with that name already exists. Used for image names that embed the
// owning record id.
func (d *Dir) StoreAs(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := d.ensure(); err != nil {
		return err
	}
	if err := d.reserve(name); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("blob %q already exists", name)
		}
		return fmt.Errorf("reserving blob %q: %w", name, err)
	}
	if err := d.writeAtomic(name, data); err != nil {
		_ = os.Remove(filepath.Join(d.root, name))
		return err
	}
	return nil
}

// reserve claims name by creating the file exclusively. Exactly one of
// any set of concurrent claimants wins; the rest see os.ErrExist. The
// content then lands via writeAtomic's rename over the reservation.
func (d *Dir) reserve(name string) error {
	f, err := os.OpenFile(filepath.Join(d.root, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Overwrite replaces the content of an existing reference in place.
func (d *Dir) Overwrite(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := d.ensure(); err != nil {
		return err
	}
	return d.writeAtomic(name, data)
}

// writeAtomic writes data to a temp file in the same directory and
// renames it over the final path.
func (d *Dir) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing blob %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp blob: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(d.root, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("committing blob %q: %w", name, err)
	}
	return nil
}

// Read returns the blob content.
func (d *Dir) Read(name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("reading blob %q: %w", name, err)
	}
	return data, nil
}

// Exists reports whether the blob is present.
func (d *Dir) Exists(name string) bool {
	if validateName(name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(d.root, name))
	return err == nil
}

// Delete removes the blob. Absence is not an error (idempotent delete).
func (d *Dir) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.root, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting blob %q: %w", name, err)
	}
	return nil
}

// ModTime returns the blob's last modification time.
func (d *Dir) ModTime(name string) (time.Time, error) {
	if err := validateName(name); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, fmt.Errorf("blob %q: %w", name, ErrNotFound)
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// List returns the names of all blobs in the directory.
// An absent directory yields an empty list.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing blob directory %s: %w", d.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Sanitize reduces a user-supplied name to a safe character set:
// everything outside [a-z0-9.] becomes an underscore, uppercase folds
// to lowercase.
func Sanitize(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// validateName rejects names that could escape the blob directory.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
