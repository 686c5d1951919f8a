package jarfile

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/klauspost/compress/zip"

	// Ensure SHA256 is linked for replacement checksums.
	_ "crypto/sha256"
)

const (
	// ManifestName is the jar manifest entry.
	ManifestName = "META-INF/MANIFEST.MF"
	// MetaInfDir is the jar metadata directory entry.
	MetaInfDir = "META-INF/"

	// DefaultFileMode is used for jars written by the packager.
	DefaultFileMode os.FileMode = 0o644

	replaceChecksum = crypto.SHA256
)

// CanonicalTime is stamped on every entry of a normalized jar.
//
//nolint:gochecknoglobals // Constant time value.
var CanonicalTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one member of a jar.
type Entry struct {
	// Name is the slash-separated entry name; directories end with "/".
	Name string
	// Modified is the entry timestamp.
	Modified time.Time
	// Data holds the uncompressed contents.
	Data []byte
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Read loads every entry of the jar at path.
func Read(path string) ([]Entry, error) {
	reader, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open jar %s: %w", path, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	return readEntries(&reader.Reader)
}

// ReadBytes loads every entry of a jar held in memory.
func ReadBytes(data []byte) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open jar: %w", err)
	}

	return readEntries(reader)
}

func readEntries(reader *zip.Reader) ([]Entry, error) {
	entries := make([]Entry, 0, len(reader.File))

	for _, file := range reader.File {
		data, err := readFile(file)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Name:     file.Name,
			Modified: file.Modified,
			Data:     data,
		})
	}

	return entries, nil
}

func readFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", file.Name, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", file.Name, err)
	}

	return data, nil
}

// Contains reports whether the jar at path has an entry called name.
// Only the central directory is consulted.
func Contains(path, name string) (bool, error) {
	reader, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		return false, fmt.Errorf("open jar %s: %w", path, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, file := range reader.File {
		if file.Name == name {
			return true, nil
		}
	}

	return false, nil
}

// Write serializes entries in the given order. method is zip.Store or zip.Deflate.
func Write(w io.Writer, entries []Entry, method uint16) error {
	writer := zip.NewWriter(w)

	for i := range entries {
		entry := &entries[i]

		header := &zip.FileHeader{
			Name:     entry.Name,
			Method:   method,
			Modified: entry.Modified,
		}

		if entry.IsDir() {
			header.Method = zip.Store
			header.SetMode(os.ModeDir | 0o755)
		}

		dst, err := writer.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", entry.Name, err)
		}

		if entry.IsDir() {
			continue
		}

		if _, err = dst.Write(entry.Data); err != nil {
			return fmt.Errorf("write entry %s: %w", entry.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish jar: %w", err)
	}

	return nil
}

// Encode is Write into a fresh buffer.
func Encode(entries []Entry, method uint16) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, entries, method); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Normalize orders entries canonically and stamps them with CanonicalTime:
// META-INF/ first, then the manifest, then everything else by name.
func Normalize(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	for i := range out {
		out[i].Modified = CanonicalTime
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Name), rank(out[j].Name)
		if ri != rj {
			return ri < rj
		}

		return out[i].Name < out[j].Name
	})

	return out
}

func rank(name string) int {
	switch name {
	case MetaInfDir:
		return 0
	case ManifestName:
		return 1
	default:
		return 2
	}
}

// Replace swaps the file at path for data. The new content is verified
// against its checksum before it takes the place of the old file.
func Replace(path string, data []byte) error {
	hasher := replaceChecksum.New()
	_, _ = hasher.Write(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: DefaultFileMode,
		Checksum:   hasher.Sum(nil),
		Hash:       replaceChecksum,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("replace %s: rollback failed: %w", path, errors.Join(err, rerr))
		}

		return fmt.Errorf("replace %s: %w", path, err)
	}

	// go-update hides the backup when it cannot delete it.
	oldPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".old")
	if _, err := os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}
