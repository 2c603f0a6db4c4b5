// Package dlc indexes the add-on content tree served to clients. Files live
// under root/<serial>/<type>/<name> and are indexed 1-based per directory in
// name order, so indexes stay stable across restarts.
package dlc

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
)

// Entry describes one content file.
type Entry struct {
	Path   string
	Name   string
	Serial string
	Type   string

	// Index is the 1-based position within the serial/type directory.
	Index int

	// Size is the size as served, including the appended checksum when the
	// file itself lacks one.
	Size int64

	Checksum uint16

	// checksumEmbedded records whether the file's trailing two bytes
	// already hold a valid checksum. If not, it is appended when served.
	checksumEmbedded bool
}

// List is the loaded content index.
type List struct {
	root    string
	entries []Entry
}

// Load scans the content tree. A missing root yields an empty list, not an
// error, so the server runs fine without any content installed.
func Load(root string) (*List, error) {
	l := &List{root: root}

	serials, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no content directory", "path", root)
			return l, nil
		}
		return nil, fmt.Errorf("reading content root %s: %w", root, err)
	}

	for _, serial := range serials {
		if !serial.IsDir() {
			slog.Warn("stray file in content root", "name", serial.Name())
			continue
		}
		if err := l.loadSerial(serial.Name()); err != nil {
			return nil, err
		}
	}

	slog.Info("content loaded", "files", len(l.entries))
	return l, nil
}

func (l *List) loadSerial(serial string) error {
	dir := filepath.Join(l.root, serial)
	children, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	// Files directly under the serial directory are the untyped pool,
	// stored with an empty type.
	untypedIndex := 1
	for _, child := range children {
		if !child.IsDir() {
			if l.addFile(serial, "", untypedIndex, filepath.Join(dir, child.Name())) {
				untypedIndex++
			}
			continue
		}

		typeDir := filepath.Join(dir, child.Name())
		files, err := os.ReadDir(typeDir)
		if err != nil {
			return fmt.Errorf("reading content directory %s: %w", typeDir, err)
		}

		index := 1
		for _, file := range files {
			if file.IsDir() {
				slog.Warn("nested directory in content tree", "serial", serial, "type", child.Name(), "name", file.Name())
				continue
			}
			if l.addFile(serial, child.Name(), index, filepath.Join(typeDir, file.Name())) {
				index++
			}
		}
	}
	return nil
}

// addFile indexes one file, reporting whether its index slot was used.
func (l *List) addFile(serial, typ string, index int, path string) bool {
	name := filepath.Base(path)
	// Reserved by the client protocol for "no selection".
	if name == "none" || name == "custom" {
		slog.Warn("content file uses a reserved name", "serial", serial, "type", typ, "name", name)
		return false
	}

	entry, err := l.loadFile(serial, typ, index, path)
	if err != nil {
		slog.Error("skipping unreadable content file", "path", path, "err", err)
		return false
	}
	l.entries = append(l.entries, entry)
	return true
}

// loadFile checks for a trailing CRC-16 checksum. Files without one get it
// appended at serve time, so plain dumps can be dropped into the tree as-is.
func (l *List) loadFile(serial, typ string, index int, path string) (Entry, error) {
	entry := Entry{
		Path:   path,
		Name:   filepath.Base(path),
		Serial: serial,
		Type:   typ,
		Index:  index,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}

	entry.Size = int64(len(data))
	if len(data) >= 2 {
		checksum := crypto.Crc16(data[:len(data)-2])
		if checksum == binary.LittleEndian.Uint16(data[len(data)-2:]) {
			entry.Checksum = checksum
			entry.checksumEmbedded = true
			return entry, nil
		}
		slog.Warn("content file lacks a trailing checksum", "serial", serial, "type", typ, "name", entry.Name)
	}

	entry.Checksum = crypto.Crc16(data)
	entry.Size += 2
	return entry, nil
}

// Entries returns the entries for a serial/type directory, in index order.
func (l *List) Entries(serial, typ string) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Serial == serial && e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Entry looks up a single file by name.
func (l *List) Entry(serial, typ, name string) (Entry, bool) {
	for _, e := range l.entries {
		if e.Serial == serial && e.Type == typ && e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Index returns the 1-based index of a file, or 0 when it is absent. The
// zero return doubles as the "no selection" value on the wire.
func (l *List) Index(serial, typ, name string) int {
	e, ok := l.Entry(serial, typ, name)
	if !ok {
		return 0
	}
	return e.Index
}

// RawContent reads a file's bytes exactly as stored.
func (l *List) RawContent(e Entry) ([]byte, error) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("reading content %s: %w", e.Path, err)
	}
	return data, nil
}

// Content reads a file's bytes as served, appending the checksum when the
// file does not carry one.
func (l *List) Content(e Entry) ([]byte, error) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("reading content %s: %w", e.Path, err)
	}
	if !e.checksumEmbedded {
		data = binary.LittleEndian.AppendUint16(data, e.Checksum)
	}
	return data, nil
}
