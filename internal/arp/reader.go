package arp

import (
	"os"

	"go.uber.org/zap"

	"github.com/wfdtools/wfdlink/internal/logging"
)

// ProcNetArp is the default location of the kernel ARP cache on Linux.
const ProcNetArp = "/proc/net/arp"

// Source supplies a raw text snapshot of the OS ARP cache.
// Separating the read from parsing keeps Parse deterministic for tests.
type Source interface {
	ReadTable() (string, error)
}

// FileSource reads the ARP cache from a file, normally /proc/net/arp.
type FileSource struct {
	// Path of the cache file. Empty means ProcNetArp.
	Path string
}

// ReadTable returns the file contents as text.
func (s FileSource) ReadTable() (string, error) {
	path := s.Path
	if path == "" {
		path = ProcNetArp
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Reader reads and parses the OS ARP cache.
type Reader struct {
	source Source
}

// NewReader creates a Reader backed by the given source.
// A nil source defaults to reading /proc/net/arp.
func NewReader(source Source) *Reader {
	if source == nil {
		source = FileSource{}
	}
	return &Reader{source: source}
}

// Read returns the current ARP cache as a parsed table.
// An unreadable cache yields an empty table, never an error: the callers'
// resolution stages treat a missing entry and an unreadable cache the same
// way, by falling through to the next stage.
func (r *Reader) Read() Table {
	text, err := r.source.ReadTable()
	if err != nil {
		logging.Warn("Failed to read ARP cache", zap.Error(err))
		return Table{}
	}
	logging.Debug("ARP cache snapshot", zap.String("table", text))
	return Parse(text)
}
