package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the version written in every backup header.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of decompressed backup data (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// BackupHeader is the plain-text first line of a backup file. It can be read
// without touching the compressed payload.
type BackupHeader struct {
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	Checksum    string            `json:"checksum"`
	NodeCount   int               `json:"node_count"`
	EdgeCount   int               `json:"edge_count"`
	GeneratedBy string            `json:"generated_by,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Write stores b at path as a header line followed by the gzip-compressed
// JSON payload. The header carries the SHA-256 of the compressed bytes.
func Write(path string, b *BackupFormat) (*BackupHeader, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &BackupHeader{
		Version:     FormatVersion,
		CreatedAt:   b.CreatedAt,
		Checksum:    checksum(compressed.Bytes()),
		NodeCount:   len(b.Nodes),
		EdgeCount:   b.edgeCount(),
		GeneratedBy: b.GeneratedBy,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing compressed payload: %w", err)
	}
	return header, f.Sync()
}

// Read loads a backup file, verifies its checksum and decompresses the payload.
func Read(path string) (*BackupFormat, error) {
	header, compressed, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := verify(header, compressed); err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var b BackupFormat
	if err := json.Unmarshal(decompressed, &b); err != nil {
		return nil, fmt.Errorf("parsing backup data: %w", err)
	}
	return &b, nil
}

// ReadHeader reads only the header line of a backup file.
func ReadHeader(path string) (*BackupHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return parseHeader(bufio.NewReader(f))
}

// VerifyChecksum checks the integrity of a backup file without decompressing it.
func VerifyChecksum(path string) error {
	header, compressed, err := readFile(path)
	if err != nil {
		return err
	}
	return verify(header, compressed)
}

func readFile(path string) (*BackupHeader, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := parseHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	return header, compressed, nil
}

func parseHeader(r *bufio.Reader) (*BackupHeader, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header BackupHeader
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version: %d", header.Version)
	}
	return &header, nil
}

func verify(header *BackupHeader, compressed []byte) error {
	if actual := checksum(compressed); actual != header.Checksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
