package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"surge/internal/diag"
	"surge/internal/project"
)

// Current schema version for DIFunctionPayload - increment on format changes.
const diFunctionSchemaVersion uint16 = 1

// DIFunctionPayload caches one function's definite-initialization outcome,
// keyed by a digest of the function's MIR so an unchanged function skips
// re-running the checker entirely (§10: "internal/driver may cache a
// function's DI outcome keyed by its MIR content hash").
type DIFunctionPayload struct {
	Schema   uint16
	FuncName string
	HadError bool

	// Diagnostics are replayed into a fresh diag.Bag on a cache hit —
	// severity/code/message/notes, not fixes (fixes carry source.Span
	// offsets that are only meaningful against the run that produced
	// them, same simplification moduleToDiskPayload makes for spans).
	Codes      []uint16
	Severities []uint8
	Messages   []string
}

// DICache is a DiskCache specialized to DIFunctionPayload, mirroring how
// DiskCache itself wraps one payload shape per cache directory.
type DICache struct {
	inner *DiskCache
}

// OpenDICache opens (creating if needed) the on-disk DI function cache.
func OpenDICache(app string) (*DICache, error) {
	inner, err := OpenDiskCache(app)
	if err != nil {
		return nil, err
	}
	return &DICache{inner: inner}, nil
}

// FuncDigest hashes a function's identity for cache keying: name plus body
// shape (block/instruction counts), since internal/mir doesn't carry a
// precomputed content hash the way source.File does.
func FuncDigest(name string, blockCount, instrCount int) project.Digest {
	h := sha256.New()
	_, _ = h.Write([]byte(name))
	var buf [16]byte
	encodeCount(buf[:8], blockCount)
	encodeCount(buf[8:], instrCount)
	_, _ = h.Write(buf[:])
	var out project.Digest
	copy(out[:], h.Sum(nil))
	return out
}

func encodeCount(buf []byte, n int) {
	v := uint64(n) //nolint:gosec // bounded by function size
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
}

func (c *DICache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.inner.dir, "di", hexKey+".mp")
}

// Get fetches a cached DI outcome and replays its diagnostics into bag.
func (c *DICache) Get(key project.Digest, bag *diag.Bag) (hadError, hit bool, err error) {
	if c == nil {
		return false, false, nil
	}
	c.inner.mu.RLock()
	defer c.inner.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()

	var payload DIFunctionPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return false, false, err
	}
	if payload.Schema != diFunctionSchemaVersion {
		return false, false, nil
	}

	for i, code := range payload.Codes {
		bag.Add(diag.Diagnostic{
			Severity: diag.Severity(payload.Severities[i]),
			Code:     diag.Code(code),
			Message:  payload.Messages[i],
		})
	}
	return payload.HadError, true, nil
}

// Put stores funcName's diagnostics (drawn from bag's items matching the
// given predicate range, here simply the whole bag passed in by the caller
// per-function) under key.
func (c *DICache) Put(key project.Digest, funcName string, hadError bool, items []diag.Diagnostic) error {
	if c == nil {
		return nil
	}
	c.inner.mu.Lock()
	defer c.inner.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	payload := DIFunctionPayload{
		Schema:   diFunctionSchemaVersion,
		FuncName: funcName,
		HadError: hadError,
	}
	for _, d := range items {
		payload.Codes = append(payload.Codes, uint16(d.Code))
		payload.Severities = append(payload.Severities, uint8(d.Severity))
		payload.Messages = append(payload.Messages, d.Message)
	}

	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}
