package crypto

import (
	"bufio"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

// Streams use the same nonce prefix as Encrypt, followed by sealed segments
// of at most chunkSize plaintext bytes. Segment i is sealed with the prefix
// XOR (i in bytes 7..10, last flag in byte 11), so reordering, dropping or
// truncating segments fails authentication.

var (
	errWriterClosed   = errors.New("crypto: stream writer closed")
	errStreamTooLarge = errors.New("crypto: stream segment counter overflow")
)

// NewEncryptWriter returns a writer sealing everything written to it into w.
// Close must be called to emit the final segment; it does not close w.
func (e *AEADEngine) NewEncryptWriter(w io.Writer, key, associatedData []byte) (io.WriteCloser, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	prefix, err := e.nonces.Nonce(NonceSize)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(prefix); err != nil {
		return nil, err
	}
	sw := &encryptWriter{
		dst:       w,
		aead:      aead,
		ad:        associatedData,
		chunkSize: e.chunkSize,
		buf:       make([]byte, 0, e.chunkSize+aead.Overhead()),
	}
	copy(sw.prefix[:], prefix)
	return sw, nil
}

// NewDecryptReader returns a reader yielding the plaintext of a stream
// produced by NewEncryptWriter. Plaintext is released one verified segment at
// a time; a stream that ends early yields an error instead of io.EOF.
func (e *AEADEngine) NewDecryptReader(r io.Reader, key, associatedData []byte) (io.Reader, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)
	dr := &decryptReader{
		src:  br,
		aead: aead,
		ad:   associatedData,
		buf:  make([]byte, e.chunkSize+aead.Overhead()),
		log:  e.log,
	}
	if _, err := io.ReadFull(br, dr.prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrDecryptionUnknownFailure
		}
		return nil, err
	}
	return dr, nil
}

func segmentNonce(prefix [NonceSize]byte, counter uint32, last bool) [NonceSize]byte {
	n := prefix
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], counter)
	for i := range c {
		n[7+i] ^= c[i]
	}
	if last {
		n[NonceSize-1] ^= 0x01
	}
	return n
}

type encryptWriter struct {
	dst       io.Writer
	aead      cipher.AEAD
	prefix    [NonceSize]byte
	ad        []byte
	chunkSize int
	buf       []byte
	counter   uint32
	closed    bool
	err       error
}

func (w *encryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errWriterClosed
	}
	if w.err != nil {
		return 0, w.err
	}
	total := 0
	for len(p) > 0 {
		// A full buffer is only sealed once more data shows it is not last.
		if len(w.buf) == w.chunkSize {
			if err := w.seal(false); err != nil {
				w.err = err
				return total, err
			}
		}
		n := min(w.chunkSize-len(w.buf), len(p))
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		total += n
	}
	return total, nil
}

func (w *encryptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	return w.seal(true)
}

func (w *encryptWriter) seal(last bool) error {
	if w.counter == math.MaxUint32 {
		return errStreamTooLarge
	}
	nonce := segmentNonce(w.prefix, w.counter, last)
	ct := w.aead.Seal(w.buf[:0], nonce[:], w.buf, w.ad)
	if _, err := w.dst.Write(ct); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	w.counter++
	return nil
}

type decryptReader struct {
	src     *bufio.Reader
	aead    cipher.AEAD
	prefix  [NonceSize]byte
	ad      []byte
	buf     []byte
	plain   []byte
	counter uint32
	done    bool
	err     error
	log     *logrus.Entry
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.plain) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		r.err = r.open()
	}
	n := copy(p, r.plain)
	r.plain = r.plain[n:]
	return n, nil
}

func (r *decryptReader) open() error {
	n, err := io.ReadFull(r.src, r.buf)
	last := false
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		last = true
	case err != nil:
		return err
	default:
		if _, perr := r.src.Peek(1); errors.Is(perr, io.EOF) {
			last = true
		} else if perr != nil {
			return perr
		}
	}
	if n < r.aead.Overhead() {
		r.log.Debug("stream segment shorter than tag")
		return ErrDecryptionUnknownFailure
	}
	if r.counter == math.MaxUint32 {
		return errStreamTooLarge
	}
	nonce := segmentNonce(r.prefix, r.counter, last)
	pt, err := r.aead.Open(r.buf[:0], nonce[:], r.buf[:n], r.ad)
	if err != nil {
		r.log.Debug("stream segment tag check failed")
		return ErrAuthenticationFailed
	}
	r.counter++
	r.plain = pt
	r.done = last
	return nil
}
