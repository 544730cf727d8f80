package providers

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"regexp"

	"github.com/klauspost/compress/flate"
)

const (
	localHeaderSignature     = 0x04034b50
	centralDirSignature      = 0x02014b50
	endOfCentralDirSignature = 0x06054b50
	dataDescriptorSignature  = 0x08074b50

	localHeaderLen     = 30
	flagDataDescriptor = 0x8

	methodStore   = 0
	methodDeflate = 8
)

var (
	errMemberNotFound = errors.New("kmz: no matching archive member")
	errChecksum       = errors.New("kmz: checksum mismatch")
)

// openMember scans the local file headers of a zip stream and returns the
// decompressed content of the first member whose name matches pattern.
// The archive is never buffered: members before the match are decompressed
// into io.Discard, and the central directory is never read.
func openMember(r io.Reader, pattern *regexp.Regexp) (string, io.ReadCloser, error) {
	br := bufio.NewReader(r)

	for {
		var hdr [localHeaderLen]byte
		if _, err := io.ReadFull(br, hdr[:4]); err != nil {
			if errors.Is(err, io.EOF) {
				return "", nil, errMemberNotFound
			}
			return "", nil, fmt.Errorf("kmz: read local header: %w", err)
		}

		switch sig := binary.LittleEndian.Uint32(hdr[:4]); sig {
		case localHeaderSignature:
		case centralDirSignature, endOfCentralDirSignature:
			return "", nil, errMemberNotFound
		default:
			return "", nil, fmt.Errorf("kmz: bad local header signature %#x", sig)
		}

		if _, err := io.ReadFull(br, hdr[4:]); err != nil {
			return "", nil, fmt.Errorf("kmz: read local header: %w", err)
		}

		m := &memberReader{
			br:     br,
			flags:  binary.LittleEndian.Uint16(hdr[6:8]),
			method: binary.LittleEndian.Uint16(hdr[8:10]),
			crc:    binary.LittleEndian.Uint32(hdr[14:18]),
			size:   int64(binary.LittleEndian.Uint32(hdr[18:22])),
			hash:   crc32.NewIEEE(),
		}
		nameLen := int(binary.LittleEndian.Uint16(hdr[26:28]))
		extraLen := int(binary.LittleEndian.Uint16(hdr[28:30]))

		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return "", nil, fmt.Errorf("kmz: read member name: %w", err)
		}
		if _, err := br.Discard(extraLen); err != nil {
			return "", nil, fmt.Errorf("kmz: skip extra field: %w", err)
		}

		if err := m.init(); err != nil {
			return "", nil, fmt.Errorf("kmz: member %s: %w", name, err)
		}
		if pattern.MatchString(string(name)) {
			return string(name), m, nil
		}

		if _, err := io.Copy(io.Discard, m); err != nil {
			m.Close()
			return "", nil, fmt.Errorf("kmz: skip member %s: %w", name, err)
		}
		m.Close()
	}
}

// memberReader decompresses one member in place and checks its CRC once the
// content is exhausted.
type memberReader struct {
	br     *bufio.Reader
	flags  uint16
	method uint16
	crc    uint32
	size   int64

	src  io.Reader
	fr   io.ReadCloser
	hash hash.Hash32
	done bool
}

func (m *memberReader) init() error {
	switch m.method {
	case methodDeflate:
		// br is an io.ByteReader, so flate stops exactly at the end of the stream.
		m.fr = flate.NewReader(m.br)
		m.src = m.fr
	case methodStore:
		if m.flags&flagDataDescriptor != 0 {
			return errors.New("stored member with data descriptor is not supported")
		}
		m.src = io.LimitReader(m.br, m.size)
	default:
		return fmt.Errorf("unsupported compression method %d", m.method)
	}
	return nil
}

func (m *memberReader) Read(p []byte) (int, error) {
	if m.done {
		return 0, io.EOF
	}
	n, err := m.src.Read(p)
	m.hash.Write(p[:n])
	if errors.Is(err, io.EOF) {
		m.done = true
		if ferr := m.finish(); ferr != nil {
			return n, ferr
		}
	}
	return n, err
}

func (m *memberReader) finish() error {
	want := m.crc
	if m.flags&flagDataDescriptor != 0 {
		var desc [12]byte
		if _, err := io.ReadFull(m.br, desc[:4]); err != nil {
			return fmt.Errorf("kmz: read data descriptor: %w", err)
		}
		if binary.LittleEndian.Uint32(desc[:4]) == dataDescriptorSignature {
			if _, err := io.ReadFull(m.br, desc[:4]); err != nil {
				return fmt.Errorf("kmz: read data descriptor: %w", err)
			}
		}
		if _, err := io.ReadFull(m.br, desc[4:]); err != nil {
			return fmt.Errorf("kmz: read data descriptor: %w", err)
		}
		want = binary.LittleEndian.Uint32(desc[:4])
	}
	if got := m.hash.Sum32(); got != want {
		return fmt.Errorf("%w: got %08x, want %08x", errChecksum, got, want)
	}
	return nil
}

func (m *memberReader) Close() error {
	if m.fr != nil {
		return m.fr.Close()
	}
	return nil
}
