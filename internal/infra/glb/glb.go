// Package glb reads and writes the binary glTF 2.0 container.
//
// Layout: a 12-byte header (magic "glTF", version, total length) followed by a
// JSON chunk and an optional BIN chunk. Every chunk is 8 bytes of
// length+type and a payload padded to a 4-byte boundary. All integers are
// little-endian.
package glb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic is the first four bytes of every GLB file.
	Magic = "glTF"
	// Version is the only container version this package writes.
	Version uint32 = 2

	// ChunkJSON is the type tag of the JSON chunk ("JSON").
	ChunkJSON uint32 = 0x4E4F534A
	// ChunkBIN is the type tag of the binary chunk ("BIN\x00").
	ChunkBIN uint32 = 0x004E4942

	headerSize      = 12
	chunkHeaderSize = 8
)

// ErrInvalid is returned by ReadHeader for data that is not a GLB file.
var ErrInvalid = errors.New("glb: invalid container")

// Header is the parsed 12-byte file header plus the first chunk's header.
type Header struct {
	Version    uint32
	Length     uint32
	JSONLength uint32
}

// Asset is the minimal glTF asset block.
type Asset struct {
	Version   string         `json:"version"`
	Generator string         `json:"generator,omitempty"`
	Extras    map[string]any `json:"extras,omitempty"`
}

// Scene lists root node indices.
type Scene struct {
	Nodes []int `json:"nodes"`
}

// Node is a glTF scene node.
type Node struct {
	Name string `json:"name,omitempty"`
	Mesh *int   `json:"mesh,omitempty"`
}

// Document is the subset of the glTF JSON schema the builtin converter emits.
type Document struct {
	Asset  Asset   `json:"asset"`
	Scene  int     `json:"scene"`
	Scenes []Scene `json:"scenes"`
	Nodes  []Node  `json:"nodes"`
}

// NewDocument returns an empty single-scene document.
func NewDocument(generator string) Document {
	return Document{
		Asset:  Asset{Version: "2.0", Generator: generator},
		Scene:  0,
		Scenes: []Scene{{Nodes: []int{}}},
		Nodes:  []Node{},
	}
}

// Encode serializes doc and an optional binary buffer into a GLB byte slice.
func Encode(doc Document, bin []byte) ([]byte, error) {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("glb: marshal document: %w", err)
	}
	jsonBytes = pad(jsonBytes, ' ')

	total := headerSize + chunkHeaderSize + len(jsonBytes)
	if len(bin) > 0 {
		bin = pad(bin, 0)
		total += chunkHeaderSize + len(bin)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	buf.WriteString(Magic)
	le := binary.LittleEndian
	buf.Write(le.AppendUint32(nil, Version))
	buf.Write(le.AppendUint32(nil, uint32(total)))
	buf.Write(le.AppendUint32(nil, uint32(len(jsonBytes))))
	buf.Write(le.AppendUint32(nil, ChunkJSON))
	buf.Write(jsonBytes)
	if len(bin) > 0 {
		buf.Write(le.AppendUint32(nil, uint32(len(bin))))
		buf.Write(le.AppendUint32(nil, ChunkBIN))
		buf.Write(bin)
	}
	return buf.Bytes(), nil
}

// Write encodes doc into w.
func Write(w io.Writer, doc Document, bin []byte) error {
	data, err := Encode(doc, bin)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("glb: write: %w", err)
	}
	return nil
}

// ReadHeader parses the file header and the JSON chunk header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [headerSize + chunkHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("%w: short header: %v", ErrInvalid, err)
	}
	if string(raw[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrInvalid, raw[0:4])
	}

	le := binary.LittleEndian
	h := Header{
		Version:    le.Uint32(raw[4:8]),
		Length:     le.Uint32(raw[8:12]),
		JSONLength: le.Uint32(raw[12:16]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrInvalid, h.Version)
	}
	if le.Uint32(raw[16:20]) != ChunkJSON {
		return Header{}, fmt.Errorf("%w: first chunk is not JSON", ErrInvalid)
	}
	if h.JSONLength%4 != 0 || uint64(h.Length) < uint64(headerSize+chunkHeaderSize)+uint64(h.JSONLength) {
		return Header{}, fmt.Errorf("%w: inconsistent lengths", ErrInvalid)
	}
	return h, nil
}

func pad(b []byte, fill byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, fill)
	}
	return b
}
