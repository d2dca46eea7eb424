package codec

import (
	"encoding/binary"
	"fmt"
)

// Encodable is implemented by any value that can be rendered into a fixed
// or variable number of byte cells for columnar storage. The prolly tree's
// nodes use a fixed width of two: a Segment entry yields (key, value) and
// an Index boundary yields (upper-bound key, child hash).
type Encodable interface {
	// Cells returns the record's fields as byte slices, in a stable
	// order. The slices may alias the Encodable's own backing storage.
	Cells() [][]byte
}

// EncodeColumnar serializes a batch of records sharing the same cell
// shape into the columnar wire format: a deduplicated cell table followed
// by one index list per record, each index list naming which table slot
// each of its cells came from. Records that repeat a cell value (the same
// attribute appearing across many facts, for instance) pay for that cell
// once.
//
// fixedWidth is the number of cells every record contributes; pass 0 for
// an unbounded shape, in which case each record is additionally prefixed
// by its own cell count.
func EncodeColumnar(records []Encodable, fixedWidth int) []byte {
	table := make([][]byte, 0, len(records)*4)
	index := make(map[string]uint32, len(records)*4)

	slotOf := func(cell []byte) uint32 {
		key := string(cell)
		if slot, ok := index[key]; ok {
			return slot
		}
		slot := uint32(len(table))
		table = append(table, cell)
		index[key] = slot
		return slot
	}

	recordSlots := make([][]uint32, len(records))
	for i, rec := range records {
		cells := rec.Cells()
		if fixedWidth > 0 && len(cells) != fixedWidth {
			panic(fmt.Sprintf("dialog: codec: record %d has %d cells, want %d", i, len(cells), fixedWidth))
		}
		slots := make([]uint32, len(cells))
		for j, cell := range cells {
			slots[j] = slotOf(cell)
		}
		recordSlots[i] = slots
	}

	var out []byte
	out = appendUvarint(out, uint64(len(table)))
	for _, cell := range table {
		out = appendUvarint(out, uint64(len(cell)))
		out = append(out, cell...)
	}

	out = appendUvarint(out, uint64(len(records)))
	for _, slots := range recordSlots {
		if fixedWidth == 0 {
			out = appendUvarint(out, uint64(len(slots)))
		}
		for _, slot := range slots {
			out = appendUvarint(out, uint64(slot))
		}
	}
	return out
}

// DecodeColumnar parses the columnar wire format back into a cell table
// and a per-record list of cell indices into that table. The returned
// slices alias buf: callers that retain them past buf's lifetime must
// copy.
func DecodeColumnar(buf []byte, fixedWidth int) (table [][]byte, records [][]uint32, err error) {
	r := &cellReader{buf: buf}

	tableLen, err := r.uvarint()
	if err != nil {
		return nil, nil, fmt.Errorf("dialog: codec: decode columnar table length: %w", err)
	}
	table = make([][]byte, 0, tableLen)
	for i := uint64(0); i < tableLen; i++ {
		cellLen, err := r.uvarint()
		if err != nil {
			return nil, nil, fmt.Errorf("dialog: codec: decode columnar cell %d length: %w", i, err)
		}
		cell, err := r.bytes(int(cellLen))
		if err != nil {
			return nil, nil, fmt.Errorf("dialog: codec: decode columnar cell %d: %w", i, err)
		}
		table = append(table, cell)
	}

	recordCount, err := r.uvarint()
	if err != nil {
		return nil, nil, fmt.Errorf("dialog: codec: decode columnar record count: %w", err)
	}
	records = make([][]uint32, 0, recordCount)
	for i := uint64(0); i < recordCount; i++ {
		width := fixedWidth
		if width == 0 {
			w, err := r.uvarint()
			if err != nil {
				return nil, nil, fmt.Errorf("dialog: codec: decode columnar record %d width: %w", i, err)
			}
			width = int(w)
		}
		slots := make([]uint32, width)
		for j := 0; j < width; j++ {
			slot, err := r.uvarint()
			if err != nil {
				return nil, nil, fmt.Errorf("dialog: codec: decode columnar record %d slot %d: %w", i, j, err)
			}
			if slot >= uint64(len(table)) {
				return nil, nil, fmt.Errorf("dialog: codec: record %d slot %d references out-of-range table entry %d", i, j, slot)
			}
			slots[j] = uint32(slot)
		}
		records = append(records, slots)
	}
	return table, records, nil
}

// FromCells rehydrates a single record's cells from a decoded table and
// slot list, in the order build expects to consume them.
func FromCells(table [][]byte, slots []uint32) [][]byte {
	cells := make([][]byte, len(slots))
	for i, slot := range slots {
		cells[i] = table[slot]
	}
	return cells
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

type cellReader struct {
	buf []byte
	off int
}

func (r *cellReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("malformed or truncated uvarint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *cellReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("truncated buffer: want %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}
