package simcore

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jmchacon/rhdl/rhdlerr"
)

// Magic identifies the binary state-snapshot format, grounded on the
// versioned-byte-layout convention in user-none-go-chip-m68k's serializer:
// a fixed magic string followed by a content hash tying the blob to the
// exact IR it was captured against.
const Magic = "RHDL01"

// StateSnapshot serializes the full header-wrapped state: magic, ir hash,
// lane count, then EncodeCore's payload.
func (c *Core) StateSnapshot() []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	data, err := c.Mod.ToJSON()
	if err != nil {
		panic(fmt.Sprintf("rhdl: simcore: computing ir hash: %v", err))
	}
	sum := sha256.Sum256(data)
	buf.Write(sum[:16])
	binary.Write(&buf, binary.LittleEndian, uint16(c.Lanes))
	c.EncodeCore(&buf)
	return buf.Bytes()
}

// EncodeCore writes net words, DFF q words, and internal RAM contents (in
// module-declaration order) without the magic/hash/lane header, so callers
// wrapping this in a larger envelope (package runner) don't duplicate it.
func (c *Core) EncodeCore(buf *bytes.Buffer) {
	binary.Write(buf, binary.LittleEndian, uint32(len(c.Nets)))
	for _, w := range c.Nets {
		binary.Write(buf, binary.LittleEndian, w)
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(c.Mod.DFFs)))
	for _, d := range c.Mod.DFFs {
		binary.Write(buf, binary.LittleEndian, c.Nets[d.Q])
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(c.rams)))
	for _, r := range c.rams {
		binary.Write(buf, binary.LittleEndian, uint32(len(r.words)))
		for _, lane := range r.words {
			binary.Write(buf, binary.LittleEndian, uint32(len(lane)))
			for _, w := range lane {
				binary.Write(buf, binary.LittleEndian, w)
			}
		}
	}
}

// StateRestore validates the magic and ir hash and restores the encoded
// core state.
func (c *Core) StateRestore(data []byte) error {
	if len(data) < len(Magic)+16+2 {
		return rhdlerr.IrMalformed{Field: "snapshot", Reason: "truncated header"}
	}
	r := bytes.NewReader(data)
	gotMagic := make([]byte, len(Magic))
	if _, err := r.Read(gotMagic); err != nil || string(gotMagic) != Magic {
		return rhdlerr.IrMalformed{Field: "snapshot.magic", Reason: "missing or incorrect magic"}
	}
	var gotHash [16]byte
	if _, err := r.Read(gotHash[:]); err != nil {
		return rhdlerr.IrMalformed{Field: "snapshot.hash", Reason: "truncated"}
	}
	wantData, err := c.Mod.ToJSON()
	if err != nil {
		return err
	}
	wantSum := sha256.Sum256(wantData)
	var wantHash [16]byte
	copy(wantHash[:], wantSum[:16])
	if gotHash != wantHash {
		return rhdlerr.IrIncompatible{Reason: "snapshot was captured against a different ir"}
	}
	var lanes uint16
	if err := binary.Read(r, binary.LittleEndian, &lanes); err != nil {
		return rhdlerr.IrMalformed{Field: "snapshot.lanes", Reason: "truncated"}
	}
	if int(lanes) != c.Lanes {
		return rhdlerr.IrIncompatible{Reason: fmt.Sprintf("snapshot lane count %d does not match simulator lane count %d", lanes, c.Lanes)}
	}
	return c.DecodeCore(r)
}

// DecodeCore is the inverse of EncodeCore; exported for package runner,
// which prepends/consumes its own header around the same core layout.
func (c *Core) DecodeCore(r *bytes.Reader) error {
	var netCount uint32
	if err := binary.Read(r, binary.LittleEndian, &netCount); err != nil {
		return rhdlerr.IrMalformed{Field: "snapshot.nets", Reason: "truncated"}
	}
	if int(netCount) != len(c.Nets) {
		return rhdlerr.IrIncompatible{Reason: "snapshot net count does not match module"}
	}
	for i := range c.Nets {
		if err := binary.Read(r, binary.LittleEndian, &c.Nets[i]); err != nil {
			return rhdlerr.IrMalformed{Field: "snapshot.nets", Reason: "truncated"}
		}
	}

	var dffCount uint32
	if err := binary.Read(r, binary.LittleEndian, &dffCount); err != nil {
		return rhdlerr.IrMalformed{Field: "snapshot.dffs", Reason: "truncated"}
	}
	if int(dffCount) != len(c.Mod.DFFs) {
		return rhdlerr.IrIncompatible{Reason: "snapshot dff count does not match module"}
	}
	for _, d := range c.Mod.DFFs {
		var q uint64
		if err := binary.Read(r, binary.LittleEndian, &q); err != nil {
			return rhdlerr.IrMalformed{Field: "snapshot.dffs", Reason: "truncated"}
		}
		c.Nets[d.Q] = q & c.LaneMask
	}

	var ramCount uint32
	if err := binary.Read(r, binary.LittleEndian, &ramCount); err != nil {
		return rhdlerr.IrMalformed{Field: "snapshot.rams", Reason: "truncated"}
	}
	if int(ramCount) != len(c.rams) {
		return rhdlerr.IrIncompatible{Reason: "snapshot ram count does not match module"}
	}
	for ri := range c.rams {
		var laneCount uint32
		if err := binary.Read(r, binary.LittleEndian, &laneCount); err != nil {
			return rhdlerr.IrMalformed{Field: "snapshot.rams", Reason: "truncated"}
		}
		if int(laneCount) != len(c.rams[ri].words) {
			return rhdlerr.IrIncompatible{Reason: "snapshot ram lane count does not match simulator"}
		}
		for li := range c.rams[ri].words {
			var wordCount uint32
			if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
				return rhdlerr.IrMalformed{Field: "snapshot.rams", Reason: "truncated"}
			}
			if int(wordCount) != len(c.rams[ri].words[li]) {
				return rhdlerr.IrIncompatible{Reason: "snapshot ram size does not match module"}
			}
			for wi := range c.rams[ri].words[li] {
				if err := binary.Read(r, binary.LittleEndian, &c.rams[ri].words[li][wi]); err != nil {
					return rhdlerr.IrMalformed{Field: "snapshot.rams", Reason: "truncated"}
				}
			}
		}
	}
	return nil
}
