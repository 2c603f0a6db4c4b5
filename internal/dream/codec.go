// Package dream decodes uploaded dream-world save fragments and encodes the
// content blobs sent back to the client on wake-up.
package dream

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
	"github.com/dreamlink/dreamlinkd/internal/model"
)

// RecordSize is the size of an encrypted Pokémon record.
const RecordSize = 236

// SaveRecordOffset is where the record sits inside a full save fragment
// (the dream-world block at 0x1D300 plus its 8-byte header).
const SaveRecordOffset = 0x1D300 + 8

// CodecError reports a record that decrypted cleanly but failed range
// validation, naming the first invalid field.
type CodecError struct {
	Field string
	Value int
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("dream: %s out of range: %d", e.Field, e.Value)
}

// blockShuffleTable maps the 24 personality-derived block orders back to
// their canonical positions.
var blockShuffleTable = [96]byte{
	0, 1, 2, 3, 0, 1, 3, 2, 0, 2, 1, 3, 0, 3, 1, 2,
	0, 2, 3, 1, 0, 3, 2, 1, 1, 0, 2, 3, 1, 0, 3, 2,
	2, 0, 1, 3, 3, 0, 1, 2, 2, 0, 3, 1, 3, 0, 2, 1,
	1, 2, 0, 3, 1, 3, 0, 2, 2, 1, 0, 3, 3, 1, 0, 2,
	2, 3, 0, 1, 3, 2, 0, 1, 1, 2, 3, 0, 1, 3, 2, 0,
	2, 1, 3, 0, 3, 1, 2, 0, 2, 3, 1, 0, 3, 2, 1, 0,
}

// decryptBlock XORs the region with the save file keystream: a 32-bit LCG
// advanced once per 16-bit little-endian word. Encryption and decryption
// are the same operation.
func decryptBlock(buf []byte, offset, length int, seed uint32) error {
	if length%2 != 0 {
		return fmt.Errorf("dream: block length %d is not a multiple of 2", length)
	}
	if offset < 0 || offset+length > len(buf) {
		return fmt.Errorf("dream: block [%d:%d] outside buffer of %d bytes", offset, offset+length, len(buf))
	}

	for i := 0; i < length; i += 2 {
		seed = 0x41C64E6D*seed + 0x6073
		word := binary.LittleEndian.Uint16(buf[offset+i:])
		binary.LittleEndian.PutUint16(buf[offset+i:], word^uint16(seed>>16))
	}
	return nil
}

// ReadRecord decrypts and validates one encrypted Pokémon record. The input
// is not modified.
func ReadRecord(data []byte) (*model.PkmnRecord, error) {
	if len(data) < RecordSize {
		return nil, fmt.Errorf("dream: record is %d bytes, want %d", len(data), RecordSize)
	}

	buf := make([]byte, RecordSize)
	copy(buf, data)

	personality := binary.LittleEndian.Uint32(buf[0:])
	checksum := binary.LittleEndian.Uint16(buf[6:])

	if err := decryptBlock(buf, 8, 128, uint32(checksum)); err != nil {
		return nil, err
	}
	if err := decryptBlock(buf, 136, 100, personality); err != nil {
		return nil, err
	}

	// Undo the personality-derived block shuffle of the 128-byte region.
	shift := (personality >> 13 & 0x1F) % 24
	shuffled := make([]byte, 128)
	for i := range 4 {
		from := int(blockShuffleTable[i+int(shift)*4]) * 32
		copy(shuffled[i*32:], buf[8+from:8+from+32])
	}
	copy(buf[8:], shuffled)

	flags := buf[64]
	gender := model.GenderMale
	switch {
	case flags>>2&1 == 1:
		gender = model.GenderGenderless
	case flags>>1&1 == 1:
		gender = model.GenderFemale
	}

	record := &model.PkmnRecord{
		Species:         int(int16(binary.LittleEndian.Uint16(buf[8:]))),
		HeldItem:        int(binary.LittleEndian.Uint16(buf[10:])),
		TrainerID:       int(binary.LittleEndian.Uint16(buf[12:])),
		TrainerSecretID: int(binary.LittleEndian.Uint16(buf[14:])),
		Ability:         int(buf[21]),
		Form:            int(flags >> 3),
		Gender:          gender,
		Nature:          model.PkmnNature(buf[65]),
		Nickname:        readUTF16(buf[72:], 20),
		TrainerName:     readUTF16(buf[104:], 14),
		Level:           int(int8(buf[140])),
		Personality:     personality,
	}

	switch {
	case record.Species < 1 || record.Species > 649:
		return nil, &CodecError{Field: "species", Value: record.Species}
	case record.HeldItem > 638:
		return nil, &CodecError{Field: "held item", Value: record.HeldItem}
	case record.Ability < 1 || record.Ability > 164:
		return nil, &CodecError{Field: "ability", Value: record.Ability}
	case record.Level < 1 || record.Level > 100:
		return nil, &CodecError{Field: "level", Value: record.Level}
	case !record.Nature.Valid():
		return nil, &CodecError{Field: "nature", Value: int(record.Nature)}
	}

	return record, nil
}

// WriteRecord encrypts a record into the uploaded wire layout. It is the
// inverse of ReadRecord, used to seed fixture and debugging data; real
// records only ever arrive from the game.
func WriteRecord(r *model.PkmnRecord) []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:], r.Personality)

	binary.LittleEndian.PutUint16(buf[8:], uint16(int16(r.Species)))
	binary.LittleEndian.PutUint16(buf[10:], uint16(r.HeldItem))
	binary.LittleEndian.PutUint16(buf[12:], uint16(r.TrainerID))
	binary.LittleEndian.PutUint16(buf[14:], uint16(r.TrainerSecretID))
	buf[21] = byte(r.Ability)

	flags := byte(r.Form) << 3
	switch r.Gender {
	case model.GenderFemale:
		flags |= 1 << 1
	case model.GenderGenderless:
		flags |= 1 << 2
	}
	buf[64] = flags
	buf[65] = byte(r.Nature)

	writeTerminated(buf[72:104], r.Nickname)
	writeTerminated(buf[104:132], r.TrainerName)
	buf[140] = byte(int8(r.Level))

	checksum := crypto.Crc16(buf[8:136])
	binary.LittleEndian.PutUint16(buf[6:], checksum)

	// Apply the personality-derived block shuffle, then the keystream.
	shift := (r.Personality >> 13 & 0x1F) % 24
	shuffled := make([]byte, 128)
	for i := range 4 {
		to := int(blockShuffleTable[i+int(shift)*4]) * 32
		copy(shuffled[to:], buf[8+i*32:8+(i+1)*32])
	}
	copy(buf[8:], shuffled)

	decryptBlock(buf, 8, 128, uint32(checksum))
	decryptBlock(buf, 136, 100, r.Personality)
	return buf
}

func writeTerminated(buf []byte, s string) {
	n := writeUTF16(buf[:len(buf)-2], s)
	binary.LittleEndian.PutUint16(buf[n:], 0xFFFF)
}

// readUTF16 decodes up to maxChars little-endian UTF-16 code units,
// stopping at a null or 0xFFFF terminator.
func readUTF16(buf []byte, maxChars int) string {
	units := make([]uint16, 0, maxChars)
	for i := range maxChars {
		u := binary.LittleEndian.Uint16(buf[i*2:])
		if u == 0 || u == 0xFFFF {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// writeUTF16 encodes s as little-endian UTF-16 into buf, truncating to
// fit, and returns the number of bytes written.
func writeUTF16(buf []byte, s string) int {
	units := utf16.Encode([]rune(s))
	if len(units)*2 > len(buf) {
		units = units[:len(buf)/2]
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	return len(units) * 2
}
