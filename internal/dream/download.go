package dream

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"

	"github.com/dreamlink/dreamlinkd/internal/model"
)

// Payload sizes for base and sequel versions.
const (
	PayloadSize         = 284
	PayloadSizeVersion2 = 672
)

// DLCIndexes carries the 1-based list positions of the player's selected
// add-on content, zero meaning none.
type DLCIndexes struct {
	Musical byte
	CGear   byte
	Dex     byte
}

// EncodePayload builds the wake-up content blob the client copies into its
// save file. The visitor section is only present for sequel versions.
func EncodePayload(p *model.Player, dlc DLCIndexes) []byte {
	var b bytes.Buffer

	// Wake-up counter slot; any value works as long as it differs from the
	// one already in the save file.
	writeUint32(&b, rand.Uint32()&0x7FFFFFFF)

	for _, e := range p.Encounters {
		writeUint16(&b, uint16(e.Species))
		writeUint16(&b, uint16(e.Move))
		b.WriteByte(byte(e.Form))
		b.WriteByte(byte(e.Gender))
		b.WriteByte(byte(e.Animation))
		b.WriteByte(0)
	}
	pad(&b, 0, (model.MaxEncounters-len(p.Encounters))*8)

	writeUint16(&b, uint16(p.LevelsGained))
	b.WriteByte(0)
	b.WriteByte(dlc.Musical)
	b.WriteByte(dlc.CGear)
	b.WriteByte(dlc.Dex)
	if len(p.Decor) > 0 {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
	b.WriteByte(0)

	for _, item := range p.Items {
		writeUint16(&b, uint16(item.ID))
	}
	pad(&b, 0, (model.MaxItems-len(p.Items))*2)
	for _, item := range p.Items {
		b.WriteByte(byte(item.Quantity))
	}
	pad(&b, 0, model.MaxItems-len(p.Items))

	for _, decor := range p.Decor {
		writeUint16(&b, uint16(decor.ID))
		var name [24]byte
		n := writeUTF16(name[:], decor.Name)
		for i := n; i < len(name); i++ {
			name[i] = 0xFF
		}
		b.Write(name[:])
	}
	for range model.MaxDecor - len(p.Decor) {
		writeUint16(&b, model.DecorEmptySlot)
		pad(&b, 0, 24)
	}

	writeUint16(&b, 0)

	if p.Version.IsVersion2() {
		for _, v := range p.Visitors {
			var name [16]byte
			n := writeUTF16(name[:14], v.Name)
			for i := n; i < len(name); i++ {
				name[i] = 0xFF
			}
			b.Write(name[:])

			// The visitor type packs the trainer class with a phrase set
			// index; the shop byte's base index shifts by 2 per type.
			visitorType := v.Type.ClientID() + v.Personality*8
			b.WriteByte(byte(visitorType))
			b.WriteByte(byte(int(v.ShopType) + (7 - visitorType*2%7)))
			writeUint16(&b, 0)
			writeUint32(&b, 1)
			b.WriteByte(byte(v.CountryCode))
			b.WriteByte(byte(v.StateProvinceCode))
			b.WriteByte(byte(v.Version.LanguageCode))
			b.WriteByte(byte(v.Version.RomCode))
			if v.Type.Female() {
				b.WriteByte(1)
			} else {
				b.WriteByte(0)
			}
			b.WriteByte(0)
			writeUint16(&b, uint16(v.DreamerSpecies))
		}
		pad(&b, 0, (model.MaxVisitors-len(p.Visitors))*32)
		writeUint32(&b, 0)
	}

	return b.Bytes()
}

func writeUint16(b *bytes.Buffer, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	b.Write(buf[:])
}

func writeUint32(b *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func pad(b *bytes.Buffer, fill byte, n int) {
	for range n {
		b.WriteByte(fill)
	}
}
