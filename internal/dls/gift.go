package dls

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
)

// Mystery gift payload sizes for the two generations the service feeds.
const (
	GiftSize4 = 936
	GiftSize5 = 720
)

// DefaultGiftTitle is used when a generation-4 gift lacks wonder card data.
const DefaultGiftTitle = "Here's your Mystery Gift.\nEnjoy!"

// giftChartable is the generation-4 text encoding, indexed from 0x121.
// Unmappable characters fall back to a question mark.
var giftChartable = []rune("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"ÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÐÑÒÓÔÕÖ×ØÙÚÛÜÝÞß" +
	"àáâãäåæçèéêëìíîïðñòóôõö÷øùúûüýþÿŒœŞşªº" +
	"ááá$¡¿!?,.…·/‘'“”„«»()♂♀+-*#=&~:;" +
	"♠♣♥♦★◉○□△◇@♪%ááááááááááá ")

// encodeGiftText renders s in the generation-4 character set, two bytes per
// character, with newlines mapped to the line-break control code.
func encodeGiftText(s string) []byte {
	runes := []rune(s)
	out := make([]byte, len(runes)*2)
	for i, r := range runes {
		encoded := 0xE000
		if r != '\n' {
			encoded = indexOfRune(giftChartable, r) + 0x121
			if encoded == 0x120 {
				encoded = 0x1DE
			}
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(encoded))
	}
	return out
}

func indexOfRune(table []rune, r rune) int {
	for i, c := range table {
		if c == r {
			return i
		}
	}
	return -1
}

// UniversalGift4 pads a generation-4 mystery gift to its full wire size and
// strips the version lock. Bare gift data without wonder card text gets a
// generated title.
func UniversalGift4(data []byte, title string) ([]byte, error) {
	if len(data) > GiftSize4 {
		return nil, fmt.Errorf("dls: gift data is %d bytes, max %d", len(data), GiftSize4)
	}

	result := make([]byte, GiftSize4)
	if len(data) <= 856 {
		copy(result[0x50:], data)
		for i := 0x00; i < 0x48; i++ {
			result[i] = 0xFF
		}
		copy(result[:0x48], encodeGiftText(title))

		// Wonder card index, which prevents duplicate redemptions. The
		// checksum serves fine as a stable id.
		id := crypto.Crc16(result[:0x3A8])
		binary.LittleEndian.PutUint16(result[0x4C:], id)

		// Wonder card present flag.
		if len(data) == 0x358 {
			result[0x4E] = 0x0D
		}
	} else {
		copy(result, data)
	}

	// Clear the game version lock.
	result[0x48] = 0
	result[0x49] = 0
	return result, nil
}

// UniversalGift5 pads a generation-5 mystery gift to its full wire size,
// strips the version and language locks and refreshes the checksum. Bare
// 204-byte gift data gets a placeholder description.
func UniversalGift5(data []byte) ([]byte, error) {
	if len(data) > GiftSize5 {
		return nil, fmt.Errorf("dls: gift data is %d bytes, max %d", len(data), GiftSize5)
	}

	result := make([]byte, GiftSize5)
	copy(result, data)
	result[0xCE] = 0  // version lock
	result[0x2CB] = 0 // language lock

	if len(data) == 204 {
		for i := 0xD0; i < 0x2CA; i++ {
			result[i] = 0xFF
		}
		description := encodeUTF16("No description is available for this gift.")
		copy(result[0xD0:0xD0+min(0x1FA, len(description))], description)
	}

	checksum := crypto.Crc16(result[:0x2CE])
	binary.LittleEndian.PutUint16(result[0x2CE:], checksum)
	return result, nil
}

func encodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}
