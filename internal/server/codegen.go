// Package server generates the short codes that identify rooms.
package server

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Room code characters. Uppercase only so codes survive case-insensitive entry.
const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLength is the fixed length of generated room codes. A 36^6 code
// space keeps collisions rare; the registry retries generation when one occurs.
const RoomCodeLength = 6

func generateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	alphabetSize := big.NewInt(int64(len(roomCodeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// there is no meaningful recovery for a chat relay at that point.
			panic("server: reading random source: " + err.Error())
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}

	return string(code)
}

// NormalizeCode uppercases and trims a client-supplied room code so that
// lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidRoomCode reports whether a string has the shape of a generated room
// code: exactly RoomCodeLength uppercase alphanumeric characters.
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(roomCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
