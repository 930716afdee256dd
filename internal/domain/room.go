// Package domain contains entities without logic, just meta-data.
package domain

// RoomCode identifies one room. It is the token clients type to join.
type RoomCode string

// RoomCodeLen is the fixed length of generated room codes.
const RoomCodeLen = 6
