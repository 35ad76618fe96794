package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// NewID returns an identifier for a stored entity, prefixed with the
// entity kind ("task_...", "proj_...") so ids stay readable in stored
// JSON. The leading base-36 timestamp keeps ids roughly creation-ordered
// when they sort lexically; the random tail makes collisions implausible
// within one millisecond.
func NewID(kind string) string {
	var tail [6]byte
	_, _ = rand.Read(tail[:])
	id := strconv.FormatInt(time.Now().UnixMilli(), 36) + hex.EncodeToString(tail[:])
	if kind == "" {
		return id
	}
	return kind + "_" + id
}
