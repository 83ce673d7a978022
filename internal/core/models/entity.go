package models

import (
	"slices"
	"strconv"
)

// EntityID identifies a scene node. The scene tree owns the node; the
// battlefield only holds the id.
type EntityID uint64

// NoEntity is never issued to a live node.
const NoEntity EntityID = 0

func (id EntityID) String() string {
	return "entity#" + strconv.FormatUint(uint64(id), 10)
}

// SortEntityIDs orders ids ascending in place and returns them.
func SortEntityIDs(ids []EntityID) []EntityID {
	slices.Sort(ids)
	return ids
}
