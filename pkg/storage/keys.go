package storage

import (
	"fmt"
	"strings"

	"zonesnap/pkg/occupancy"
)

// Key layout, shared by both backends:
//
//	raw/{date}/{hour}-{PROVIDER}.json   raw provider snapshot
//	doc/{date}/{scheme}.json            day document
//
// Hour stamps sort lexicographically in chronological order, so a prefix
// scan over raw/{date}/ yields snapshots in replay order.
const (
	rawPrefix = "raw/"
	docPrefix = "doc/"
)

// RawSnapshotKey builds the storage key for a raw provider snapshot.
func RawSnapshotKey(hour string, provider occupancy.Provider) string {
	return fmt.Sprintf("%s%s/%s-%s.json", rawPrefix, occupancy.DateOf(hour), hour, provider)
}

// RawDatePrefix builds the listing prefix for all raw snapshots of a date.
func RawDatePrefix(date string) string {
	return rawPrefix + date + "/"
}

// DayDocumentKey builds the storage key for a (date, scheme) day document.
func DayDocumentKey(date, scheme string) string {
	return fmt.Sprintf("%s%s/%s.json", docPrefix, date, scheme)
}

// ParseRawSnapshotKey extracts the hour stamp and provider from a raw
// snapshot key.
func ParseRawSnapshotKey(key string) (RawSnapshotRef, error) {
	rest, ok := strings.CutPrefix(key, rawPrefix)
	if !ok {
		return RawSnapshotRef{}, fmt.Errorf("not a raw snapshot key: %q", key)
	}
	_, name, ok := strings.Cut(rest, "/")
	if !ok {
		return RawSnapshotRef{}, fmt.Errorf("malformed raw snapshot key: %q", key)
	}
	name, ok = strings.CutSuffix(name, ".json")
	if !ok {
		return RawSnapshotRef{}, fmt.Errorf("malformed raw snapshot key: %q", key)
	}

	// {hour}-{PROVIDER}: the hour stamp itself contains dashes, so split on
	// the last one.
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return RawSnapshotRef{}, fmt.Errorf("malformed raw snapshot key: %q", key)
	}

	ref := RawSnapshotRef{Hour: name[:i], Provider: occupancy.Provider(name[i+1:])}
	if !occupancy.KnownProvider(ref.Provider) {
		return RawSnapshotRef{}, fmt.Errorf("unknown provider in key %q", key)
	}
	return ref, nil
}
