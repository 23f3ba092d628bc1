// Package vers implements the version ordering used for sorting registry
// version lists and picking "latest". It is a deliberate heuristic, not
// strict semver: versions are split on '.' and '-', numeric parts compare
// numerically, string parts lexicographically, and a string part always
// ranks below a numeric part at the same position so that pre-releases sort
// before releases (1.0.0-alpha < 1.0.0) while numbered pre-release tags
// still order among themselves (1.0.0-preview.2 > 1.0.0-preview).
package vers

import (
	"sort"
	"strconv"
	"strings"
)

type part struct {
	num   int
	str   string
	isNum bool
}

func splitParts(v string) []part {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-'
	})
	parts := make([]part, len(fields))
	for i, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			parts[i] = part{num: n, isNum: true}
		} else {
			parts[i] = part{str: f}
		}
	}
	return parts
}

// Compare returns a negative value when a orders before b, zero when they
// are equivalent, and a positive value otherwise. Missing trailing parts
// compare as numeric zero, so "1.0" equals "1.0.0".
func Compare(a, b string) int {
	pa := splitParts(a)
	pb := splitParts(b)
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		x := part{isNum: true}
		y := part{isNum: true}
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x.isNum && y.isNum:
			if x.num != y.num {
				return x.num - y.num
			}
		case !x.isNum && !y.isNum:
			if c := strings.Compare(x.str, y.str); c != 0 {
				return c
			}
		case x.isNum:
			// String side is always lower: pre-release < release.
			return 1
		default:
			return -1
		}
	}
	return 0
}

// SortDescending returns a new slice with versions ordered newest-first.
// The input is not modified.
func SortDescending(versions []string) []string {
	sorted := make([]string, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(sorted[i], sorted[j]) > 0
	})
	return sorted
}

// Latest returns the highest version in the list, or "" for an empty list.
func Latest(versions []string) string {
	latest := ""
	for _, v := range versions {
		if latest == "" || Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}
