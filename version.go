package pyext

import (
	"regexp"
	"strconv"
	"strings"
)

var versionComponent = regexp.MustCompile(`\d+|[a-z]+|[^0-9a-z.]+`)

// VersionPart is one component of a loose version: either a number or a
// run of other text.
type VersionPart struct {
	Num     int
	Str     string
	Numeric bool
}

// Version is a loosely parsed dotted version such as "2.10.0" or "3.1rc2".
type Version struct {
	Raw   string
	Parts []VersionPart
}

// ParseVersion splits s into runs of digits, runs of lowercase letters and
// runs of anything else except dots. Dots only delimit components, so
// "3.1-RC2" yields 3, 1, "-RC" and 2. Digit runs compare as numbers.
func ParseVersion(s string) Version {
	v := Version{Raw: s}
	for _, tok := range versionComponent.FindAllString(strings.TrimSpace(s), -1) {
		if n, err := strconv.Atoi(tok); err == nil {
			v.Parts = append(v.Parts, VersionPart{Num: n, Numeric: true})
			continue
		}
		v.Parts = append(v.Parts, VersionPart{Str: tok})
	}
	return v
}

func (v Version) String() string {
	return v.Raw
}

// Compare returns -1, 0 or +1 as v sorts before, equal to or after o.
//
// Components are compared pairwise. Numbers compare numerically, text
// byte-wise, and a number sorts before text. When one version is a
// prefix of the other the shorter one sorts first, so "2.3" < "2.3.0".
func (v Version) Compare(o Version) int {
	for i := 0; i < len(v.Parts) && i < len(o.Parts); i++ {
		if c := v.Parts[i].compare(o.Parts[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v.Parts) < len(o.Parts):
		return -1
	case len(v.Parts) > len(o.Parts):
		return 1
	}
	return 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (p VersionPart) compare(o VersionPart) int {
	switch {
	case p.Numeric && o.Numeric:
		switch {
		case p.Num < o.Num:
			return -1
		case p.Num > o.Num:
			return 1
		}
		return 0
	case p.Numeric:
		return -1
	case o.Numeric:
		return 1
	}
	return strings.Compare(p.Str, o.Str)
}

// CompareVersions parses and compares two dotted version strings.
func CompareVersions(a, b string) int {
	return ParseVersion(a).Compare(ParseVersion(b))
}
