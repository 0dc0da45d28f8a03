package schema

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// MakeID derives a deterministic vertex id from an identity tuple. The
// tuple is joined with ":" the same way the teacher project composes its
// qualified-name dedup keys, then hashed with xxh3 (the hashing library
// the teacher already depends on for file-change detection) so that two
// independent extractions of the same entity always produce the same id.
func MakeID(parts ...string) ID {
	h := xxh3.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.WriteString(":")
		}
		_, _ = h.WriteString(p)
	}
	return ID(strconv.FormatUint(h.Sum64(), 16))
}

func NewDirectoryID(absPath string) ID { return MakeID(absPath) }
func NewFileID(absPath string) ID      { return MakeID(absPath) }
func NewNamespaceID(fqn string) ID     { return MakeID("ns:" + fqn) }

func NewSymbolID(language LanguageTag, fqn string) ID {
	return MakeID("sym:" + string(language) + ":" + fqn)
}

func NewMemberID(language LanguageTag, classFQN, memberName string) ID {
	return MakeID("sym:" + string(language) + ":" + classFQN + "::" + memberName)
}

func NewModuleID(absPath string) ID { return MakeID("mod:" + absPath) }

func NewEndpointID(method, normalizedPath string) ID {
	return MakeID("ep:" + strings.ToUpper(method) + " " + normalizedPath)
}

func NewImportSiteID(importingFile, moduleSpec string) ID {
	return MakeID("imp:" + importingFile + ":" + moduleSpec)
}

func NewAPICallSiteID(callerFile string, line int, method, url string) ID {
	return MakeID("call:" + callerFile + ":" + strconv.Itoa(line) + ":" + method + " " + url)
}

// NewUnresolvedID computes the SAME id a future concrete vertex for this
// kind/fqn would get, so a placeholder and its eventual definition always
// land on one row (spec.md §3.3, §3.5 invariant 6). kind only selects which
// id scheme to reuse — it is never hashed itself, matching the fact that
// NewMemberID and NewSymbolID already share one formula once the member
// name is folded into the qualified name as "Class::member".
func NewUnresolvedID(language LanguageTag, kind, fqnOrName string) ID {
	switch kind {
	case "Module":
		return NewModuleID(fqnOrName)
	case "Endpoint":
		return MakeID("ep:" + fqnOrName)
	default:
		return NewSymbolID(language, fqnOrName)
	}
}

// NormalizeEndpointPath collapses duplicate slashes and strips a trailing
// slash (except for the root path "/"), while preserving ":name"/"{name}"
// parameter placeholders verbatim, per spec.md §4.1 / §6.3.
func NormalizeEndpointPath(path string) string {
	if path == "" {
		return "/"
	}
	var b strings.Builder
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = strings.TrimRight(out, "/")
		if out == "" {
			out = "/"
		}
	}
	return out
}
