package rho

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind partitions the RSpace namespace by storage and concurrency class.
// Every channel name embeds its kind: "@{kind}:{id}".
type Kind uint8

const (
	KindMemorySequential Kind = iota
	KindMemoryConcurrent
	KindStoreSequential
	KindStoreConcurrent
)

func (k Kind) String() string {
	switch k {
	case KindMemorySequential:
		return "mem-seq"
	case KindMemoryConcurrent:
		return "mem-conc"
	case KindStoreSequential:
		return "store-seq"
	case KindStoreConcurrent:
		return "store-conc"
	default:
		return "kind-" + strconv.Itoa(int(k))
	}
}

// ErrMalformedName is returned for names that do not follow "@{kind}:{id}".
var ErrMalformedName = errors.New("malformed channel name")

// NameRef is a parsed channel name.
type NameRef struct {
	Kind Kind
	ID   string
}

// FormatName builds the channel name for kind and id.
func FormatName(kind Kind, id string) string {
	return "@" + strconv.Itoa(int(kind)) + ":" + id
}

// String returns the canonical name.
func (r NameRef) String() string {
	return FormatName(r.Kind, r.ID)
}

// ParseName splits a channel name into its kind tag and identifier.
func ParseName(name string) (NameRef, error) {
	rest, ok := strings.CutPrefix(name, "@")
	if !ok {
		return NameRef{}, fmt.Errorf("%w: %q lacks '@' prefix", ErrMalformedName, name)
	}
	tag, id, ok := strings.Cut(rest, ":")
	if !ok || tag == "" {
		return NameRef{}, fmt.Errorf("%w: %q lacks kind tag", ErrMalformedName, name)
	}
	k, err := strconv.ParseUint(tag, 10, 8)
	if err != nil {
		return NameRef{}, fmt.Errorf("%w: %q has bad kind tag %q", ErrMalformedName, name, tag)
	}
	return NameRef{Kind: Kind(k), ID: id}, nil
}
