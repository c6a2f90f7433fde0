package db

import (
	"strconv"
	"strings"
)

const (
	nsDocument  = "doc"
	nsList      = "list"
	nsListNode  = "list-node"
	nsTree      = "tree"
	nsTreeEntry = "tree-entry"
	nsMetadata  = "meta"
)

// key builds a store key from a namespace and its parts. Each part is length
// prefixed so that no choice of part values can make two keys collide
// ("a,b"+"c" vs "a"+"b,c").
func key(ns string, parts ...string) []byte {
	var b strings.Builder
	b.WriteString(ns)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return []byte(b.String())
}
