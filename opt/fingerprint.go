package opt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint derives the cache key for one invocation: capability name,
// canonicalized arguments, and the cache-relevant subset of the request
// context. Argument canonicalization relies on encoding/json sorting map
// keys, so two argument maps with the same entries in different insertion
// order produce the same fingerprint.
//
// contextKeys names the context fields that participate in the key. An
// empty list means every context field is relevant. Keys are folded in
// sorted order; absent fields contribute nothing, so a context that merely
// omits an irrelevant field keys identically to one that carries it.
func Fingerprint(capability string, args map[string]any, rctx RequestContext, contextKeys []string) string {
	h := sha256.New()
	h.Write([]byte(capability))
	h.Write([]byte{0})

	if len(args) > 0 {
		b, err := json.Marshal(args)
		if err != nil {
			// Non-marshalable argument values are rare; fall back to the
			// fmt representation rather than failing the lookup.
			b = []byte(fmt.Sprint(args))
		}
		h.Write(b)
	}
	h.Write([]byte{0})

	for _, k := range relevantContextKeys(rctx, contextKeys) {
		v, ok := rctx[k]
		if !ok {
			continue
		}
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(v))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// relevantContextKeys returns the sorted key set that participates in the
// fingerprint: the declared keys, or all context keys when none declared.
func relevantContextKeys(rctx RequestContext, contextKeys []string) []string {
	var keys []string
	if len(contextKeys) > 0 {
		keys = append(keys, contextKeys...)
	} else {
		for k := range rctx {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
