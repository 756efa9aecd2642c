package memstore

import (
	"strconv"
	"strings"

	"github.com/mnemohq/mnemo/pkg/kv"
	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// Key layout:
//
//	mem:row:{tier}:{created_at_us}:{id}  → msgpack-encoded Memory
//	mem:id:{id}                         → "{tier}:{created_at_us}" (reverse index)
//	tomb:row:{id}                       → msgpack-encoded Tombstone
//
// Rows are partitioned by tier so list_by_tier and count_by_tier are
// prefix scans. The id reverse index gives O(1) get/delete/update_*
// without a full-table scan; when update_tier moves a row it is deleted
// under the old key and re-inserted under the new one, with the reverse
// index rewritten to match.

func rowPrefix() kv.Key { return kv.Key{"mem", "row"} }

func tierPrefix(tier mnemo.Tier) kv.Key {
	return kv.Key{"mem", "row", string(tier)}
}

func rowKey(tier mnemo.Tier, createdAtUs int64, id string) kv.Key {
	return kv.Key{"mem", "row", string(tier), strconv.FormatInt(createdAtUs, 10), id}
}

func idKey(id string) kv.Key {
	return kv.Key{"mem", "id", id}
}

func idValue(tier mnemo.Tier, createdAtUs int64) []byte {
	return []byte(string(tier) + ":" + strconv.FormatInt(createdAtUs, 10))
}

func parseIDValue(data []byte) (mnemo.Tier, int64, bool) {
	s := string(data)
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", 0, false
	}
	ts, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return mnemo.Tier(s[:idx]), ts, true
}

func tombKey(id string) kv.Key {
	return kv.Key{"tomb", "row", id}
}

func tombPrefix() kv.Key {
	return kv.Key{"tomb", "row"}
}
