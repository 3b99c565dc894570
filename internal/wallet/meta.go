package wallet

import "encoding/json"

// mergeMeta layers extra key/value pairs on top of a caller-supplied
// metadata blob, grounded on the teacher's ledger mergeMeta helper. Extras
// win on key collision.
func mergeMeta(base []byte, extra map[string]interface{}) []byte {
	merged := make(map[string]interface{})
	if len(base) > 0 {
		_ = json.Unmarshal(base, &merged)
	}
	for k, v := range extra {
		merged[k] = v
	}
	out, _ := json.Marshal(merged)
	return out
}
