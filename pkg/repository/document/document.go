// Package document pages through document stores by keyset. MongoDB pages
// use a range filter over the cursor fields, the same way the SQL repository
// does. DynamoDB pages resume from the query's last evaluated key, which is
// carried inside the cursor token.
package document

import "sort"

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
