package redis

// DefaultKeyPrefix namespaces every coursebots key inside a shared Redis DB.
const DefaultKeyPrefix = "coursebots:"

// Key returns the Redis key for a raw store key.
func Key(prefix string, key []byte) string {
	return prefix + string(key)
}
