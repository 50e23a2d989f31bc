package store

// Internal helpers exposed to store_test.

func SplitKey(key string) ([]string, error) {
	return splitKey(key)
}

func EscapeQuery(s string) string {
	return escapeQuery(s)
}

func SplitDir(dir string) ([]string, error) {
	return splitDir(dir)
}
