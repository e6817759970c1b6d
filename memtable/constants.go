package memtable

// SizeThreshold is a suggested approximate-memory-usage point at which
// a caller (the out-of-scope DB façade) should stop writing to this
// memtable and rotate in a fresh one. The memtable itself never
// enforces it — ApproximateMemoryUsage is purely informational.
const SizeThreshold = 4 * 1024 * 1024 // 4 MB
