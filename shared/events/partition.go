package events

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Partition maps a key onto one of n partitions. All events for one
// transaction land on the same stream, which is what gives per-key ordering.
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

func StreamName(topic string, partition int) string {
	return fmt.Sprintf("%s:%d", topic, partition)
}

// ParsePartitions reads a comma separated partition list such as "0,2,3".
// An empty list selects every partition.
func ParsePartitions(list string, n int) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var owned []int
	for _, part := range strings.Split(list, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid partition %q: %w", part, err)
		}
		if p < 0 || p >= n {
			return nil, fmt.Errorf("partition %d out of range [0,%d)", p, n)
		}
		owned = append(owned, p)
	}
	return owned, nil
}
