package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionIsStable(t *testing.T) {
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("txn-%d", i)
		p := Partition(key, 8)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 8)
		assert.Equal(t, p, Partition(key, 8), "key %s moved partitions", key)
	}
}

func TestPartitionSingle(t *testing.T) {
	assert.Equal(t, 0, Partition("anything", 1))
	assert.Equal(t, 0, Partition("anything", 0))
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "transaction-events:3", StreamName(TransactionEventsTopic, 3))
}

func TestParsePartitions(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		n       int
		want    []int
		wantErr bool
	}{
		{name: "empty selects all", list: "", n: 3, want: []int{0, 1, 2}},
		{name: "explicit list", list: "0, 2", n: 4, want: []int{0, 2}},
		{name: "out of range", list: "4", n: 4, wantErr: true},
		{name: "negative", list: "-1", n: 4, wantErr: true},
		{name: "not a number", list: "a", n: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePartitions(tt.list, tt.n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
