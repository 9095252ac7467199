package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimitFor(t *testing.T) {
	const mb = int64(1) << 20

	tests := []struct {
		totalMB int
		want    int64
	}{
		{0, 512 * mb},
		{256, 256 * mb},
		{600, 512 * mb},
		{4096, 3072 * mb},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, memoryLimitFor(tt.totalMB), "total %dMB", tt.totalMB)
	}

	assert.Positive(t, RecommendedMemoryLimit())
}
