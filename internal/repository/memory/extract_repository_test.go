package memory

import (
	"testing"
	"time"

	"parcel-constraints-be/pkg/rdppf"

	"github.com/stretchr/testify/assert"
)

func TestExtractRepository(t *testing.T) {
	repo := NewExtractRepository(time.Minute)
	ext := &rdppf.Extract{}
	ext.Extract.RealEstate.Number = "1234"

	repo.Save("Sion", "1234", ext)

	got, ok := repo.Get("  sion ", "1234")
	assert.True(t, ok)
	assert.Same(t, ext, got)

	_, ok = repo.Get("Sion", "9999")
	assert.False(t, ok)
	assert.Equal(t, 1, repo.Count())

	repo.Delete("SION", "1234")
	_, ok = repo.Get("Sion", "1234")
	assert.False(t, ok)

	repo.Save("Sion", "1", ext)
	repo.Flush()
	assert.Equal(t, 0, repo.Count())
}
