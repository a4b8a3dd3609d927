package ranking

import (
	"testing"

	"rescue-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiView_BackfillsFixedCameras(t *testing.T) {
	tiles := MultiView(nil, MultiViewOptions{FixedCCTVIDs: []int64{1, 2, 3}})

	require.Len(t, tiles, 3)
	for i, tile := range tiles {
		cctvID, ok := tile.CctvID()
		require.True(t, ok)
		assert.Equal(t, int64(i+1), cctvID)
		assert.Zero(t, tile.RiskScore)
		assert.True(t, tile.Placeholder)
		assert.Equal(t, models.DetectionCCTV, tile.DetectionMethod)
	}
}

func TestMultiView_LiveDetectionReplacesPlaceholder(t *testing.T) {
	ranked := Rank([]models.SurvivorRecord{
		cctvRecord("s5", 14, 2),
		cctvRecord("s6", 20, 9),
		wifiRecord("w1", "7"),
	})

	tiles := MultiView(ranked, MultiViewOptions{FixedCCTVIDs: []int64{1, 2, 3}})

	require.Equal(t, []string{"placeholder-cctv-1", "s5", "placeholder-cctv-3", "w1", "s6"}, ids(tiles))
	assert.False(t, tiles[1].Placeholder)
}

func TestMultiView_CapsTotalTiles(t *testing.T) {
	var in []models.SurvivorRecord
	for i := 0; i < 10; i++ {
		in = append(in, cctvRecord(string(rune('a'+i)), float64(i), int64(100+i)))
	}
	ranked := Rank(in)

	tiles := MultiView(ranked, MultiViewOptions{FixedCCTVIDs: []int64{1, 2}})

	require.Len(t, tiles, DefaultMaxTiles)
	assert.Equal(t, "placeholder-cctv-1", tiles[0].ID)
	assert.Equal(t, "placeholder-cctv-2", tiles[1].ID)
	assert.Equal(t, "j", tiles[2].ID) // 最高分
}

func TestMultiView_DuplicateFixedIDsIgnored(t *testing.T) {
	tiles := MultiView(nil, MultiViewOptions{FixedCCTVIDs: []int64{4, 4, 5}, MaxTiles: 6})

	require.Equal(t, []string{"placeholder-cctv-4", "placeholder-cctv-5"}, ids(tiles))
}
