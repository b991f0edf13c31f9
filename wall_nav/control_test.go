package wall_nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWallError(t *testing.T) {
	cfg := DefaultControllerConfig()

	assert.InDelta(t, 50, WallError(snap(300, 1000, 2000, 2000, 2000), cfg), 1e-9)
	assert.InDelta(t, -50, WallError(snap(300, 200, 2000, 2000, 2000), cfg), 1e-9,
		"diagonal replaces the side reading when angled into the wall")

	cfg.FollowSide = SideRight
	assert.InDelta(t, 150, WallError(snap(2000, 2000, 2000, 1000, 400), cfg), 1e-9)
}

func TestComputeWallFollow(t *testing.T) {
	cfg := DefaultControllerConfig()

	delta, raw := ComputeWallFollow(100, 50, cfg)
	assert.InDelta(t, 0.0055*100+0.01*50, delta, 1e-12)
	assert.Equal(t, 100.0, raw)

	delta, _ = ComputeWallFollow(0, 0, cfg)
	assert.Zero(t, delta, "no error and no change yields no correction")
}

func TestSteeringFromDelta(t *testing.T) {
	cfg := DefaultControllerConfig()
	assert.InDelta(t, -0.3, SteeringFromDelta(0.3, cfg), 1e-12, "left follower corrects to the left")
	assert.Equal(t, -1.0, SteeringFromDelta(5, cfg))

	cfg.FollowSide = SideRight
	assert.InDelta(t, 0.3, SteeringFromDelta(0.3, cfg), 1e-12)
	assert.Equal(t, -1.0, SteeringFromDelta(-7, cfg))
}

func TestThrottleTier(t *testing.T) {
	cfg := DefaultControllerConfig()

	tests := []struct {
		err, center float64
		want        float64
	}{
		{10, 1000, cfg.ThrottleFast},
		{-30, 1000, cfg.ThrottleFast},
		{10, 400, cfg.ThrottleNormal},
		{80, 1000, cfg.ThrottleNormal},
		{150, 1000, cfg.ThrottleSlow},
		{-150, 300, cfg.ThrottleSlow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ThrottleTier(tt.err, tt.center, cfg), "err=%v center=%v", tt.err, tt.center)
	}
}
