package scene

import (
	"math"

	"LyricStage/model"
)

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func lerpVec(a, b model.Vec3, t float64) model.Vec3 {
	return model.Vec3{
		X: lerp(a.X, b.X, t),
		Y: lerp(a.Y, b.Y, t),
		Z: lerp(a.Z, b.Z, t),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// easeOutCubic 1 - (1-t)^3
func easeOutCubic(t float64) float64 {
	t = clamp(t, 0, 1)
	return 1 - math.Pow(1-t, 3)
}

// normalizeAngle 归一化到 [0, 2π)
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
