package render

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/linmath"
)

// Camera is a fixed perspective camera. The far plane limits how far away
// instances can drift before they are clipped.
type Camera struct {
	Eye    linmath.Vec3
	Target linmath.Vec3
	Up     linmath.Vec3

	FovDegrees float32
	Near       float32
	Far        float32
}

// DefaultCamera looks down the negative Z axis at the origin from 7 units away.
func DefaultCamera() Camera {
	return Camera{
		Eye:        linmath.Vec3{0, 0, 7},
		Target:     linmath.Vec3{0, 0, 0},
		Up:         linmath.Vec3{0, 1, 0},
		FovDegrees: 45,
		Near:       0.1,
		Far:        10,
	}
}

// View returns the view matrix.
func (c Camera) View() linmath.Mat4x4 {
	var view linmath.Mat4x4
	view.LookAt(&c.Eye, &c.Target, &c.Up)
	return view
}

// Projection returns the perspective projection for aspect. The Y axis is
// flipped because Vulkan clip space points Y down.
func (c Camera) Projection(aspect float32) linmath.Mat4x4 {
	var proj linmath.Mat4x4
	proj.Perspective(mgl32.DegToRad(c.FovDegrees), aspect, c.Near, c.Far)
	proj[1][1] *= -1
	return proj
}
