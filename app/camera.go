package app

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/splat3d/splatrt/core"
)

// OrbitCamera circles a target point, the natural control scheme for
// inspecting a splat capture. Y-up.
type OrbitCamera struct {
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32

	Sensitivity float32
	ZoomSpeed   float32
	FovDeg      float32
	Near        float32
	Far         float32
}

func NewOrbitCamera(target mgl32.Vec3, distance float32) *OrbitCamera {
	return &OrbitCamera{
		Target:      target,
		Distance:    distance,
		Pitch:       0.3,
		Sensitivity: 0.005,
		ZoomSpeed:   0.1,
		FovDeg:      60,
		Near:        0.1,
		Far:         1000,
	}
}

const maxPitch = float32(math.Pi/2) - 0.01

// Drag rotates by a mouse delta in pixels.
func (c *OrbitCamera) Drag(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch += dy * c.Sensitivity
	if c.Pitch > maxPitch {
		c.Pitch = maxPitch
	}
	if c.Pitch < -maxPitch {
		c.Pitch = -maxPitch
	}
}

// Zoom scales the orbit distance by scroll ticks.
func (c *OrbitCamera) Zoom(ticks float32) {
	c.Distance *= float32(math.Exp(float64(-ticks * c.ZoomSpeed)))
	if c.Distance < c.Near*2 {
		c.Distance = c.Near * 2
	}
}

// Pan shifts the target in the camera's screen plane.
func (c *OrbitCamera) Pan(dx, dy float32) {
	eye := c.Eye()
	forward := c.Target.Sub(eye).Normalize()
	right := forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	up := right.Cross(forward)
	scale := c.Distance * 0.002
	c.Target = c.Target.Add(right.Mul(-dx * scale)).Add(up.Mul(dy * scale))
}

func (c *OrbitCamera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return c.Target.Add(mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}.Mul(c.Distance))
}

// View builds the frame's camera state for a viewport size.
func (c *OrbitCamera) View(width, height uint32) core.View {
	return core.Perspective(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0}, c.FovDeg, width, height, c.Near, c.Far)
}
