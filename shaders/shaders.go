// Package shaders embeds the WGSL kernels for the GPU splat path.
package shaders

import (
	_ "embed"
)

//go:embed splat_project.wgsl
var SplatProjectWGSL string

//go:embed splat_draw.wgsl
var SplatDrawWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

//go:embed text.wgsl
var TextWGSL string
