// shaders.go

// Package shaders embeds the compiled SPIR-V for the textured quad.
// Regenerate the binaries with go generate after editing the GLSL.
package shaders

import _ "embed"

//go:generate glslc quad.vert -o quad.vert.spv
//go:generate glslc quad.frag -o quad.frag.spv

//go:embed quad.vert.spv
var QuadVert []byte

//go:embed quad.frag.spv
var QuadFrag []byte
