package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.2-core/gl"
)

const triangleVertexShader = `#version 150 core
in vec2 Position;
in vec4 Color;
uniform float t;
uniform int w;
uniform int h;
out vec4 vColor;
void main() {
	float s = sin(t);
	float c = cos(t);
	mat2 r = mat2(c, s, -s, c);
	gl_Position.xy = r * Position;
	gl_Position.x *= float(h) / float(w);
	gl_Position.zw = vec2(0.0, 1.0);
	vColor = Color;
}
`

const triangleFragmentShader = `#version 150 core
in vec4 vColor;
out vec4 fColor;
void main() {
	fColor = vColor;
}
`

// Interleaved position (xy) and color (rgba).
var triangleVertices = []float32{
	0.00, 0.57, 1, 0, 0, 1,
	-0.50, -0.29, 0, 1, 0, 1,
	0.50, -0.29, 0, 0, 1, 1,
}

const (
	attribPosition = 0
	attribColor    = 1
)

// linkProgram compiles and links a vertex and fragment shader pair with the
// triangle's attribute locations.
func linkProgram(vertexSource, fragmentSource string) (uint32, error) {
	vertex, err := compileShader(gl.VERTEX_SHADER, vertexSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertex)
	fragment, err := compileShader(gl.FRAGMENT_SHADER, fragmentSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragment)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.BindAttribLocation(program, attribPosition, gl.Str("Position\x00"))
	gl.BindAttribLocation(program, attribColor, gl.Str("Color\x00"))
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var length int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &length)
		log := strings.Repeat("\x00", int(length+1))
		gl.GetProgramInfoLog(program, length, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link program: %s", strings.TrimRight(log, "\x00"))
	}
	return program, nil
}

func compileShader(kind uint32, source string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var length int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &length)
		log := strings.Repeat("\x00", int(length+1))
		gl.GetShaderInfoLog(shader, length, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile shader: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}
