// Package shaders holds the GLSL sources of the renderer and loads their
// compiled SPIR-V from disk.
package shaders

import (
	"os"

	"github.com/cockroachdb/errors"
)

//go:generate ./compile.sh

// Default paths of the compiled shaders, relative to the working directory.
const (
	DefaultVertexPath   = "shaders/vert.spv"
	DefaultFragmentPath = "shaders/frag.spv"
)

// spirvMagic is the first word of every SPIR-V module, little endian.
var spirvMagic = []byte{0x03, 0x02, 0x23, 0x07}

// Load reads a compiled SPIR-V module. Run `go generate ./shaders` to compile
// the sources next to this file.
func Load(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read shader bytecode")
	}

	if err := Check(code); err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}

	return code, nil
}

// Check verifies that code looks like a SPIR-V module.
func Check(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return errors.Newf("%d bytes is not a SPIR-V module", len(code))
	}
	for i, b := range spirvMagic {
		if code[i] != b {
			return errors.New("missing SPIR-V magic number")
		}
	}
	return nil
}
