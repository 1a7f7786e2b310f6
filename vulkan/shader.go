package vulkan

import (
	"fmt"
	"os"

	vk "github.com/vulkan-go/vulkan"
)

// LoadShaderModule reads a SPIR-V binary from path.
func LoadShaderModule(device vk.Device, path string) (vk.ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return vk.NullShaderModule, err
	}
	return NewShaderModule(device, code)
}

func NewShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return vk.NullShaderModule, fmt.Errorf("vulkan: SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if isError(ret) {
		return vk.NullShaderModule, NewError(ret)
	}
	return module, nil
}
