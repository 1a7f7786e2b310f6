package vulkan

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/andewx/dieselshare/internal/vkext"
	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts a failed vk.Result into an error carrying the caller's location.
func NewError(ret vk.Result) error {
	if ret != vk.Success {
		pc, _, _, ok := runtime.Caller(1)
		if !ok {
			return fmt.Errorf("vulkan error: %s (%d)",
				vk.Error(ret).Error(), ret)
		}
		frame := newStackFrame(pc)
		return fmt.Errorf("vulkan error: %s (%d) on %s",
			vk.Error(ret).Error(), ret, frame)
	}
	return nil
}

// extError maps an error from the extension table onto the same format.
func extError(err error) error {
	var ve *vkext.Error
	if errors.As(err, &ve) {
		return fmt.Errorf("vulkan error: %s: %s (%d)", ve.Op, vk.Error(vk.Result(ve.Result)).Error(), ve.Result)
	}
	return err
}

type stackFrame struct {
	fn   string
	file string
	line int
}

func newStackFrame(pc uintptr) stackFrame {
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	return stackFrame{fn: f.Function, file: f.File, line: f.Line}
}

func (s stackFrame) String() string {
	return fmt.Sprintf("%s (%s:%d)", s.fn, s.file, s.line)
}

func orPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}
