package infra

import (
	"fmt"
	"io"
	"path"
	"runtime"
	"strconv"
	"strings"
)

// References:
// https://github.com/pkg/errors/blob/master/stack.go

type Frame uintptr

func (frame Frame) pc() uintptr {
	return uintptr(frame) - 1
}

func (frame Frame) location() (name, file string, line int) {
	fn := runtime.FuncForPC(frame.pc())
	if fn == nil {
		return "unknownFunc", "unknownFile", 0
	}
	file, line = fn.FileLine(frame.pc())
	return fn.Name(), file, line
}

// Format characters:
// %s - source file
// %d - source line
// %n - function name
// %v - verbose, equivalent to %s:%d
// %+s - full path, the root path is relative to the compile time GOPATH
// separated by \n\t (<function-name>\n\t<path>)
// %+v - equivalent to %+s:%d
func (frame Frame) Format(s fmt.State, verb rune) {
	name, file, line := frame.location()
	switch verb {
	case 's':
		if s.Flag('+') {
			_, _ = io.WriteString(s, name)
			_, _ = io.WriteString(s, "\n\t")
			_, _ = io.WriteString(s, file)
		} else {
			_, _ = io.WriteString(s, path.Base(file))
		}
	case 'd':
		_, _ = io.WriteString(s, strconv.Itoa(line))
	case 'n':
		_, _ = io.WriteString(s, funcName(name))
	case 'v':
		frame.Format(s, 's')
		_, _ = io.WriteString(s, ":")
		frame.Format(s, 'd')
	}
}

// String renders as <function> <file>:<line>, the layout consumed by
// structured log fields.
func (frame Frame) String() string {
	name, file, line := frame.location()
	if name == "unknownFunc" {
		return "unknownFrame"
	}
	builder := strings.Builder{}
	_, _ = builder.WriteString(name)
	_, _ = builder.WriteString(" ")
	_, _ = builder.WriteString(file)
	_, _ = builder.WriteString(":")
	_, _ = builder.WriteString(strconv.Itoa(line))
	return builder.String()
}

// If json.Marshaler interface isn't implemented, the MarshalText method is used.
func (frame Frame) MarshalText() ([]byte, error) {
	return []byte(frame.String()), nil
}

// Callers captures up to depth stack frames, not counting Callers
// itself and skip additional calls. Used to record allocation sites.
func Callers(skip, depth int) []Frame {
	if depth <= 0 {
		return nil
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip+2, pcs)
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, Frame(pcs[i]))
	}
	return frames
}

// FrameStrings renders frames for report fields.
func FrameStrings(frames []Frame) []string {
	strs := make([]string, 0, len(frames))
	for _, frame := range frames {
		strs = append(strs, frame.String())
	}
	return strs
}

func funcName(name string) string {
	i := strings.LastIndex(name, "/")
	name = name[i+1:]
	i = strings.Index(name, ".")
	return name[i+1:]
}
