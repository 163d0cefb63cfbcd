package btrcall

import "github.com/mkfoss/btrcall/pkg/goengine"

// EngineBinding adapts the in-process reference engine to Binding. It is the
// default binding of the pure Go backend and is available in every build,
// which lets the native backend be compared against it.
func EngineBinding(e *goengine.Engine) Binding {
	return engineBinding{engine: e}
}

type engineBinding struct {
	engine *goengine.Engine
}

func (b engineBinding) Call(f *Frame) ResponseCode {
	return ResponseCode(b.engine.Call(uint16(f.Operation), f.PositionBlock, f.Data, f.DataLength,
		f.Key, f.KeyLength, int8(f.KeyNumber)))
}
