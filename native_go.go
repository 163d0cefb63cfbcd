//go:build !btrcallcgo

package btrcall

import (
	"sync"

	"github.com/mkfoss/btrcall/pkg/goengine"
)

const backend = BackendPureGo

// sharedEngine plays the role of the process-wide engine library.
var sharedEngine = sync.OnceValue(goengine.New)

func defaultBinding(*config) (Binding, func() error, error) {
	return EngineBinding(sharedEngine()), nil, nil
}
