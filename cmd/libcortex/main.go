// Command libcortex builds the engine as a C shared library:
//
//	go build -buildmode=c-shared -o libcortex.so ./cmd/libcortex
package main

/*
#include <stdlib.h>

// topic: event name, payload: JSON
typedef void (*EventCallback)(char* topic, char* payload);

static void invokeCallback(EventCallback cb, char* topic, char* payload) {
    if (cb) {
        cb(topic, payload);
    }
}
*/
import "C"
import (
	"context"
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/cli"
	"github.com/dyike/CortexAgents/pkg/app"
	"github.com/dyike/CortexAgents/pkg/bridge"
)

var (
	cbMu           sync.RWMutex
	globalCallback C.EventCallback

	rtMu   sync.RWMutex
	active *app.Runtime
)

func init() {
	bridge.SetNotifyImpl(func(topic, payload string) {
		cbMu.RLock()
		cb := globalCallback
		cbMu.RUnlock()
		if cb == nil {
			return
		}
		cTopic := C.CString(topic)
		cPayload := C.CString(payload)
		defer C.free(unsafe.Pointer(cTopic))
		defer C.free(unsafe.Pointer(cPayload))

		C.invokeCallback(cb, cTopic, cPayload)
	})
}

// InitSDK loads or creates <workDir>/config.json, seeding it from
// configJson when the file does not exist yet.
//
//export InitSDK
func InitSDK(workDir *C.char, configJson *C.char) *C.char {
	dir := C.GoString(workDir)
	raw := C.GoString(configJson)

	opts := []config.ManagerOption{config.WithConfigDir(dir), config.WithEnvOverrides()}
	if raw != "" {
		seed := config.DefaultConfigWithRoot(dir)
		if err := json.Unmarshal([]byte(raw), seed); err != nil {
			return C.CString("Error: " + err.Error())
		}
		opts = append(opts, config.WithInitialConfig(seed))
	}
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return C.CString("Error: " + err.Error())
	}

	rtMu.Lock()
	defer rtMu.Unlock()
	if active != nil {
		_ = active.Close()
	}
	active, err = app.NewRuntime(context.Background(), mgr,
		app.WithNotifier(bridge.Notify),
		app.WithObserver(bridge.Observer{}),
	)
	if err != nil {
		return C.CString("Error: " + err.Error())
	}
	return C.CString("Success")
}

//export RegisterCallback
func RegisterCallback(cb C.EventCallback) {
	cbMu.Lock()
	globalCallback = cb
	cbMu.Unlock()
}

//export UpdateConfig
func UpdateConfig(jsonStr *C.char) *C.char {
	rt := current()
	if rt == nil {
		return C.CString("Error: sdk not initialized")
	}
	if err := rt.UpdateConfigJSON(C.GoString(jsonStr)); err != nil {
		return C.CString("Error: " + err.Error())
	}
	return C.CString("Success")
}

//export Call
func Call(method *C.char, params *C.char) *C.char {
	rt := current()
	if rt == nil {
		return C.CString(`{"code":503,"msg":"sdk not initialized"}`)
	}
	resp := bridge.Dispatch(context.Background(), rt.Service(), cli.Version, C.GoString(method), C.GoString(params))
	return C.CString(resp)
}

//export Shutdown
func Shutdown() {
	rtMu.Lock()
	defer rtMu.Unlock()
	if active != nil {
		_ = active.Close()
		active = nil
	}
}

//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func current() *app.Runtime {
	rtMu.RLock()
	defer rtMu.RUnlock()
	return active
}

func main() {}
