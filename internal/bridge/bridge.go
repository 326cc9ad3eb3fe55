//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/invoker.go -package=mocks . Invoker

// Package bridge talks to the platform health-data bridge.
//
// The bridge exposes a fixed set of statically addressed methods, each
// identified by a name and a type-encoded signature, taking primitive or
// string arguments and answering with a string. Replies are decoded once, at
// this boundary, into a tagged Result (see result.go); nothing above this
// package inspects raw sentinel strings.
//
// Two Invoker implementations are provided:
//   - HTTPBridge: forwards calls to a device-side shim over HTTP
//   - Simulator: an in-memory emulation used for development and tests
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/tejusbharadwaj/healthgw/internal/metric"
)

// ClassName is the bridge class every method is addressed on.
const ClassName = "org/verya/QMLHealthConnect/HealthBridge"

// Method identifies one bridge entry point.
type Method struct {
	Name      string `json:"method"`
	Signature string `json:"signature"`
}

func (m Method) String() string {
	return m.Name + m.Signature
}

// Signatures shared by several methods.
const (
	sigNoArgs   = "()Ljava/lang/String;"
	sigWindowed = "(Ljava/lang/String;Ljava/lang/String;)Ljava/lang/String;"
)

var (
	// MethodInit initialises the platform client with the execution context.
	MethodInit = Method{Name: "init", Signature: "(Landroid/content/Context;)Ljava/lang/String;"}
	// MethodCheckPermissions reports the current grant state.
	MethodCheckPermissions = Method{Name: "checkPermissions", Signature: sigNoArgs}
	// MethodRequestPermissions opens the platform permission dialog.
	MethodRequestPermissions = Method{Name: "requestPermissions", Signature: "(Landroid/app/Activity;)Ljava/lang/String;"}
)

// ReadMethod returns the read entry point for d. Windowed reads take a start
// and end ISO-8601 timestamp.
func ReadMethod(d metric.Descriptor, windowed bool) Method {
	if windowed {
		return Method{Name: d.ReadMethod, Signature: sigWindowed}
	}
	return Method{Name: d.ReadMethod, Signature: sigNoArgs}
}

// WriteMethod returns the write entry point for d.
func WriteMethod(d metric.Descriptor) Method {
	return Method{Name: d.WriteMethod, Signature: d.WriteSignature}
}

var (
	// ErrContextInvalid means the platform execution context is unusable.
	ErrContextInvalid = errors.New("bridge execution context is invalid")
	// ErrClosed is returned by calls on a released handle.
	ErrClosed = errors.New("bridge handle is closed")
	// ErrBridgeRequest wraps transport failures.
	ErrBridgeRequest = errors.New("error making bridge request")
	// ErrBridgeStatus wraps non-OK transport replies.
	ErrBridgeStatus = errors.New("error status from bridge")
)

// Invoker is a handle on the platform bridge. Methods that need the platform
// execution context (init, requestPermissions) receive it from the Invoker
// itself; callers only pass the primitive arguments.
type Invoker interface {
	// Ready reports whether the execution context is usable. It returns
	// ErrContextInvalid (possibly wrapped) when it is not.
	Ready(ctx context.Context) error

	// Call invokes m with args and returns the raw string reply.
	Call(ctx context.Context, m Method, args ...any) (string, error)

	// Close releases the handle.
	Close() error
}

func callError(m Method, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBridgeRequest, m.Name, err)
}
