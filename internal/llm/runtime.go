package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrModelInvocation matches every ModelInvocationError via errors.Is.
var ErrModelInvocation = errors.New("model invocation failed")

// ModelInvocationError 模型调用失败：网络错误、超时、熔断或输出无法解析
type ModelInvocationError struct {
	Op  string
	Err error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("%s: model invocation failed: %v", e.Op, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

func (e *ModelInvocationError) Is(target error) bool { return target == ErrModelInvocation }

// InvocationError wraps err for op, leaving an existing ModelInvocationError untouched.
func InvocationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var mie *ModelInvocationError
	if errors.As(err, &mie) {
		return err
	}
	return &ModelInvocationError{Op: op, Err: err}
}

// Params are the per-operation model settings, fixed at process start.
type Params struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Request is one rendered prompt.
type Request struct {
	Operation string
	System    string
	User      string
	Params    Params
	// Schema asks the backend for JSON matching the schema. Nil means free text.
	Schema *Schema
}

// Runtime invokes a model and returns its raw text output.
type Runtime interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// RuntimeFunc adapts a function to Runtime.
type RuntimeFunc func(ctx context.Context, req Request) (string, error)

func (f RuntimeFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Retryable marks model failures as transient: outputs vary between calls and
// the breaker recovers on its own.
func (e *ModelInvocationError) Retryable() bool { return true }
