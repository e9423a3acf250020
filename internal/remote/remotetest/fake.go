// Package remotetest provides an in-memory Transport for tests.
package remotetest

import (
	"context"
	"strings"
	"sync"
)

// Call is one recorded transport invocation.
type Call struct {
	Host string
	// Line is the command line for RunCommand; empty for copies.
	Line string
	// Local and Remote are set for CopyFile.
	Local  string
	Remote string
}

// IsCopy reports whether the call was a file copy.
func (c Call) IsCopy() bool { return c.Local != "" }

// Response is what a matching rule returns.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

type rule struct {
	substr string
	resp   Response
}

// FakeTransport records every call and answers from rules matched by
// substring, in registration order. Unmatched calls succeed with exit 0.
type FakeTransport struct {
	mu        sync.Mutex
	calls     []Call
	rules     []rule
	copyRules []rule
	// OnCall, when set, runs before a call is answered.
	OnCall func(Call)
}

// New creates an empty FakeTransport.
func New() *FakeTransport {
	return &FakeTransport{}
}

// On registers a response for command lines containing substr.
func (f *FakeTransport) On(substr string, resp Response) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{substr: substr, resp: resp})
	return f
}

// OnCopy registers an error for copies whose remote path contains substr.
func (f *FakeTransport) OnCopy(substr string, err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyRules = append(f.copyRules, rule{substr: substr, resp: Response{Err: err}})
	return f
}

// RunCommand implements remote.Transport.
func (f *FakeTransport) RunCommand(ctx context.Context, host, line string) (int, string, string, error) {
	call := Call{Host: host, Line: line}
	resp := f.record(call, f.matchLine(line))
	select {
	case <-ctx.Done():
		return 0, "", "", ctx.Err()
	default:
	}
	return resp.ExitCode, resp.Stdout, resp.Stderr, resp.Err
}

// CopyFile implements remote.Transport.
func (f *FakeTransport) CopyFile(ctx context.Context, host, localPath, remotePath string) error {
	call := Call{Host: host, Local: localPath, Remote: remotePath}
	resp := f.record(call, f.matchCopy(remotePath))
	return resp.Err
}

func (f *FakeTransport) record(call Call, resp Response) Response {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.OnCall
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return resp
}

func (f *FakeTransport) matchLine(line string) Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if strings.Contains(line, r.substr) {
			return r.resp
		}
	}
	return Response{}
}

func (f *FakeTransport) matchCopy(remotePath string) Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.copyRules {
		if strings.Contains(remotePath, r.substr) {
			return r.resp
		}
	}
	return Response{}
}

// Calls returns a copy of every recorded call.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
