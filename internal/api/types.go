package api

import (
	"fmt"
	"strings"
	"time"
)

// ResourceKind identifies the family a managed resource belongs to.
// Resource identifiers are only unique within a kind.
type ResourceKind string

const (
	// KindJVM is an application server JVM instance.
	KindJVM ResourceKind = "jvm"

	// KindWebServer is an HTTP front-end web server.
	KindWebServer ResourceKind = "webserver"
)

// ParseResourceKind converts user or wire input into a ResourceKind.
//
// Args:
//   - s: The textual kind, case-insensitive ("jvm", "webserver", "web-server", "ws")
//
// Returns:
//   - ResourceKind: The parsed kind
//   - error: An error when the kind is not recognized
func ParseResourceKind(s string) (ResourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jvm":
		return KindJVM, nil
	case "webserver", "web-server", "web_server", "ws":
		return KindWebServer, nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
}

// Platform is the operating system family of a resource's host.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// ResourceRef addresses one managed resource.
type ResourceRef struct {
	Kind ResourceKind `json:"kind" yaml:"kind"`
	ID   string       `json:"id" yaml:"id"`
}

// String renders the reference as kind/id.
func (r ResourceRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Resource is the metadata the control plane needs about a managed resource.
// It is supplied by the resource metadata provider and treated as read-only.
type Resource struct {
	Ref      ResourceRef
	Name     string
	Host     string
	Platform Platform
	Groups   []string

	// ServiceName is the host-level service registration name. Defaults to Name.
	ServiceName string

	// InstanceDir is the remote directory the configuration archive unpacks into.
	InstanceDir string

	// Properties are free-form template inputs (ports, heap sizes, ...).
	Properties map[string]string
}

// Service returns the host-level service registration name.
func (r Resource) Service() string {
	if r.ServiceName != "" {
		return r.ServiceName
	}
	return r.Name
}

// PlatformOrDefault returns the resource's platform. Resources without one
// are Windows hosts, the platform the helpers were first written for.
func (r Resource) PlatformOrDefault() Platform {
	if r.Platform == "" {
		return PlatformWindows
	}
	return r.Platform
}

// Label returns the history label used for this resource, e.g. "JVM jvm-7".
func (r Resource) Label() string {
	return r.Ref.Kind.Profile().Label + " " + r.Name
}

// Actor identifies who issued an operation. It is passed explicitly through
// every call instead of being resolved from ambient state.
type Actor string

// SystemActor is used for state changes that no operator initiated.
const SystemActor Actor = "system"

// CurrentState is the last known lifecycle state of one resource.
type CurrentState struct {
	Ref        ResourceRef    `json:"ref"`
	State      LifecycleState `json:"state"`
	Actor      Actor          `json:"actor,omitempty"`
	ObservedAt time.Time      `json:"observedAt"`
	Message    string         `json:"message,omitempty"`
}
