package httpclient

// Target names a remote service and knows its base URL.
type Target interface {
	// Name identifies the target in config keys, logs and metrics.
	Name() string

	// URL is the base URL prepended to relative request URIs.
	URL() string

	// Apply turns a resolved template into a Request.
	Apply(tmpl *RequestTemplate) (*Request, error)
}

// HardCodedTarget is a Target with a fixed base URL.
type HardCodedTarget struct {
	name string
	url  string
}

// NewTarget creates a HardCodedTarget.
//
// Example:
//
//	target := httpclient.NewTarget("users", "https://api.example.com")
func NewTarget(name, url string) HardCodedTarget {
	return HardCodedTarget{name: name, url: url}
}

// Name implements Target.
func (t HardCodedTarget) Name() string { return t.name }

// URL implements Target.
func (t HardCodedTarget) URL() string { return t.url }

// Apply implements Target.
func (t HardCodedTarget) Apply(tmpl *RequestTemplate) (*Request, error) {
	if tmpl.Target() == "" && !isAbsoluteURL(tmpl.URI()) {
		tmpl.SetTarget(t.url)
	}
	return tmpl.Request()
}

func (t HardCodedTarget) String() string {
	return "HardCodedTarget(name=" + t.name + ", url=" + t.url + ")"
}
