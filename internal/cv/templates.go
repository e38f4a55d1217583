package cv

// Template describes an icon bitmap on disk and how to match it
type Template struct {
	Name      string
	Path      string
	Threshold float64
	Region    *Region
	Scale     float64
}

// InRegion sets the search region for the template
func (t Template) InRegion(x1, y1, x2, y2 int) Template {
	region := NewRegion(x1, y1, x2, y2)
	t.Region = &region
	return t
}

// LocatorOptions converts the template's matching settings into Locator
// options. Zero values keep the locator defaults.
func (t Template) LocatorOptions() []Option {
	var opts []Option
	if t.Threshold > 0 {
		opts = append(opts, WithThreshold(t.Threshold))
	}
	if t.Region != nil {
		opts = append(opts, WithRegion(t.Region))
	}
	return opts
}
