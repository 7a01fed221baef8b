package scrape

import "scorch/internal/model"

// Feature is a capability requirement derived from ScrapeOptions.
// Engines advertise the features they support; unsupported required
// features make an engine ineligible or degrade it with a warning.
type Feature string

const (
	FeatureActions           Feature = "actions"
	FeatureScreenshot        Feature = "screenshot"
	FeatureScreenshotFull    Feature = "screenshot@fullScreen"
	FeatureWaitFor           Feature = "waitFor"
	FeatureLocation          Feature = "location"
	FeatureMobile            Feature = "mobile"
	FeatureSkipTLS           Feature = "skipTlsVerification"
	FeatureFastMode          Feature = "useFastMode"
	FeatureStealthProxy      Feature = "stealthProxy"
	FeaturePDF               Feature = "pdf"
	FeatureDocx              Feature = "docx"
	FeatureDisableAdblock    Feature = "disableAdblock"
)

// FeatureSet is a mutable set of required features. It only changes
// through feature-negotiation errors during the orchestrator's outer
// loop.
type FeatureSet map[Feature]struct{}

func (s FeatureSet) Has(f Feature) bool { _, ok := s[f]; return ok }

func (s FeatureSet) Add(fs ...Feature) {
	for _, f := range fs {
		s[f] = struct{}{}
	}
}

func (s FeatureSet) Remove(fs ...Feature) {
	for _, f := range fs {
		delete(s, f)
	}
}

func (s FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	return out
}

// List returns the features in an unspecified order.
func (s FeatureSet) List() []Feature {
	out := make([]Feature, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	return out
}

// DeriveFeatures computes the initial required feature set from the
// scrape options.
func DeriveFeatures(opts *model.ScrapeOptions) FeatureSet {
	fs := make(FeatureSet)

	if len(opts.Actions) > 0 {
		fs.Add(FeatureActions)
	}
	for _, f := range opts.Formats {
		switch f {
		case "screenshot":
			fs.Add(FeatureScreenshot)
		case "screenshot@fullPage":
			fs.Add(FeatureScreenshot, FeatureScreenshotFull)
		}
	}
	if opts.WaitFor > 0 {
		fs.Add(FeatureWaitFor)
	}
	if opts.Location != nil && opts.Location.Country != "" {
		fs.Add(FeatureLocation)
	}
	if opts.Mobile {
		fs.Add(FeatureMobile)
	}
	if opts.SkipTLSVerification {
		fs.Add(FeatureSkipTLS)
	}
	if opts.FastMode {
		fs.Add(FeatureFastMode)
	}
	if opts.Proxy == "stealth" {
		fs.Add(FeatureStealthProxy)
	}
	if !opts.BlockAds {
		fs.Add(FeatureDisableAdblock)
	}
	return fs
}
