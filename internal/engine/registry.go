package engine

import (
	"time"

	"github.com/redis/go-redis/v9"

	"scorch/internal/scrape"
)

// Options wires the concrete engines into a registry.
type Options struct {
	Timeout       time.Duration
	RodControlURL string
	StealthProxy  string
	Redis         *redis.Client // nil disables the index engine
	IndexMaxAge   time.Duration
	IndexTTL      time.Duration
}

// NewDefaultRegistry assembles the standard engine set. Quality doubles
// as waterfall priority: the index is consulted first, then engines in
// increasing cost order, with browsers last. The returned IndexWriter
// is nil when Redis is not configured.
func NewDefaultRegistry(opts Options) (*scrape.Registry, scrape.IndexWriter) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	reg := scrape.NewRegistry()

	var writer scrape.IndexWriter
	if opts.Redis != nil {
		index := NewIndex(opts.Redis, opts.IndexMaxAge, opts.IndexTTL)
		writer = index
		reg.Register(index, scrape.Descriptor{
			Features: []scrape.Feature{
				scrape.FeatureFastMode,
				scrape.FeatureDisableAdblock,
			},
			Quality:         50,
			Cost:            0,
			TypicalMs:       5,
			MaxReasonableMs: 1000,
		})
	}

	reg.Register(NewPDF(opts.Timeout), scrape.Descriptor{
		Features: []scrape.Feature{
			scrape.FeaturePDF,
			scrape.FeatureSkipTLS,
			scrape.FeatureFastMode,
			scrape.FeatureDisableAdblock,
			scrape.FeatureLocation,
		},
		OnlyWhen:        scrape.FeaturePDF,
		Quality:         45,
		Cost:            3,
		TypicalMs:       3000,
		MaxReasonableMs: 60000,
	})

	reg.Register(NewFetch(opts.Timeout), scrape.Descriptor{
		Features: []scrape.Feature{
			scrape.FeatureSkipTLS,
			scrape.FeatureFastMode,
			scrape.FeatureDisableAdblock,
			scrape.FeatureLocation,
		},
		Quality:         40,
		Cost:            1,
		TypicalMs:       500,
		MaxReasonableMs: 30000,
	})

	reg.Register(NewTLSClient(opts.Timeout, opts.StealthProxy), scrape.Descriptor{
		Features: []scrape.Feature{
			scrape.FeatureSkipTLS,
			scrape.FeatureFastMode,
			scrape.FeatureStealthProxy,
			scrape.FeatureDisableAdblock,
			scrape.FeatureLocation,
		},
		Quality:         30,
		Cost:            2,
		TypicalMs:       800,
		MaxReasonableMs: 30000,
	})

	reg.Register(NewBrowser(opts.RodControlURL, opts.Timeout), scrape.Descriptor{
		Features: []scrape.Feature{
			scrape.FeatureActions,
			scrape.FeatureScreenshot,
			scrape.FeatureScreenshotFull,
			scrape.FeatureWaitFor,
			scrape.FeatureMobile,
			scrape.FeatureLocation,
			scrape.FeatureDisableAdblock,
		},
		Quality:         20,
		Cost:            10,
		TypicalMs:       5000,
		MaxReasonableMs: 120000,
	})

	reg.Register(NewStealthBrowser(opts.RodControlURL, opts.Timeout), scrape.Descriptor{
		Features: []scrape.Feature{
			scrape.FeatureActions,
			scrape.FeatureScreenshot,
			scrape.FeatureScreenshotFull,
			scrape.FeatureWaitFor,
			scrape.FeatureMobile,
			scrape.FeatureLocation,
			scrape.FeatureStealthProxy,
			scrape.FeatureDisableAdblock,
		},
		Quality:         10,
		Cost:            20,
		TypicalMs:       8000,
		MaxReasonableMs: 120000,
	})

	return reg, writer
}
