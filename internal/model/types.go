package model

// Metadata is the parsed metadata block attached to every Document.
// SourceURL always carries the original caller-supplied URL; URL carries
// the final URL after redirects. StatusCode is always set.
type Metadata struct {
	Title             string   `json:"title,omitempty"`
	Description       string   `json:"description,omitempty"`
	Language          string   `json:"language,omitempty"`
	Keywords          any      `json:"keywords,omitempty"`
	Robots            string   `json:"robots,omitempty"`
	Favicon           string   `json:"favicon,omitempty"`
	OgTitle           string   `json:"ogTitle,omitempty"`
	OgDescription     string   `json:"ogDescription,omitempty"`
	OgURL             string   `json:"ogUrl,omitempty"`
	OgImage           string   `json:"ogImage,omitempty"`
	OgAudio           string   `json:"ogAudio,omitempty"`
	OgVideo           string   `json:"ogVideo,omitempty"`
	OgLocale          string   `json:"ogLocale,omitempty"`
	OgLocaleAlternate []string `json:"ogLocaleAlternate,omitempty"`
	OgSiteName        string   `json:"ogSiteName,omitempty"`
	DCTermsCreated    string   `json:"dctermsCreated,omitempty"`
	DCDateCreated     string   `json:"dcDateCreated,omitempty"`
	DCDate            string   `json:"dcDate,omitempty"`
	DCTermsType       string   `json:"dctermsType,omitempty"`
	DCType            string   `json:"dcType,omitempty"`
	DCTermsAudience   string   `json:"dctermsAudience,omitempty"`
	DCTermsSubject    string   `json:"dctermsSubject,omitempty"`
	DCSubject         string   `json:"dcSubject,omitempty"`
	DCDescription     string   `json:"dcDescription,omitempty"`
	DCTermsKeywords   string   `json:"dctermsKeywords,omitempty"`
	ModifiedTime      string   `json:"modifiedTime,omitempty"`
	PublishedTime     string   `json:"publishedTime,omitempty"`
	ArticleTag        string   `json:"articleTag,omitempty"`
	ArticleSection    string   `json:"articleSection,omitempty"`

	SourceURL   string `json:"sourceURL"`
	URL         string `json:"url,omitempty"`
	StatusCode  int    `json:"statusCode"`
	Error       string `json:"error,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	NumPages    int    `json:"numPages,omitempty"`
	ProxyUsed   string `json:"proxyUsed,omitempty"`

	// Additional carries every <meta name|property> not covered by a
	// standard field. Values are string for a single occurrence and
	// []string when repeated.
	Additional map[string]any `json:"additional,omitempty"`
}

// ActionScrape is the result of a "scrape" action step taken mid-session.
type ActionScrape struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// ActionsResult groups outputs produced by page-interaction steps.
type ActionsResult struct {
	Screenshots []string       `json:"screenshots,omitempty"`
	Scrapes     []ActionScrape `json:"scrapes,omitempty"`
	JavaScript  []any          `json:"javascriptReturns,omitempty"`
}

// Document is the normalized scrape result. Content fields are present
// iff the corresponding format was requested; metadata is always present.
type Document struct {
	Markdown   string         `json:"markdown,omitempty"`
	HTML       string         `json:"html,omitempty"`
	RawHTML    string         `json:"rawHtml,omitempty"`
	Links      []string       `json:"links,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	JSON       any            `json:"json,omitempty"`
	Actions    *ActionsResult `json:"actions,omitempty"`
	Warning    string         `json:"warning,omitempty"`
	Metadata   Metadata       `json:"metadata"`
}

// Action is one page-interaction step executed by the browser engine.
type Action struct {
	Type         string `json:"type"` // wait, click, write, press, scroll, screenshot, executeJavascript, scrape
	Milliseconds int    `json:"milliseconds,omitempty"`
	Selector     string `json:"selector,omitempty"`
	Text         string `json:"text,omitempty"`
	Key          string `json:"key,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Amount       int    `json:"amount,omitempty"`
	Script       string `json:"script,omitempty"`
	FullPage     bool   `json:"fullPage,omitempty"`
}

// Location carries geo hints for a scrape.
type Location struct {
	Country   string   `json:"country,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// JSONOptions configures structured extraction for the json format.
type JSONOptions struct {
	Prompt       string         `json:"prompt,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Schema       map[string]any `json:"schema,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
}

// ScrapeOptions is the parsed per-scrape configuration. It is immutable
// for the lifetime of a scrape; only the derived feature-flag set on the
// scrape Meta changes during engine negotiation.
type ScrapeOptions struct {
	Formats             []string          `json:"formats,omitempty"`
	Headers             map[string]string `json:"headers,omitempty"`
	IncludeTags         []string          `json:"includeTags,omitempty"`
	ExcludeTags         []string          `json:"excludeTags,omitempty"`
	OnlyMainContent     bool              `json:"onlyMainContent"`
	Timeout             int               `json:"timeout,omitempty"` // ms, whole-scrape budget
	WaitFor             int               `json:"waitFor,omitempty"` // ms
	Mobile              bool              `json:"mobile,omitempty"`
	SkipTLSVerification bool              `json:"skipTlsVerification,omitempty"`
	RemoveBase64Images  bool              `json:"removeBase64Images,omitempty"`
	FastMode            bool              `json:"fastMode,omitempty"`
	BlockAds            bool              `json:"blockAds,omitempty"`
	ParsePDF            bool              `json:"parsePDF,omitempty"`
	Proxy               string            `json:"proxy,omitempty"`  // "", "basic", "stealth", "auto"
	Engine              string            `json:"engine,omitempty"` // forces a single engine, skipping the waterfall
	Actions             []Action          `json:"actions,omitempty"`
	Location            *Location         `json:"location,omitempty"`
	JSONOptions         *JSONOptions      `json:"jsonOptions,omitempty"`
}

// HasFormat reports whether the given format name was requested.
func (o *ScrapeOptions) HasFormat(name string) bool {
	for _, f := range o.Formats {
		if f == name {
			return true
		}
	}
	return false
}

// CrawlerOptions is the scope configuration for one crawl job.
type CrawlerOptions struct {
	IncludePaths       []string `json:"includePaths,omitempty"`
	ExcludePaths       []string `json:"excludePaths,omitempty"`
	MaxDepth           int      `json:"maxDepth,omitempty"`
	MaxDiscoveryDepth  int      `json:"maxDiscoveryDepth,omitempty"`
	Limit              int      `json:"limit,omitempty"`
	CrawlEntireDomain  bool     `json:"crawlEntireDomain,omitempty"`
	AllowBackwardLinks bool     `json:"allowBackwardLinks,omitempty"`
	AllowExternalLinks bool     `json:"allowExternalLinks,omitempty"`
	AllowSubdomains    bool     `json:"allowSubdomains,omitempty"`
	IgnoreRobotsTxt    bool     `json:"ignoreRobotsTxt,omitempty"`
	IgnoreSitemap      bool     `json:"ignoreSitemap,omitempty"`
	DeduplicateSimilar bool     `json:"deduplicateSimilarURLs,omitempty"`
	IgnoreQueryParams  bool     `json:"ignoreQueryParameters,omitempty"`
	RegexOnFullURL     bool     `json:"regexOnFullURL,omitempty"`
	Delay              float64  `json:"delay,omitempty"` // seconds between scrapes of one host
}

// CrawlErrorEntry records a per-URL failure during a crawl.
type CrawlErrorEntry struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}
