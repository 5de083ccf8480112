package intel

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/tor"
)

// IOC extraction patterns.
var (
	ipv4Pattern = regexp.MustCompile(
		`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\b`)
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	md5Pattern    = regexp.MustCompile(`\b[0-9a-fA-F]{32}\b`)
	sha1Pattern   = regexp.MustCompile(`\b[0-9a-fA-F]{40}\b`)
	sha256Pattern = regexp.MustCompile(`\b[0-9a-fA-F]{64}\b`)
	cvePattern    = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)

	// Bitcoin legacy (P2PKH/P2SH) and SegWit bech32 forms.
	btcPattern = regexp.MustCompile(
		`\b(?:bc1[ac-hj-np-z02-9]{6,87}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`)
	// Monero standard addresses, 95 characters starting with 4.
	xmrPattern = regexp.MustCompile(`\b4[0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`)

	// Clearnet domains, common TLDs only to reduce noise.
	domainPattern = regexp.MustCompile(
		`(?i)\b(?:[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?\.)+(?:com|net|org|io|ru|cn|de|uk|fr|it|es|gov|edu|mil|co)\b`)

	urlPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>]{8,200}`)
)

// privateIPPrefixes lists loopback, RFC-1918 and link-local prefixes that
// are excluded from IPv4 indicators.
var privateIPPrefixes = []string{"127.", "10.", "192.168.", "169.254."}

// maxReportedURLs caps the URL list so one link farm cannot bloat exports.
const maxReportedURLs = 50

// IOCSet holds the deduplicated, sorted indicators found on one page.
type IOCSet struct {
	IPv4       []string `json:"ipv4,omitempty"`
	Emails     []string `json:"emails,omitempty"`
	MD5        []string `json:"md5,omitempty"`
	SHA1       []string `json:"sha1,omitempty"`
	SHA256     []string `json:"sha256,omitempty"`
	CVEs       []string `json:"cves,omitempty"`
	BTC        []string `json:"btc_addresses,omitempty"`
	XMR        []string `json:"xmr_addresses,omitempty"`
	OnionHosts []string `json:"onion_addresses,omitempty"`
	Domains    []string `json:"domains,omitempty"`
	URLs       []string `json:"urls,omitempty"`
	PGPPresent bool     `json:"pgp_present"`
}

// Total returns the number of distinct indicator values.
func (s IOCSet) Total() int {
	return len(s.IPv4) + len(s.Emails) + len(s.MD5) + len(s.SHA1) +
		len(s.SHA256) + len(s.CVEs) + len(s.BTC) + len(s.XMR) +
		len(s.OnionHosts) + len(s.Domains) + len(s.URLs)
}

// Counts returns the non-zero indicator kinds with display names, for
// summary output. Kinds are returned in a stable order.
func (s IOCSet) Counts() []KindCount {
	kinds := []struct {
		kind string
		n    int
	}{
		{"ipv4 addresses", len(s.IPv4)},
		{"emails", len(s.Emails)},
		{"md5 hashes", len(s.MD5)},
		{"sha1 hashes", len(s.SHA1)},
		{"sha256 hashes", len(s.SHA256)},
		{"cve identifiers", len(s.CVEs)},
		{"btc addresses", len(s.BTC)},
		{"xmr addresses", len(s.XMR)},
		{"onion hosts", len(s.OnionHosts)},
		{"clearnet domains", len(s.Domains)},
		{"urls", len(s.URLs)},
	}

	titler := cases.Title(language.English)
	var counts []KindCount
	for _, k := range kinds {
		if k.n == 0 {
			continue
		}
		counts = append(counts, KindCount{
			Kind:  titler.String(k.kind),
			Count: k.n,
		})
	}
	return counts
}

// KindCount pairs an indicator kind's display name with its count.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// ThreatAssessment classifies one page's text.
type ThreatAssessment struct {
	// Categories detected, ordered by score descending.
	Categories []string `json:"categories,omitempty"`

	// RiskScore is the aggregate risk in [0, 10].
	RiskScore float64 `json:"risk_score"`

	// RiskLabel is Low, Medium, High, or Critical.
	RiskLabel string `json:"risk_label"`

	// KeywordHits counts matched keywords per category.
	KeywordHits map[string]int `json:"keyword_hits,omitempty"`
}

// PageIntelligence combines both analyses for one page.
type PageIntelligence struct {
	Address string           `json:"address"`
	IOCs    IOCSet           `json:"iocs"`
	Threat  ThreatAssessment `json:"threat"`
}

// category pairs a threat category with its keywords and risk weight.
type category struct {
	name     string
	keywords []string
	weight   float64
}

// categories is the classification knowledge base. Weights are in [0, 1]
// and scale keyword density into the 0-10 risk range.
var categories = []category{
	{
		name: "Credentials & Leaks",
		keywords: []string{
			"password", "credentials", "login", "username", "leaked", "breach",
			"database dump", "combo list", "fullz", "account", "shell access",
			"rdp", "ssh login", "ftp", "vpn access", "admin panel",
		},
		weight: 0.85,
	},
	{
		name: "Marketplace",
		keywords: []string{
			"buy", "sell", "price", "vendor", "shipping", "escrow", "market",
			"shop", "store", "listing", "order", "payment", "wallet", "checkout",
			"in stock", "out of stock", "delivery",
		},
		weight: 0.55,
	},
	{
		name: "Malware & Ransomware",
		keywords: []string{
			"malware", "ransomware", "trojan", "botnet", "keylogger", "exploit",
			"payload", "c2", "command and control", "dropper", "cryptolocker",
			"ransom", "decrypt", "encryption key", "rat ", "loader", "stealer",
			"infostealer", "spyware",
		},
		weight: 0.95,
	},
	{
		name: "Financial Fraud",
		keywords: []string{
			"credit card", "cvv", "carding", "dump", "bin", "cashout",
			"money laundering", "bank account", "wire transfer", "western union",
			"paypal", "swift", "iban", "routing number", "skimmer",
			"counterfeit", "fake bills",
		},
		weight: 0.90,
	},
	{
		name: "Illicit Substances",
		keywords: []string{
			"cocaine", "heroin", "fentanyl", "mdma", "methamphetamine",
			"cannabis", "weed", "lsd", "ketamine", "opioid", "pills",
			"narcotics", "stimulant", "psychedelic", "benzodiazepine",
		},
		weight: 0.80,
	},
	{
		name: "Hacking Services",
		keywords: []string{
			"ddos", "dos attack", "hack for hire", "zero-day", "0day",
			"vulnerability", "cve-", "exploit kit", "stresser", "booter",
			"spear phishing", "social engineering", "remote access",
			"web shell", "privilege escalation",
		},
		weight: 0.90,
	},
	{
		name: "Identity Documents",
		keywords: []string{
			"passport", "id card", "driver license", "ssn", "social security",
			"birth certificate", "kyc bypass", "identity", "national id",
			"residence permit", "visa", "scan", "fake id",
		},
		weight: 0.85,
	},
	{
		name: "Forum & Community",
		keywords: []string{
			"forum", "thread", "reply", "post", "member", "moderator",
			"register", "join", "discussion", "topic", "board", "community",
		},
		weight: 0.20,
	},
	{
		name: "Cryptocurrency Services",
		keywords: []string{
			"mixer", "tumbler", "coin swap", "monero", "privacy coin",
			"exchange", "no kyc", "anonymous transfer", "clean btc",
			"crypto laundry",
		},
		weight: 0.70,
	},
}

// Analyzer extracts IOCs and classifies threats from page text.
// It holds no per-call state so a single instance can be shared
// across goroutines safely.
type Analyzer struct{}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze runs IOC extraction and threat classification over every
// collected page. Pages with no indicators and no detected categories are
// omitted from the output.
func (a *Analyzer) Analyze(ctx context.Context, results []*model.CrawlResult) ([]PageIntelligence, error) {
	intel := make([]PageIntelligence, 0, len(results))

	for _, r := range results {
		select {
		case <-ctx.Done():
			return intel, ctx.Err()
		default:
		}

		page := PageIntelligence{
			Address: r.Address,
			IOCs:    a.ExtractIOCs(r.Text),
			Threat:  a.ClassifyThreat(r.Text),
		}
		if page.IOCs.Total() == 0 && !page.IOCs.PGPPresent && len(page.Threat.Categories) == 0 {
			continue
		}
		intel = append(intel, page)
	}

	return intel, nil
}

// ExtractIOCs extracts and deduplicates all indicator types from text.
// Private and link-local IP addresses are excluded.
func (a *Analyzer) ExtractIOCs(text string) IOCSet {
	urls := uniqueSorted(urlPattern.FindAllString(text, -1))
	if len(urls) > maxReportedURLs {
		urls = urls[:maxReportedURLs]
	}

	// The \b anchors keep a longer hex token from also matching the
	// shorter hash patterns.
	return IOCSet{
		IPv4:       filterPublicIPs(uniqueSorted(ipv4Pattern.FindAllString(text, -1))),
		Emails:     uniqueSorted(emailPattern.FindAllString(text, -1)),
		MD5:        uniqueSorted(md5Pattern.FindAllString(text, -1)),
		SHA1:       uniqueSorted(sha1Pattern.FindAllString(text, -1)),
		SHA256:     uniqueSorted(sha256Pattern.FindAllString(text, -1)),
		CVEs:       uniqueSorted(upperAll(cvePattern.FindAllString(text, -1))),
		BTC:        uniqueSorted(btcPattern.FindAllString(text, -1)),
		XMR:        uniqueSorted(xmrPattern.FindAllString(text, -1)),
		OnionHosts: onionHosts(text),
		Domains:    uniqueSorted(toLowerAll(domainPattern.FindAllString(text, -1))),
		URLs:       urls,
		PGPPresent: strings.Contains(text, "-----BEGIN PGP"),
	}
}

// onionHosts collects v3 and legacy v2 onion hostnames, sorted.
func onionHosts(text string) []string {
	hosts := tor.ExtractV3Addresses(text)
	hosts = append(hosts, tor.ExtractV2Addresses(text)...)
	return uniqueSorted(hosts)
}

// ClassifyThreat scores text against the category knowledge base.
//
// Each category score is keyword density per 1000 words, capped at 1,
// times the category weight, times 10. The page's risk score is the
// highest category score; categories above 1.0 make the output list.
func (a *Analyzer) ClassifyThreat(text string) ThreatAssessment {
	textLower := strings.ToLower(text)
	wordCount := len(strings.Fields(textLower))
	if wordCount == 0 {
		wordCount = 1
	}

	scores := make(map[string]float64)
	hits := make(map[string]int)
	for _, cat := range categories {
		n := 0
		for _, kw := range cat.keywords {
			n += strings.Count(textLower, kw)
		}
		if n == 0 {
			continue
		}
		density := float64(n) / (float64(wordCount) / 1000.0)
		if density > 1.0 {
			density = 1.0
		}
		scores[cat.name] = density * cat.weight * 10.0
		hits[cat.name] = n
	}

	if len(scores) == 0 {
		return ThreatAssessment{RiskLabel: "Low"}
	}

	type scored struct {
		name  string
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	risk := 0.0
	for name, score := range scores {
		ranked = append(ranked, scored{name, score})
		if score > risk {
			risk = score
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var top []string
	for _, s := range ranked {
		if s.score > 1.0 {
			top = append(top, s.name)
		}
	}
	if risk > 10.0 {
		risk = 10.0
	}

	return ThreatAssessment{
		Categories:  top,
		RiskScore:   risk,
		RiskLabel:   riskLabel(risk),
		KeywordHits: hits,
	}
}

// riskLabel maps a 0-10 score to its display label.
func riskLabel(risk float64) string {
	switch {
	case risk >= 9.0:
		return "Critical"
	case risk >= 7.0:
		return "High"
	case risk >= 4.0:
		return "Medium"
	default:
		return "Low"
	}
}

// filterPublicIPs drops loopback, private, and link-local addresses.
func filterPublicIPs(ips []string) []string {
	var public []string
	for _, ip := range ips {
		private := false
		for _, prefix := range privateIPPrefixes {
			if strings.HasPrefix(ip, prefix) {
				private = true
				break
			}
		}
		if !private {
			public = append(public, ip)
		}
	}
	return public
}

// uniqueSorted deduplicates and sorts string matches.
func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func upperAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
}

func toLowerAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}
	return values
}
