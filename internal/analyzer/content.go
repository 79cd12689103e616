package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const contentMaxRisk = 30

// fold maps text to the form used for matching. NFKC turns full-width and
// ligature look-alikes into their plain letters before lower-casing.
func fold(s string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}

// LoginFormCheck flags password forms that submit over plain HTTP.
type LoginFormCheck struct{}

// NewLoginFormCheck creates a LoginFormCheck.
func NewLoginFormCheck() *LoginFormCheck { return &LoginFormCheck{} }

func (c *LoginFormCheck) Name() string             { return "content_login_form" }
func (c *LoginFormCheck) Title() string            { return "Login Form Security" }
func (c *LoginFormCheck) Category() model.Category { return model.CategoryContent }
func (c *LoginFormCheck) MaxRisk() float64         { return contentMaxRisk }

// Analyze implements Check.
func (c *LoginFormCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	if !page.HasContent() {
		return model.Finding{}, ErrNoContent
	}

	hasLogin := false
	secure := true
	page.Document.Find("form").Each(func(_ int, form *goquery.Selection) {
		passwords := form.Find("input").FilterFunction(func(_ int, in *goquery.Selection) bool {
			return strings.EqualFold(in.AttrOr("type", ""), "password")
		})
		if passwords.Length() == 0 {
			return
		}
		hasLogin = true
		action := strings.TrimSpace(form.AttrOr("action", ""))
		if strings.HasPrefix(strings.ToLower(action), "http:") ||
			(action == "" && page.URL.Scheme != "https") {
			secure = false
		}
	})

	switch {
	case !hasLogin:
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, contentMaxRisk,
			"Login Form Detection", "No login forms detected on this page."), nil
	case !secure:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityDanger, 30, contentMaxRisk, c.Title(),
			"Login form detected that submits data over an insecure connection. Your credentials could be at risk."), nil
	default:
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 5, contentMaxRisk, c.Title(),
			"Login form detected with secure submission method."), nil
	}
}

// Brand is a commonly impersonated organization.
type Brand struct {
	// Name is the lower-case name searched for in page text.
	Name string
	// Domains are the registrable domains owned by the brand.
	Domains []string
}

// DefaultBrands is the built-in list of impersonated brands.
var DefaultBrands = []Brand{
	{Name: "paypal", Domains: []string{"paypal.com", "paypal.me"}},
	{Name: "apple", Domains: []string{"apple.com", "icloud.com"}},
	{Name: "microsoft", Domains: []string{"microsoft.com", "live.com", "office.com", "outlook.com"}},
	{Name: "google", Domains: []string{"google.com", "gmail.com", "youtube.com"}},
	{Name: "facebook", Domains: []string{"facebook.com", "fb.com", "meta.com"}},
	{Name: "amazon", Domains: []string{"amazon.com", "amazon.co.jp", "amazon.co.uk", "amazon.de"}},
	{Name: "netflix", Domains: []string{"netflix.com"}},
	{Name: "bank of america", Domains: []string{"bankofamerica.com"}},
	{Name: "chase", Domains: []string{"chase.com"}},
	{Name: "wells fargo", Domains: []string{"wellsfargo.com"}},
	{Name: "citibank", Domains: []string{"citibank.com", "citi.com"}},
}

// BrandCheck looks for references to well-known brands on foreign domains.
type BrandCheck struct {
	brands  []Brand
	trusted func(host string) bool
}

// NewBrandCheck creates a BrandCheck using DefaultBrands.
func NewBrandCheck() *BrandCheck {
	return &BrandCheck{brands: DefaultBrands}
}

func (c *BrandCheck) Name() string             { return "content_brand" }
func (c *BrandCheck) Title() string            { return "Brand Impersonation Check" }
func (c *BrandCheck) Category() model.Category { return model.CategoryContent }
func (c *BrandCheck) MaxRisk() float64         { return contentMaxRisk }

// Analyze implements Check.
func (c *BrandCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	if !page.HasContent() {
		return model.Finding{}, ErrNoContent
	}

	if c.trusted != nil && c.trusted(page.URL.Hostname()) {
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, contentMaxRisk,
			"Brand Impersonation", "The domain is on the trusted list."), nil
	}

	site := features.RegisteredDomain(page.URL.Hostname())
	text := fold(page.Title + " " + page.Text)

	var detected []string
	for _, b := range c.brands {
		if ownsDomain(b, site) {
			continue
		}
		if strings.Contains(text, b.Name) {
			detected = append(detected, b.Name)
		}
	}

	if len(detected) == 0 {
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, contentMaxRisk,
			"Brand Impersonation", "No detected attempts to impersonate well-known brands."), nil
	}

	names := strings.Join(detected, ", ")
	if hasBrandLogo(page.Document, detected) {
		return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning, 20, contentMaxRisk, c.Title(),
			fmt.Sprintf("This site references %s. Verify you're on the official website.", names)), nil
	}
	return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 5, contentMaxRisk, "Brand References",
		fmt.Sprintf("This site mentions %s but doesn't appear to be impersonating them.", names)), nil
}

func ownsDomain(b Brand, site string) bool {
	for _, d := range b.Domains {
		if site == d {
			return true
		}
	}
	return false
}

func hasBrandLogo(doc *goquery.Document, brands []string) bool {
	found := false
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		alt := fold(img.AttrOr("alt", ""))
		src := strings.ToLower(img.AttrOr("src", ""))
		if strings.Contains(alt, "logo") || strings.Contains(src, "logo") {
			found = true
			return false
		}
		for _, b := range brands {
			if strings.Contains(alt, b) || strings.Contains(src, b) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// HiddenContentCheck counts hidden elements and hidden iframes.
type HiddenContentCheck struct {
	hiddenStyle *regexp.Regexp
}

// NewHiddenContentCheck creates a HiddenContentCheck.
func NewHiddenContentCheck() *HiddenContentCheck {
	return &HiddenContentCheck{
		hiddenStyle: regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|opacity\s*:\s*0(\.0+)?\s*(;|$|!)`),
	}
}

func (c *HiddenContentCheck) Name() string             { return "content_hidden" }
func (c *HiddenContentCheck) Title() string            { return "Hidden Content" }
func (c *HiddenContentCheck) Category() model.Category { return model.CategoryContent }
func (c *HiddenContentCheck) MaxRisk() float64         { return contentMaxRisk }

func (c *HiddenContentCheck) isHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "hidden") {
		return true
	}
	return c.hiddenStyle.MatchString(s.AttrOr("style", ""))
}

func zeroSized(s *goquery.Selection) bool {
	w := strings.TrimSpace(s.AttrOr("width", ""))
	h := strings.TrimSpace(s.AttrOr("height", ""))
	return w == "0" || h == "0" || (w == "1" && h == "1")
}

// Analyze implements Check.
func (c *HiddenContentCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	if !page.HasContent() {
		return model.Finding{}, ErrNoContent
	}

	hidden, hiddenFrames := 0, 0
	page.Document.Find("body *").Each(func(_ int, s *goquery.Selection) {
		isFrame := goquery.NodeName(s) == "iframe"
		switch {
		case c.isHidden(s):
			hidden++
			if isFrame {
				hiddenFrames++
			}
		case isFrame && zeroSized(s):
			hidden++
			hiddenFrames++
		}
	})

	switch {
	case hiddenFrames > 0:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityDanger, 25, contentMaxRisk, c.Title(),
			fmt.Sprintf("Found %d hidden iframe(s). This is often associated with malicious behavior.", hiddenFrames)), nil
	case hidden > 20:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning, 15, contentMaxRisk, c.Title(),
			fmt.Sprintf("Found an unusually high number of hidden elements (%d). This may be suspicious.", hidden)), nil
	default:
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, contentMaxRisk, c.Title(),
			"No suspicious hidden elements detected."), nil
	}
}

// QualityCheck scores scam-style language: repeated exclamation marks,
// shouting, misspelled security words and known phishing phrases.
type QualityCheck struct {
	exclamations *regexp.Regexp
	allCaps      *regexp.Regexp
	misspellings *regexp.Regexp
	phrases      []string
}

// PhishingPhrases are phrases commonly used to create urgency.
var PhishingPhrases = []string{
	"verify your account",
	"confirm your information",
	"account has been suspended",
	"unusual activity",
	"click here to verify",
	"update your information",
	"limited time offer",
	"urgent action required",
}

var commonMisspellings = []string{
	"acount", "accunt", "acct",
	"verfy", "verfiy", "verrify",
	"pasword", "passord", "passwrd",
	"secre", "secur", "securre",
	"confrim", "comfirm", "conferm",
}

// NewQualityCheck creates a QualityCheck.
func NewQualityCheck() *QualityCheck {
	return &QualityCheck{
		exclamations: regexp.MustCompile(`!{2,}`),
		allCaps:      regexp.MustCompile(`\b[A-Z]{4,}\b`),
		misspellings: regexp.MustCompile(`(?i)\b(` + strings.Join(commonMisspellings, "|") + `)\b`),
		phrases:      PhishingPhrases,
	}
}

func (c *QualityCheck) Name() string             { return "content_quality" }
func (c *QualityCheck) Title() string            { return "Content Quality" }
func (c *QualityCheck) Category() model.Category { return model.CategoryContent }
func (c *QualityCheck) MaxRisk() float64         { return contentMaxRisk }

// LanguageScore returns the weighted language issue score and the phishing
// phrases found in text.
func (c *QualityCheck) LanguageScore(text string) (int, []string) {
	folded := fold(text)

	var phrases []string
	for _, p := range c.phrases {
		if strings.Contains(folded, p) {
			phrases = append(phrases, p)
		}
	}

	// Capitals are counted on the compatibility-normalized text so that
	// full-width shouting is caught too.
	caps := len(c.allCaps.FindAllString(norm.NFKC.String(text), -1))
	excl := len(c.exclamations.FindAllString(text, -1))
	miss := len(c.misspellings.FindAllString(folded, -1))

	return excl + caps*2 + miss*3 + len(phrases)*5, phrases
}

// Analyze implements Check.
func (c *QualityCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	if !page.HasContent() {
		return model.Finding{}, ErrNoContent
	}

	score, phrases := c.LanguageScore(page.Text)
	switch {
	case score > 20:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityDanger, 25, contentMaxRisk, c.Title(),
			"Poor grammar, excessive formatting or phishing phrases detected. This is common in scam websites."), nil
	case score > 10:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning, 15, contentMaxRisk, c.Title(),
			"Some indicators of poor content quality or suspicious phrasing detected."), nil
	case len(phrases) > 0:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning, 10, contentMaxRisk, "Content Phrasing",
			fmt.Sprintf("Contains phrases often used in phishing: %q", phrases)), nil
	default:
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, contentMaxRisk, c.Title(),
			"Content appears to have normal quality with no suspicious patterns."), nil
	}
}
