package carnivore

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"
	"traderdeck/lib/htmlutil"
	"traderdeck/lib/restyutil"
	"traderdeck/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/carnivore")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Client holds the single authenticated browsing context for one run.
// Page visits share its cookie jar, so they must stay sequential.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	debug        restyutil.Output
	pollInterval time.Duration
	loginWindow  time.Duration
}

type ClientOptions struct {
	BaseUrl string
	// write-only sink for failure dumps, defaults to discarding them
	Debug restyutil.Output
	// login confirmation poll cadence, defaults to 500ms
	PollInterval time.Duration
	// how long to poll before the login is declared failed, defaults to 15s
	LoginWindow time.Duration
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/carnivore/http")

	debug := opts.Debug
	if debug == nil {
		debug = restyutil.DiscardOutput{}
	}
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 500 * time.Millisecond
	}
	loginWindow := opts.LoginWindow
	if loginWindow == 0 {
		loginWindow = 15 * time.Second
	}

	return &Client{
		BaseUrl:      baseUrl,
		Http:         client,
		debug:        debug,
		pollInterval: pollInterval,
		loginWindow:  loginWindow,
	}, nil
}

// Page is one loaded document: the final location after redirects plus
// the parsed markup.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// VisibleText approximates the rendered body text of the page.
func (p Page) VisibleText() string {
	if p.Doc == nil {
		return ""
	}
	body := p.Doc.Find("body")
	if len(body.Nodes) > 0 {
		return htmlutil.VisibleText(body.Nodes[0])
	}
	if len(p.Doc.Selection.Nodes) > 0 {
		return htmlutil.VisibleText(p.Doc.Selection.Nodes[0])
	}
	return ""
}

func (c *Client) LoadPage(ctx context.Context, pageUrl string) (Page, error) {
	ctx, span := tracer.Start(ctx, "client:LoadPage")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return Page{}, err
	}

	location := res.RawResponse.Request.URL

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return Page{}, err
	}

	return Page{URL: location, Doc: doc}, nil
}

const dumpBodyLimit = 5000

// DumpPage writes a diagnostic snapshot of the page for operator
// inspection. Nothing in the pipeline reads these back.
func (c *Client) DumpPage(label string, page Page) {
	body := page.VisibleText()
	if len(body) > dumpBodyLimit {
		body = body[:dumpBodyLimit]
	}
	location := ""
	if page.URL != nil {
		location = page.URL.String()
	}
	c.debug.Write(
		fmt.Sprintf("debug_%s.txt", label),
		fmt.Sprintf("URL: %s\n\n%s", location, body),
	)
}
