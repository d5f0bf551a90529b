package testudo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/section"
	"testudot/lib/util/restyutil"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("scrapers/testudo")

const (
	report_client_fetch_course_markup = "client.fetch-course-markup"
)

// ErrStatus is returned when testudo answers with a non-2xx status.
var ErrStatus = errors.New("unexpected status")

const (
	DefaultBaseURL   = "https://app.testudo.umd.edu"
	DefaultUserAgent = "testudot/0.0.0"
)

type Config struct {
	BaseURL   string `json:"base_url"`
	UserAgent string `json:"user_agent"`
	// TermID pins the term, when empty the term is derived from the current date.
	TermID string `json:"term_id"`
	// RequestsPerSecond bounds fetches shared by every course of a batch, defaults to 2.
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	// DumpDir, when set, keeps a copy of every fetched page there.
	DumpDir string `json:"dump_dir"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	return c
}

// Client fetches course search pages over plain HTTP.
type Client struct {
	http   *resty.Client
	config Config
	time   chrono.TimeAPI
	tel    telemetry.API
}

func NewClient(config Config, clock chrono.TimeAPI, tel telemetry.API) (Client, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)
	config = config.withDefaults()
	tel = telemetry.NewScopedAPI("testudo_scraper", tel)

	_, err := url.Parse(config.BaseURL)
	if err != nil {
		return Client{}, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(config.BaseURL)
	httpClient.SetHeader("user-agent", config.UserAgent)
	httpClient.SetTimeout(time.Second * 30)
	if config.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	// max burst >= requests per second just means that no requests will be dropped
	burst := max(int(config.RequestsPerSecond), 1)
	rateLimiter := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	if config.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(config.DumpDir, tel)
		if err != nil {
			return Client{}, err
		}
		restyutil.DumpResponses(httpClient, output, func(req *resty.Request) string {
			return req.QueryParam.Get("courseId") + "-" + req.QueryParam.Get("termId")
		})
	}

	return Client{
		http:   httpClient,
		config: config,
		time:   clock,
		tel:    tel,
	}, nil
}

// TermID returns the configured term or the one derived from the current date.
func (c Client) TermID() string {
	if c.config.TermID != "" {
		return c.config.TermID
	}
	return CurrentTermID(c.time.Now())
}

// SearchQuery returns the query testudo's own search form submits for a
// course, every delivery mode and weekday is included.
func SearchQuery(courseID, termID string) url.Values {
	query := url.Values{}
	query.Set("courseId", courseID)
	query.Set("sectionId", "")
	query.Set("termId", termID)
	query.Set("creditCompare", "")
	query.Set("credits", "")
	query.Set("courseLevelFilter", "ALL")
	query.Set("instructor", "")
	query.Set("_facetoface", "on")
	query.Set("_blended", "on")
	query.Set("_online", "on")
	query.Set("courseStartCompare", "")
	query.Set("courseStartHour", "")
	query.Set("courseStartMin", "")
	query.Set("courseStartAM", "")
	query.Set("courseEndHour", "")
	query.Set("courseEndMin", "")
	query.Set("courseEndAM", "")
	query.Set("teachingCenter", "ALL")
	for day := 1; day <= 5; day++ {
		query.Set(fmt.Sprintf("_classDay%d", day), "on")
	}
	return query
}

// SearchURL is the full url of a course's search page.
func SearchURL(baseURL, courseID, termID string) string {
	return fmt.Sprintf("%s/soc/search?%s", baseURL, SearchQuery(courseID, termID).Encode())
}

func (c Client) FetchCourseMarkup(ctx context.Context, courseID string) (string, error) {
	termID := c.TermID()
	ctx, span := tracer.Start(ctx, "FetchCourseMarkup")
	defer span.End()
	span.SetAttributes(
		attribute.String("course_id", courseID),
		attribute.String("term_id", termID),
	)

	c.tel.ReportDebug("fetch course markup", courseID, termID)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(SearchQuery(courseID, termID)).
		Get("/soc/search")
	if err != nil {
		err = fmt.Errorf("fetch '%s': %w", courseID, err)
		c.tel.ReportBroken(report_client_fetch_course_markup, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if !res.IsSuccess() {
		err = fmt.Errorf("%w: %d for '%s'", ErrStatus, res.StatusCode(), courseID)
		c.tel.ReportBroken(report_client_fetch_course_markup, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return res.String(), nil
}

func (c Client) ExtractSections(markup string) ([]section.Raw, error) {
	return ExtractSections(markup)
}
