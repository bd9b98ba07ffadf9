// Package udemy is the authenticated client for the course platform's
// private web API: session validation, the enrolled-courses walk, and the
// coupon enrollment state machine. Every response schema here is treated as
// probabilistic; a mismatch degrades into a typed failure, never a panic.
package udemy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	"coursepilot-backend/lib/credentials"
	"coursepilot-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("coursepilot.platforms.udemy")

var ErrAuthenticationFailed = errors.New("platform session is not authenticated")

type UserProfile struct {
	DisplayName string `json:"display_name"`
}

type ClientOptions struct {
	// defaults to https://www.udemy.com
	BaseUrl string
	// pause between attempts in EnrollMany, defaults to 2s
	EnrollDelay time.Duration
}

type Client struct {
	baseUrl *url.URL
	http    *resty.Client
	profile *UserProfile
	// slugs of courses the user is subscribed to; grows monotonically,
	// mutated only by Validate and the sequential enrollment driver
	enrolled map[string]struct{}
	pace     *rate.Limiter
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://www.udemy.com"
	}
	if opts.EnrollDelay <= 0 {
		opts.EnrollDelay = time.Second * 2
	}

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

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(time.Millisecond * 500)
	client.SetRetryMaxWaitTime(time.Second * 2)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return false
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	telemetry.InstrumentResty(client, "platforms/udemy/http")

	return &Client{
		baseUrl:  baseUrl,
		http:     client,
		enrolled: map[string]struct{}{},
		pace:     rate.NewLimiter(rate.Every(opts.EnrollDelay), 1),
	}, nil
}

// SetBrowserCookies seeds the session with cookies obtained from a
// credential provider. The map must contain the essential session cookies.
func (c *Client) SetBrowserCookies(cookies map[string]string) error {
	if err := credentials.Validate(cookies); err != nil {
		return err
	}
	for name, value := range cookies {
		c.http.SetCookie(&http.Cookie{
			Name:   name,
			Value:  value,
			Domain: c.baseUrl.Hostname(),
			Path:   "/",
		})
	}
	return nil
}

func (c *Client) Authenticated() bool { return c.profile != nil }

func (c *Client) Profile() UserProfile {
	if c.profile == nil {
		return UserProfile{}
	}
	return *c.profile
}

func (c *Client) IsEnrolled(slug string) bool {
	_, ok := c.enrolled[slug]
	return ok
}

func (c *Client) EnrolledCount() int { return len(c.enrolled) }

type Summary struct {
	Authenticated   bool
	UserName        string
	EnrolledCourses int
}

func (c *Client) Summary() Summary {
	return Summary{
		Authenticated:   c.Authenticated(),
		UserName:        c.Profile().DisplayName,
		EnrolledCourses: c.EnrolledCount(),
	}
}

type identityResponse struct {
	Header struct {
		IsLoggedIn bool        `json:"isLoggedIn"`
		User       UserProfile `json:"user"`
	} `json:"header"`
}

// Validate checks the identity endpoint. It returns false on any non-200
// response, undecodable body or logged-out session; the error return is
// reserved for transport failures. On success the user profile is stored and
// the enrolled-courses set is loaded.
func (c *Client) Validate(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "Validate")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("header", "True").
		Get("/api-2.0/contexts/me/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity request failed")
		return false, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "identity endpoint returned non-200")
		slog.WarnContext(ctx, "authentication check failed", "status", res.StatusCode())
		return false, nil
	}

	var identity identityResponse
	if err := json.Unmarshal(res.Body(), &identity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode identity response")
		slog.WarnContext(ctx, "unexpected identity response shape", "err", err)
		return false, nil
	}
	if !identity.Header.IsLoggedIn {
		slog.WarnContext(ctx, "user is not logged in")
		return false, nil
	}

	c.profile = &identity.Header.User
	slog.InfoContext(ctx, "authenticated", "user", c.profile.DisplayName)

	c.loadEnrolledCourses(ctx)
	return true, nil
}

var slugRegex = regexp.MustCompile(`/course/([^/]+)/`)

type subscribedCoursesPage struct {
	Results []struct {
		Url string `json:"url"`
	} `json:"results"`
	Next string `json:"next"`
}

// loadEnrolledCourses walks the paginated subscribed-courses endpoint and
// records every course slug. Best effort: a failed page stops the walk but
// whatever was collected so far stays.
func (c *Client) loadEnrolledCourses(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "loadEnrolledCourses")
	defer span.End()

	next := "/api-2.0/users/me/subscribed-courses/"
	params := map[string]string{
		"ordering":       "-enroll_time",
		"fields[course]": "enrollment_time,url",
		"page_size":      "100",
	}

	for next != "" {
		req := c.http.R().SetContext(ctx)
		if params != nil {
			req.SetQueryParams(params)
			params = nil
		}
		res, err := req.Get(next)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "failed to load enrolled courses page", "err", err)
			break
		}
		if res.StatusCode() != 200 {
			slog.WarnContext(ctx, "enrolled courses page returned non-200", "status", res.StatusCode())
			break
		}

		var page subscribedCoursesPage
		if err := json.Unmarshal(res.Body(), &page); err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "unexpected enrolled courses response shape", "err", err)
			break
		}
		for _, course := range page.Results {
			if m := slugRegex.FindStringSubmatch(course.Url); m != nil {
				c.enrolled[m[1]] = struct{}{}
			}
		}
		next = page.Next
	}

	span.SetAttributes(attribute.Int("enrolled", len(c.enrolled)))
	slog.InfoContext(ctx, "loaded enrolled courses", "count", len(c.enrolled))
}

// LoginEmailPassword performs the interactive login flow: fetch the login
// page for its anti-forgery cookie, post the credentials, then validate the
// resulting session. Failures are surfaced, not retried.
func (c *Client) LoginEmailPassword(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "LoginEmailPassword")
	defer span.End()

	loginPath := "/join/login-popup/"
	res, err := c.http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "login page returned non-200")
		return fmt.Errorf("login page status %d", res.StatusCode())
	}

	csrf := ""
	for _, cookie := range res.Cookies() {
		if cookie.Name == "csrftoken" {
			csrf = cookie.Value
			break
		}
	}
	if csrf == "" {
		span.SetStatus(codes.Error, "failed to find csrf token")
		return fmt.Errorf("could not find csrf token in login page cookies")
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"email":               email,
			"password":            password,
			"csrfmiddlewaretoken": csrf,
			"locale":              "en_US",
			"next":                c.baseUrl.String() + "/",
		}).
		SetHeader("Referer", c.baseUrl.String()+loginPath).
		SetHeader("X-CSRFToken", csrf).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		Post(loginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post login form")
		return err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "login returned non-200")
		return fmt.Errorf("login failed with status %d", res.StatusCode())
	}

	ok, err := c.Validate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationFailed
	}
	return nil
}
