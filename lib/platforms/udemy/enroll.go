package udemy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Reason classifies why an enrollment attempt ended the way it did. Success
// results carry ReasonNone unless the course was already on the account.
type Reason string

const (
	ReasonNone                    Reason = ""
	ReasonAlreadyEnrolled         Reason = "already_enrolled"
	ReasonInvalidURL              Reason = "invalid_url"
	ReasonMissingCoupon           Reason = "missing_coupon"
	ReasonDetailsUnavailable      Reason = "details_unavailable"
	ReasonCourseNotFoundOrExpired Reason = "course_not_found_or_expired"
	ReasonAccessDenied            Reason = "access_denied"
	ReasonEnrollmentFailed        Reason = "enrollment_failed"
	ReasonVerificationFailed      Reason = "verification_failed"
)

type EnrollmentResult struct {
	URL     string
	Success bool
	Reason  Reason
	Message string
}

type courseDetails struct {
	CourseReference
	CourseID string
	Title    string
}

var (
	courseIdRegex = regexp.MustCompile(`"id":(\d+)`)
	titleRegex    = regexp.MustCompile(`<title>(.+?)</title>`)
)

// fetchDetails loads the course landing page and scrapes the numeric course
// id out of its embedded JSON. The title is best effort; the slug stands in
// when the page has none.
func (c *Client) fetchDetails(ctx context.Context, ref CourseReference) (courseDetails, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(ref.URL)
	if err != nil {
		return courseDetails{}, err
	}
	if res.StatusCode() != 200 {
		return courseDetails{}, fmt.Errorf("course page status %d", res.StatusCode())
	}

	idMatch := courseIdRegex.FindSubmatch(res.Body())
	if idMatch == nil {
		return courseDetails{}, errors.New("could not locate course id in page")
	}

	title := ref.Slug
	if m := titleRegex.FindSubmatch(res.Body()); m != nil {
		title = string(m[1])
	}

	return courseDetails{
		CourseReference: ref,
		CourseID:        string(idMatch[1]),
		Title:           title,
	}, nil
}

// Enroll runs one coupon redemption end to end: parse the URL, skip courses
// already on the account, scrape the course id, redeem the coupon and verify
// the subscription actually exists afterwards. Every exit path maps to a
// Reason; the method never returns an error because a failed attempt is a
// result, not an exception.
func (c *Client) Enroll(ctx context.Context, courseUrl string) EnrollmentResult {
	ctx, span := tracer.Start(ctx, "Enroll")
	defer span.End()
	span.SetAttributes(attribute.String("course.url", courseUrl))

	fail := func(reason Reason, message string) EnrollmentResult {
		span.SetStatus(codes.Error, string(reason))
		slog.WarnContext(ctx, "enrollment attempt failed",
			"url", courseUrl, "reason", string(reason), "message", message)
		return EnrollmentResult{URL: courseUrl, Reason: reason, Message: message}
	}

	ref, err := ParseCourseURL(courseUrl)
	if err != nil {
		if errors.Is(err, ErrMissingCoupon) {
			return fail(ReasonMissingCoupon, err.Error())
		}
		return fail(ReasonInvalidURL, err.Error())
	}

	if c.IsEnrolled(ref.Slug) {
		slog.InfoContext(ctx, "already enrolled, skipping", "slug", ref.Slug)
		return EnrollmentResult{
			URL:     courseUrl,
			Success: true,
			Reason:  ReasonAlreadyEnrolled,
			Message: fmt.Sprintf("already enrolled in %s", ref.Slug),
		}
	}

	details, err := c.fetchDetails(ctx, ref)
	if err != nil {
		return fail(ReasonDetailsUnavailable, err.Error())
	}
	span.SetAttributes(attribute.String("course.id", details.CourseID))

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"courseId":   details.CourseID,
			"couponCode": ref.CouponCode,
		}).
		SetHeader("Referer", ref.URL).
		Get("/course/subscribe/")
	if err != nil {
		return fail(ReasonEnrollmentFailed, err.Error())
	}

	switch res.StatusCode() {
	case 200:
	case 404:
		return fail(ReasonCourseNotFoundOrExpired, "course not found or coupon expired")
	case 403:
		return fail(ReasonAccessDenied, "access denied by the platform")
	default:
		return fail(ReasonEnrollmentFailed, fmt.Sprintf("enrollment returned status %d", res.StatusCode()))
	}

	if err := c.verifyEnrollment(ctx, details.CourseID); err != nil {
		return fail(ReasonVerificationFailed, err.Error())
	}

	c.enrolled[ref.Slug] = struct{}{}
	slog.InfoContext(ctx, "enrolled", "slug", ref.Slug, "title", details.Title)
	return EnrollmentResult{
		URL:     courseUrl,
		Success: true,
		Message: fmt.Sprintf("enrolled in %s", details.Title),
	}
}

// verifyEnrollment confirms the subscription exists after checkout. The
// checkout endpoint answers 200 even for some rejected coupons, so success is
// only trusted once the course shows up under the account.
func (c *Client) verifyEnrollment(ctx context.Context, courseID string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields[course]", "@default,buyable_object_type,primary_subcategory,is_private").
		Get(fmt.Sprintf("/api-2.0/users/me/subscribed-courses/%s/", courseID))
	if err != nil {
		return err
	}
	if res.StatusCode() != 200 {
		return fmt.Errorf("verification returned status %d", res.StatusCode())
	}

	var body struct {
		Class string `json:"_class"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return fmt.Errorf("decode verification response: %w", err)
	}
	if body.Class != "course" {
		return errors.New("enrollment could not be verified")
	}
	return nil
}

// EnrollMany processes the given course URLs sequentially with a pause
// between attempts so the platform sees a human-ish cadence. The first
// attempt starts immediately. It returns one result per input URL, keyed by
// URL; a cancelled context fails the remaining attempts without touching the
// network.
func (c *Client) EnrollMany(ctx context.Context, courseUrls []string) map[string]EnrollmentResult {
	ctx, span := tracer.Start(ctx, "EnrollMany")
	defer span.End()
	span.SetAttributes(attribute.Int("courses", len(courseUrls)))

	results := make(map[string]EnrollmentResult, len(courseUrls))
	for i, courseUrl := range courseUrls {
		if err := c.pace.Wait(ctx); err != nil {
			results[courseUrl] = EnrollmentResult{
				URL:     courseUrl,
				Reason:  ReasonEnrollmentFailed,
				Message: err.Error(),
			}
			continue
		}
		slog.InfoContext(ctx, "processing enrollment",
			"index", i+1, "total", len(courseUrls), "url", courseUrl)
		results[courseUrl] = c.Enroll(ctx, courseUrl)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	span.SetAttributes(attribute.Int("succeeded", succeeded))
	slog.InfoContext(ctx, "enrollment batch finished",
		"total", len(courseUrls), "succeeded", succeeded)
	return results
}
