package udemy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidCourseURL = errors.New("url does not point at a course page")
	ErrMissingCoupon    = errors.New("course url carries no coupon code")
)

// CourseReference is a parsed course URL: the slug identifying the course and
// the coupon code that makes it free.
type CourseReference struct {
	Slug       string
	CouponCode string
	URL        string
}

// ParseCourseURL extracts the slug and coupon code from a course page URL.
// The path must look like /course/<slug>/ and the query must carry a
// couponCode parameter.
func ParseCourseURL(raw string) (CourseReference, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return CourseReference{}, fmt.Errorf("%w: %v", ErrInvalidCourseURL, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "course" || segments[1] == "" {
		return CourseReference{}, fmt.Errorf("%w: %s", ErrInvalidCourseURL, raw)
	}

	coupon := u.Query().Get("couponCode")
	if coupon == "" {
		return CourseReference{}, fmt.Errorf("%w: %s", ErrMissingCoupon, raw)
	}

	return CourseReference{
		Slug:       segments[1],
		CouponCode: coupon,
		URL:        raw,
	}, nil
}
