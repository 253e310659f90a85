package resolver

import (
	"errors"
	"net/url"
	"strings"
)

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// Redact strips the path and query of any *url.Error in err's chain. Bot API
// paths carry the bot token and presigned URLs carry their signature, so
// errors go through Redact before they are logged.
func Redact(err error) error {
	var urlErr *url.Error
	if err == nil || !errors.As(err, &urlErr) {
		return err
	}

	safe := urlErr.Op + " " + redactURL(urlErr.URL) + ": " + urlErr.Err.Error()
	return &redactedError{
		msg: strings.ReplaceAll(err.Error(), urlErr.Error(), safe),
		err: err,
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[redacted]"
	}
	return u.Scheme + "://" + u.Host + "/[redacted]"
}
