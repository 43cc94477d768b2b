// Package webtoken signs and verifies the short-lived return-to token the
// login flow carries in a cookie. The token pins the relative path a user
// was heading to before being redirected to the login page, so the value
// cannot be tampered into an open redirect.
package webtoken
